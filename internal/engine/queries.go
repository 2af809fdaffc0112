package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// Queries de solo lectura. Sin efectos secundarios: la anulación
// perezosa por expiración NO se materializa aquí: un mercado expirado
// sigue leyéndose como open hasta el primer refund.

// MarketInfo devuelve el mercado del slug, o un registro a cero
// (Exists=false) si nunca fue creado. Los callers deben comprobar
// Exists en vez de interpretar todo-a-cero.
func (e *Engine) MarketInfo(ctx context.Context, slug string) (domain.Market, error) {
	mkt, err := e.reg.Lookup(ctx, slug)
	if errors.Is(err, domain.ErrMarketNotFound) {
		return domain.Market{}, nil
	}
	if err != nil {
		return domain.Market{}, err
	}
	return mkt, nil
}

// StakeInfo devuelve la posición del participante en el mercado, o un
// registro a cero si no existe.
func (e *Engine) StakeInfo(ctx context.Context, slug string, p domain.Participant) (domain.Stake, error) {
	key, err := e.reg.Key(slug)
	if err != nil {
		return domain.Stake{}, err
	}
	st, _, err := e.store.Stake(ctx, key, p)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("engine.StakeInfo: %w", err)
	}
	return st, nil
}

// MarketCount devuelve cuántos mercados se han creado.
func (e *Engine) MarketCount(ctx context.Context) (int, error) {
	return e.reg.Count(ctx)
}

// MarketByIndex devuelve (clave, slug) por índice de inserción.
func (e *Engine) MarketByIndex(ctx context.Context, i int) (domain.MarketKey, string, error) {
	return e.reg.ByIndex(ctx, i)
}

// Outstanding devuelve el total global aún debido a participantes.
func (e *Engine) Outstanding(ctx context.Context) (domain.Amount, error) {
	return e.store.Outstanding(ctx)
}
