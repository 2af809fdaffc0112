// Package registry posee el mapeo slug → mercado: creación perezosa en
// el primer stake, lookup inverso y enumeración por orden de inserción.
package registry

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
)

// Registry materializa mercados sobre un StateStore. No escribe nada
// por sí mismo: GetOrCreate devuelve el registro nuevo y el caller lo
// incluye en su changeset, de modo que la creación queda dentro de la
// misma operación atómica que el primer stake.
type Registry struct {
	store ports.StateStore
}

// New crea un registry sobre el store dado.
func New(store ports.StateStore) *Registry {
	return &Registry{store: store}
}

// Key valida el slug y deriva su clave de almacenamiento.
func (r *Registry) Key(slug string) (domain.MarketKey, error) {
	if slug == "" {
		return domain.MarketKey{}, domain.ErrInvalidSlug
	}
	return domain.NewMarketKey(slug), nil
}

// GetOrCreate devuelve el mercado del slug, inicializándolo a cero si
// nunca existió. created=true significa que el registro aún no está
// persistido: el caller debe incluirlo en su changeset y emitir la
// observación market-created. Idempotente: la segunda llamada devuelve
// el registro existente sin tocarlo.
func (r *Registry) GetOrCreate(ctx context.Context, slug string) (domain.MarketKey, domain.Market, bool, error) {
	key, err := r.Key(slug)
	if err != nil {
		return domain.MarketKey{}, domain.Market{}, false, err
	}
	mkt, ok, err := r.store.Market(ctx, key)
	if err != nil {
		return key, domain.Market{}, false, fmt.Errorf("registry.GetOrCreate: %w", err)
	}
	if ok {
		return key, mkt, false, nil
	}
	return key, domain.Market{Slug: slug, Exists: true}, true, nil
}

// Lookup devuelve el mercado del slug sin crearlo.
func (r *Registry) Lookup(ctx context.Context, slug string) (domain.Market, error) {
	key, err := r.Key(slug)
	if err != nil {
		return domain.Market{}, err
	}
	mkt, ok, err := r.store.Market(ctx, key)
	if err != nil {
		return domain.Market{}, fmt.Errorf("registry.Lookup: %w", err)
	}
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return mkt, nil
}

// Count devuelve cuántos mercados se han creado.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.MarketCount(ctx)
}

// ByIndex devuelve (clave, slug) por índice de inserción, para paginar
// la enumeración sin cargar el conjunto completo.
func (r *Registry) ByIndex(ctx context.Context, i int) (domain.MarketKey, string, error) {
	return r.store.MarketAt(ctx, i)
}
