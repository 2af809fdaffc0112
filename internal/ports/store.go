package ports

import (
	"context"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// MarketRecord es un mercado listo para persistir bajo su clave digest.
type MarketRecord struct {
	Key    domain.MarketKey
	Market domain.Market
}

// StakeRecord es la posición de un participante lista para persistir.
type StakeRecord struct {
	Key         domain.MarketKey
	Participant domain.Participant
	Stake       domain.Stake
}

// Changeset es el conjunto de escrituras de UNA operación del engine.
// El store lo aplica entero o no aplica nada: es la unidad de
// atomicidad del sistema.
type Changeset struct {
	Markets []MarketRecord
	Stakes  []StakeRecord
	// OutstandingDelta ajusta el total global que el ledger debe a los
	// participantes (+ en stake, - en cada pago).
	OutstandingDelta int64
}

// Empty indica si el changeset no contiene ninguna escritura.
func (c Changeset) Empty() bool {
	return len(c.Markets) == 0 && len(c.Stakes) == 0 && c.OutstandingDelta == 0
}

// StateStore persiste el estado completo del ledger: mercados (mapa
// digest→registro con el slug dentro para lookup inverso), stakes,
// la secuencia de enumeración por orden de creación, y el contador
// outstanding. No existe más estado durable que este.
type StateStore interface {
	// Market devuelve el mercado bajo la clave, con ok=false si nunca
	// fue creado. Lectura pura.
	Market(ctx context.Context, key domain.MarketKey) (domain.Market, bool, error)

	// Stake devuelve la posición del participante, con ok=false si no hay.
	Stake(ctx context.Context, key domain.MarketKey, p domain.Participant) (domain.Stake, bool, error)

	// MarketCount devuelve el tamaño de la secuencia de enumeración.
	MarketCount(ctx context.Context) (int, error)

	// MarketAt devuelve (clave, slug) por índice de inserción.
	// Devuelve domain.ErrIndexOutOfRange fuera de rango.
	MarketAt(ctx context.Context, i int) (domain.MarketKey, string, error)

	// Outstanding devuelve el total global aún debido a participantes.
	Outstanding(ctx context.Context) (domain.Amount, error)

	// Apply aplica el changeset de forma atómica.
	Apply(ctx context.Context, cs Changeset) error

	// Close cierra el store limpiamente.
	Close() error
}
