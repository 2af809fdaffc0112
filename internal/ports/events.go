package ports

import (
	"context"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// EventSink recibe las observaciones del engine (para indexers,
// consolas, etc). Un error del sink se loguea y se descarta: los
// eventos son informativos, nunca parte de la corrección.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event) error
}
