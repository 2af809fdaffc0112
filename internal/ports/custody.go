package ports

import (
	"context"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// CustodyLedger is the external value-transfer medium. The engine only
// moves balances in and out through it; any failure is fatal to the
// enclosing operation and is propagated unmodified.
type CustodyLedger interface {
	// TransferIn pulls amount from the payer into custody.
	TransferIn(ctx context.Context, from domain.Participant, amount domain.Amount) error

	// TransferOut pays amount from custody to the payee.
	TransferOut(ctx context.Context, to domain.Participant, amount domain.Amount) error

	// BalanceOf returns the balance held by the given account.
	BalanceOf(ctx context.Context, holder domain.Participant) (domain.Amount, error)
}
