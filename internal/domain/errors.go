package domain

import "errors"

// Errores del ledger. Todos son rechazos sin efecto parcial: una
// operación que devuelve error deja balances y flags exactamente como
// estaban. Los errores del ledger de custodia externo se propagan
// envueltos, nunca se sustituyen por estos.
var (
	// Validación (culpa del caller, recuperable).
	ErrInvalidSlug    = errors.New("invalid market identifier")
	ErrStakeTooSmall  = errors.New("stake below minimum")
	ErrLengthMismatch = errors.New("parallel arrays length mismatch")
	ErrAmountOverflow = errors.New("amount exceeds representable range")

	// Estado del ciclo de vida.
	ErrMarketNotFound     = errors.New("market does not exist")
	ErrAlreadyResolved    = errors.New("market already resolved")
	ErrMarketVoided       = errors.New("market voided")
	ErrMarketExpired      = errors.New("market deadline elapsed")
	ErrNotResolved        = errors.New("market not resolved")
	ErrRefundNotAvailable = errors.New("refund not available")
	ErrIndexOutOfRange    = errors.New("market index out of range")

	// Derecho a cobro.
	ErrNothingToClaim  = errors.New("nothing to claim")
	ErrNothingToRefund = errors.New("nothing to refund")
	ErrAlreadyClaimed  = errors.New("already claimed")

	// Autorización.
	ErrNotAuthority = errors.New("caller is not the authority")

	// Sweep protegido: solo se puede barrer el excedente por encima de
	// lo que el ledger aún debe a los participantes.
	ErrSweepExceedsSurplus = errors.New("sweep exceeds custody surplus")
)
