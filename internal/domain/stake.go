package domain

// Stake es la posición acumulada de un participante en un mercado.
//
// Los importes nunca se decrementan: tras un pago se enmascaran con
// Claimed en vez de ponerse a cero, para conservar el tamaño histórico
// de la posición como pista de auditoría.
type Stake struct {
	AmountYes Amount
	AmountNo  Amount
	// Claimed guarda ambos caminos de pago a la vez: claim y refund son
	// mutuamente excluyentes por (mercado, participante).
	Claimed bool
}

// Total devuelve el valor total apostado por el participante.
func (s Stake) Total() Amount {
	return s.AmountYes + s.AmountNo
}

// OnSide devuelve el importe apostado al lado indicado.
func (s Stake) OnSide(yes bool) Amount {
	if yes {
		return s.AmountYes
	}
	return s.AmountNo
}

// StakeRequest es una entrada de stake (individual o de batch).
type StakeRequest struct {
	Slug   string
	Yes    bool
	Amount Amount
}

// ZipStakeRequests conserva la superficie de arrays paralelos del wire:
// combina slugs, lados e importes en una lista de StakeRequest.
// Devuelve ErrLengthMismatch si las listas difieren en longitud.
func ZipStakeRequests(slugs []string, sides []bool, amounts []Amount) ([]StakeRequest, error) {
	if len(slugs) != len(sides) || len(slugs) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	reqs := make([]StakeRequest, len(slugs))
	for i := range slugs {
		reqs[i] = StakeRequest{Slug: slugs[i], Yes: sides[i], Amount: amounts[i]}
	}
	return reqs, nil
}
