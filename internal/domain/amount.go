package domain

import (
	"math"
	"math/big"
)

// Amount es una cantidad de valor custodiado, en unidades enteras del
// token externo. Toda la aritmética del ledger es entera: no hay
// decimales ni redondeo hacia arriba en ningún punto.
type Amount uint64

// Participant identifica a un participante (una dirección opaca).
type Participant string

// MaxAmount acota los acumuladores del ledger (pools, totales de batch,
// outstanding). El encoding persistido de importes es entero con signo
// de 64 bits, así que el tope es MaxInt64, no MaxUint64.
const MaxAmount = Amount(math.MaxInt64)

// SafeAdd suma dos importes rechazando cualquier resultado fuera del
// rango representable. Todos los acumuladores del ledger crecen solo a
// través de esta función.
func SafeAdd(a, b Amount) (Amount, error) {
	if a > MaxAmount || b > MaxAmount-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Payout calcula el pago proporcional de un ganador:
//
//	floor(winStake * totalPool / winningPool)
//
// La división entera trunca, así que la suma de todos los pagos de un
// mercado nunca supera el pool total; el polvo residual queda en
// custodia. El producto intermedio puede desbordar uint64, por eso se
// usa math/big.
func Payout(winStake, totalPool, winningPool Amount) Amount {
	if winStake == 0 || winningPool == 0 {
		return 0
	}
	n := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(winStake)),
		new(big.Int).SetUint64(uint64(totalPool)),
	)
	n.Quo(n, new(big.Int).SetUint64(uint64(winningPool)))
	// winStake <= winningPool implica resultado <= totalPool: cabe en uint64.
	return Amount(n.Uint64())
}
