package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayout_Proportional(t *testing.T) {
	// YES: A=30, B=10. NO: 40. Resuelve YES → pool total 80, pool ganador 40.
	assert.Equal(t, Amount(60), Payout(30, 80, 40))
	assert.Equal(t, Amount(20), Payout(10, 80, 40))
}

func TestPayout_FloorsDown(t *testing.T) {
	// T=3, W=2: cada ganador de 1 cobra floor(3/2)=1; queda 1 de polvo.
	assert.Equal(t, Amount(1), Payout(1, 3, 2))
}

func TestPayout_ZeroInputs(t *testing.T) {
	assert.Equal(t, Amount(0), Payout(0, 100, 50))
	assert.Equal(t, Amount(0), Payout(10, 100, 0))
}

func TestPayout_WholePoolToSoleWinner(t *testing.T) {
	assert.Equal(t, Amount(100), Payout(40, 100, 40))
}

func TestPayout_NoUint64Overflow(t *testing.T) {
	// El producto intermedio desborda uint64; el resultado no.
	big := Amount(math.MaxUint64 / 2)
	got := Payout(big, math.MaxUint64, big)
	assert.Equal(t, Amount(math.MaxUint64), got)
}

func TestSafeAdd(t *testing.T) {
	got, err := SafeAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Amount(3), got)

	got, err = SafeAdd(MaxAmount-1, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxAmount, got)
}

func TestSafeAdd_Overflow(t *testing.T) {
	_, err := SafeAdd(MaxAmount, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
	_, err = SafeAdd(MaxAmount-1, 2)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	// Un sumando ya fuera del rango acotado también se rechaza, aunque
	// la suma uint64 no desbordara.
	_, err = SafeAdd(MaxAmount+1, 0)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestPayout_SumNeverExceedsPool(t *testing.T) {
	// Tres ganadores con stakes primos y pool impar: la suma de pagos
	// truncados no puede superar el pool total.
	stakes := []Amount{7, 11, 13}
	var winning, sum Amount
	for _, s := range stakes {
		winning += s
	}
	total := winning + 97 // lado perdedor
	for _, s := range stakes {
		sum += Payout(s, total, winning)
	}
	assert.LessOrEqual(t, sum, total)
}
