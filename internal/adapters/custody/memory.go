// Package custody contiene adapters del ledger de valor externo.
package custody

import (
	"context"
	"errors"
	"sync"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// ErrInsufficientFunds lo devuelve el ledger en memoria cuando el
// pagador no cubre el importe.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Memory implementa ports.CustodyLedger con un mapa de balances. Es el
// medio de transferencia de desarrollo y tests; el pool custodiado vive
// bajo la cuenta escrow.
type Memory struct {
	mu       sync.Mutex
	escrow   domain.Participant
	balances map[domain.Participant]domain.Amount

	failNext error // inyección de fallo para tests de atomicidad
	inCalls  int
	outCalls int
}

// NewMemory crea el ledger con la cuenta escrow dada.
func NewMemory(escrow domain.Participant) *Memory {
	return &Memory{
		escrow:   escrow,
		balances: make(map[domain.Participant]domain.Amount),
	}
}

// Mint acredita balance a una cuenta (setup de tests y demos).
func (m *Memory) Mint(p domain.Participant, amount domain.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[p] += amount
}

// FailNext hace que la próxima transferencia (in u out) falle con err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// TransferIn mueve amount del pagador a la cuenta escrow.
func (m *Memory) TransferIn(_ context.Context, from domain.Participant, amount domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inCalls++
	if err := m.takeFailure(); err != nil {
		return err
	}
	if m.balances[from] < amount {
		return ErrInsufficientFunds
	}
	m.balances[from] -= amount
	m.balances[m.escrow] += amount
	return nil
}

// TransferOut paga amount desde la cuenta escrow al receptor.
func (m *Memory) TransferOut(_ context.Context, to domain.Participant, amount domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outCalls++
	if err := m.takeFailure(); err != nil {
		return err
	}
	if m.balances[m.escrow] < amount {
		return ErrInsufficientFunds
	}
	m.balances[m.escrow] -= amount
	m.balances[to] += amount
	return nil
}

// BalanceOf devuelve el balance de la cuenta.
func (m *Memory) BalanceOf(_ context.Context, holder domain.Participant) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[holder], nil
}

// TransferCalls devuelve cuántas transferencias (in, out) se han
// intentado. Los tests de batch lo usan para verificar el pull único.
func (m *Memory) TransferCalls() (in, out int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inCalls, m.outCalls
}

func (m *Memory) takeFailure() error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	return nil
}
