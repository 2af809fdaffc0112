package storage

import (
	"context"
	"sync"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
)

// Memory implementa ports.StateStore en memoria. Es el store de
// desarrollo y tests; Apply es atómico bajo el lock del adapter.
type Memory struct {
	mu          sync.RWMutex
	markets     map[domain.MarketKey]domain.Market
	stakes      map[memStakeKey]domain.Stake
	keys        []domain.MarketKey // orden de creación
	outstanding domain.Amount
}

type memStakeKey struct {
	key domain.MarketKey
	p   domain.Participant
}

// NewMemory crea un store vacío.
func NewMemory() *Memory {
	return &Memory{
		markets: make(map[domain.MarketKey]domain.Market),
		stakes:  make(map[memStakeKey]domain.Stake),
	}
}

func (m *Memory) Market(_ context.Context, key domain.MarketKey) (domain.Market, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mkt, ok := m.markets[key]
	return mkt, ok, nil
}

func (m *Memory) Stake(_ context.Context, key domain.MarketKey, p domain.Participant) (domain.Stake, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stakes[memStakeKey{key, p}]
	return st, ok, nil
}

func (m *Memory) MarketCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys), nil
}

func (m *Memory) MarketAt(_ context.Context, i int) (domain.MarketKey, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.keys) {
		return domain.MarketKey{}, "", domain.ErrIndexOutOfRange
	}
	key := m.keys[i]
	return key, m.markets[key].Slug, nil
}

func (m *Memory) Outstanding(_ context.Context) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outstanding, nil
}

func (m *Memory) Apply(_ context.Context, cs ports.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range cs.Markets {
		if _, ok := m.markets[rec.Key]; !ok {
			m.keys = append(m.keys, rec.Key)
		}
		m.markets[rec.Key] = rec.Market
	}
	for _, rec := range cs.Stakes {
		m.stakes[memStakeKey{rec.Key, rec.Participant}] = rec.Stake
	}
	// Clamp a cero: un decremento mayor que el contador es un bug del
	// caller y no debe dejar el guard de sweep desbordado.
	if cs.OutstandingDelta >= 0 {
		m.outstanding += domain.Amount(cs.OutstandingDelta)
	} else if dec := domain.Amount(-cs.OutstandingDelta); dec > m.outstanding {
		m.outstanding = 0
	} else {
		m.outstanding -= dec
	}
	return nil
}

func (m *Memory) Close() error { return nil }
