package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/domain"
)

// MemoryStore keeps everything in process. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	cooldowns map[string]domain.CooldownEntry
	positions map[string]domain.Position
	trades    []domain.TradeRecord
	decisions []domain.Decision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cooldowns: make(map[string]domain.CooldownEntry),
		positions: make(map[string]domain.Position),
	}
}

func (m *MemoryStore) GetCooldown(ctx context.Context, key string) (*domain.CooldownEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cooldowns[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) UpsertCooldown(ctx context.Context, entry domain.CooldownEntry) error {
	m.mu.Lock()
	m.cooldowns[entry.Key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PruneCooldowns(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.cooldowns {
		if e.LastNotifiedAt.Before(before) {
			delete(m.cooldowns, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SavePosition(ctx context.Context, pos domain.Position) error {
	m.mu.Lock()
	m.positions[pos.Symbol] = pos
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeletePosition(ctx context.Context, symbol string) error {
	m.mu.Lock()
	delete(m.positions, symbol)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MemoryStore) SaveTrade(ctx context.Context, t domain.TradeRecord) error {
	m.mu.Lock()
	m.trades = append(m.trades, t)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.trades, limit), nil
}

func (m *MemoryStore) SaveDecision(ctx context.Context, d domain.Decision) error {
	m.mu.Lock()
	m.decisions = append(m.decisions, d)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.decisions, limit), nil
}

func newestFirst[T any](items []T, limit int) []T {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}

func (m *MemoryStore) Close() error {
	return nil
}
