package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"genline/internal/domain"
)

// Memory is a bounded in-process Store. Plans are kept in an LRU keyed by
// plan id; the alias index maps keys onto plan ids with a reverse index so
// evicting or removing a plan drops its keys in the same critical section.
type Memory struct {
	mu      sync.Mutex
	plans   *simplelru.LRU[string, *domain.Plan]
	aliases map[string]string              // key -> plan id
	keysOf  map[string]map[string]struct{} // plan id -> keys
	logger  *slog.Logger
}

// NewMemory returns a store holding at most maxPlans plans.
func NewMemory(maxPlans int, logger *slog.Logger) (*Memory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{
		aliases: map[string]string{},
		keysOf:  map[string]map[string]struct{}{},
		logger:  logger,
	}
	plans, err := simplelru.NewLRU[string, *domain.Plan](maxPlans, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("plan cache: %w", err)
	}
	m.plans = plans
	return m, nil
}

// onEvict runs with m.mu held, from Add, Remove and Purge.
func (m *Memory) onEvict(planID string, _ *domain.Plan) {
	keys := m.keysOf[planID]
	for k := range keys {
		delete(m.aliases, k)
	}
	delete(m.keysOf, planID)
	m.logger.Debug("plan evicted from store", "plan_id", planID, "aliases", len(keys))
}

func (m *Memory) Put(_ context.Context, key string, p *domain.Plan) error {
	if key == "" || p == nil || p.ID == "" {
		return fmt.Errorf("put plan: key and plan id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.aliases[key]; ok && prev != p.ID {
		m.unlink(key, prev)
	}
	m.plans.Add(p.ID, p.Clone())
	m.aliases[key] = p.ID
	keys, ok := m.keysOf[p.ID]
	if !ok {
		keys = map[string]struct{}{}
		m.keysOf[p.ID] = keys
	}
	keys[key] = struct{}{}
	return nil
}

// unlink moves key off planID and drops the plan once nothing points at it.
func (m *Memory) unlink(key, planID string) {
	delete(m.aliases, key)
	keys := m.keysOf[planID]
	delete(keys, key)
	if len(keys) == 0 {
		m.plans.Remove(planID)
		delete(m.keysOf, planID)
	}
}

func (m *Memory) Get(_ context.Context, key string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.aliases[key]
	if !ok {
		return nil, ErrNotFound
	}
	p, ok := m.plans.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) Keys(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.aliases))
	for k := range m.aliases {
		out = append(out, k)
	}
	return out, nil
}

func (m *Memory) AliasesOf(_ context.Context, planID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.keysOf[planID]))
	for k := range m.keysOf[planID] {
		out = append(out, k)
	}
	return out, nil
}

func (m *Memory) RemoveAllAliasesOf(_ context.Context, p *domain.Plan) (int, error) {
	if p == nil {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.keysOf[p.ID])
	m.plans.Remove(p.ID) // onEvict drops the keys
	return n, nil
}

// Len reports how many distinct plans are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans.Len()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans.Purge()
	return nil
}
