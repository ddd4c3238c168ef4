package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is the single-process fallback used when no Redis address is configured.
type Memory struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	items       map[Key]memoryItem
	generations map[string]Generation
}

type memoryItem struct {
	generation Generation
	expires    time.Time
	raw        []byte
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:         ttl,
		now:         time.Now,
		items:       map[Key]memoryItem{},
		generations: map[string]Generation{},
	}
}

func (m *Memory) Get(_ context.Context, key Key, dest any) (Generation, bool, error) {
	m.mu.Lock()
	gen := m.generations[key.Tenant]
	item, ok := m.items[key]
	stale := ok && (item.generation != gen || !m.now().Before(item.expires))
	if stale {
		delete(m.items, key)
	}
	m.mu.Unlock()
	if !ok || stale {
		return gen, false, nil
	}
	return gen, true, json.Unmarshal(item.raw, dest)
}

// Set drops the value when the tenant has been invalidated since gen was read.
func (m *Memory) Set(_ context.Context, key Key, gen Generation, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generations[key.Tenant] {
		return nil
	}
	m.items[key] = memoryItem{
		generation: gen,
		expires:    m.now().Add(m.ttl),
		raw:        raw,
	}
	return nil
}

func (m *Memory) InvalidateTenant(_ context.Context, tenant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[tenant]++
	for key := range m.items {
		if key.Tenant == tenant {
			delete(m.items, key)
		}
	}
	return nil
}
