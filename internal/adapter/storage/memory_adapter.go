package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/reseller/internal/core/domain"
)

type memoryEntry struct {
	registry  *domain.SellerRegistry
	createdAt time.Time
}

// MemoryAdapter keeps registries in process. Each registry carries its own
// lock; the map lock only guards registry creation and lookup.
type MemoryAdapter struct {
	mu         sync.RWMutex
	registries map[string]*memoryEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{registries: make(map[string]*memoryEntry)}
}

func (m *MemoryAdapter) CreateRegistry(ctx context.Context, registry domain.Registry) error {
	core, err := domain.NewSellerRegistry(registry.Owner)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registries[registry.ID]; ok {
		return domain.ErrRegistryExists
	}
	m.registries[registry.ID] = &memoryEntry{registry: core, createdAt: registry.CreatedAt}
	return nil
}

func (m *MemoryAdapter) GetRegistry(ctx context.Context, registryID string) (*domain.Registry, error) {
	entry := m.lookup(registryID)
	if entry == nil {
		return nil, nil
	}

	return &domain.Registry{
		ID:          registryID,
		Owner:       entry.registry.Owner(),
		SellerCount: entry.registry.SellerCount(),
		CreatedAt:   entry.createdAt,
	}, nil
}

func (m *MemoryAdapter) AppendSeller(ctx context.Context, registryID string, caller, seller domain.Address) (uint64, error) {
	entry := m.lookup(registryID)
	if entry == nil {
		return 0, domain.ErrRegistryNotFound
	}
	return entry.registry.RegisterSeller(caller, seller)
}

func (m *MemoryAdapter) GetSeller(ctx context.Context, registryID string, index uint64) (domain.Address, error) {
	entry := m.lookup(registryID)
	if entry == nil {
		return domain.ZeroAddress, domain.ErrRegistryNotFound
	}
	return entry.registry.Sellers(index), nil
}

func (m *MemoryAdapter) lookup(registryID string) *memoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registries[registryID]
}

// MemoryCache is an in-process idempotency set with per-key expiry.
type MemoryCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:  ttl,
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expires, ok := c.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	c.keys[key] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}
