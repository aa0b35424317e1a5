package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository holds payment snapshots in memory for tests and dev mode.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Payment
}

// NewMemoryRepository constructs an in-memory payment repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[uuid.UUID]Payment)}
}

// Add installs or replaces a payment snapshot.
func (r *MemoryRepository) Add(p Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[p.ID] = p
}

// Get fetches a payment snapshot by identifier.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}
