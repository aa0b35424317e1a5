package contribution

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository holds contribution snapshots in memory for tests and dev
// mode. It also acts as the refund marker for the in-memory balance store.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Contribution
}

// NewMemoryRepository constructs an in-memory contribution repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[uuid.UUID]Contribution)}
}

// Add installs or replaces a contribution snapshot.
func (r *MemoryRepository) Add(c Contribution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[c.ID] = c
}

// Get fetches a contribution snapshot by identifier.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Contribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.storage[id]
	if !ok {
		return Contribution{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// MarkRefundedInBalance flips the refunded-in-balance flag. The in-memory
// balance store calls this under its own lock while inserting the refund.
func (r *MemoryRepository) MarkRefundedInBalance(_ context.Context, contributionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.storage[contributionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, contributionID)
	}
	c.RefundedInBalance = true
	r.storage[contributionID] = c
	return nil
}
