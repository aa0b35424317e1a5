package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository holds user records in memory for tests and dev mode.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]User
}

// NewMemoryRepository constructs an in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[uuid.UUID]User)}
}

// Add installs or replaces a user record.
func (r *MemoryRepository) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[u.ID] = u
}

// Get fetches a user by identifier.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.storage[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return u, nil
}
