package project

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository holds project snapshots in memory for tests and dev mode.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Project
}

// NewMemoryRepository constructs an in-memory project repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[uuid.UUID]Project)}
}

// Add installs or replaces a project snapshot.
func (r *MemoryRepository) Add(p Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[p.ID] = p
}

// Get fetches a project snapshot by identifier.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}
