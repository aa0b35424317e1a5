package balance

import (
	"time"

	"github.com/google/uuid"
)

// Seed is a test helper that installs a transaction directly in the in-memory
// store, bypassing validation and duplicate checks, so tests can set up
// historical rows with explicit timestamps.
func Seed(s Store, t Transaction) Transaction {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return t
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.append(t)
	return t
}
