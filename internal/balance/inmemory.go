package balance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu     sync.RWMutex
	rows   []Transaction
	byID   map[uuid.UUID]int
	marker RefundMarker
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests. The marker may be nil when no fixture tracks contribution flags.
func NewInMemory(marker RefundMarker) Store {
	return &inMemoryStore{byID: make(map[uuid.UUID]int), marker: marker}
}

func (s *inMemoryStore) Insert(_ context.Context, txs ...Transaction) ([]Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	prepared := make([]Transaction, len(txs))
	for i, t := range txs {
		p, err := prepare(t)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range prepared {
		if s.conflicts(t, prepared[:i]) {
			return nil, fmt.Errorf("%s: %w", t.EventKind, ErrDuplicateEvent)
		}
	}
	s.append(prepared...)
	return prepared, nil
}

func (s *inMemoryStore) InsertRefund(ctx context.Context, t Transaction) (Transaction, error) {
	if t.EventKind != EventContributionRefund {
		return Transaction{}, fmt.Errorf("%w: InsertRefund requires %s, got %s", ErrInvalidTransaction, EventContributionRefund, t.EventKind)
	}
	p, err := prepare(t)
	if err != nil {
		return Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts(p, nil) {
		return Transaction{}, fmt.Errorf("%s: %w", p.EventKind, ErrDuplicateEvent)
	}
	if s.marker != nil {
		if err := s.marker.MarkRefundedInBalance(ctx, p.ContributionID.UUID); err != nil {
			return Transaction{}, fmt.Errorf("mark contribution refunded: %w", err)
		}
	}
	s.append(p)
	return p, nil
}

func (s *inMemoryStore) InsertTransfer(_ context.Context, t Transaction) (Transaction, error) {
	if t.EventKind != EventBalanceTransferRequest {
		return Transaction{}, fmt.Errorf("%w: InsertTransfer requires %s, got %s", ErrInvalidTransaction, EventBalanceTransferRequest, t.EventKind)
	}
	if !t.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: transfer debits must be negative, got %s", ErrInvalidTransaction, t.Amount)
	}
	p, err := prepare(t)
	if err != nil {
		return Transaction{}, err
	}

	// Funds check and append under one lock hold, mirroring the per-user
	// serialization of the Postgres store.
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, existing := range s.rows {
		if existing.UserID == p.UserID {
			total = total.Add(existing.Amount)
		}
	}
	if total.Add(p.Amount).IsNegative() {
		return Transaction{}, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFunds, p.Amount.Neg(), total)
	}
	s.append(p)
	return p, nil
}

func (s *inMemoryStore) Get(_ context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.rows[idx], nil
}

func (s *inMemoryStore) ExistsForProject(_ context.Context, kind EventKind, projectID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.rows {
		if t.EventKind == kind && t.ProjectID.Valid && t.ProjectID.UUID == projectID {
			return true, nil
		}
	}
	return false, nil
}

func (s *inMemoryStore) ExistsForContribution(_ context.Context, kind EventKind, contributionID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.rows {
		if t.EventKind == kind && t.ContributionID.Valid && t.ContributionID.UUID == contributionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *inMemoryStore) ExistsForUser(_ context.Context, userID uuid.UUID, kinds ...EventKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.rows {
		if t.UserID != userID {
			continue
		}
		for _, k := range kinds {
			if t.EventKind == k {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *inMemoryStore) ListExpirableRefunds(_ context.Context, before time.Time) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reversed := make(map[uuid.UUID]bool)
	for _, t := range s.rows {
		if t.EventKind == EventBalanceExpired && t.ContributionID.Valid {
			reversed[t.ContributionID.UUID] = true
		}
	}

	var out []Transaction
	for _, t := range s.rows {
		if t.EventKind != EventContributionRefund || !t.CreatedAt.Before(before) {
			continue
		}
		if t.ContributionID.Valid && reversed[t.ContributionID.UUID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *inMemoryStore) ListForUser(_ context.Context, userID uuid.UUID) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, t := range s.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *inMemoryStore) UserBalance(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, t := range s.rows {
		if t.UserID == userID {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// conflicts must be called with the lock held. pending covers rows earlier in
// the same batch so a malformed batch cannot collide with itself.
func (s *inMemoryStore) conflicts(t Transaction, pending []Transaction) bool {
	check := func(existing Transaction) bool {
		if existing.EventKind != t.EventKind {
			return false
		}
		switch {
		case t.EventKind.ProjectScoped():
			return existing.ProjectID == t.ProjectID
		case t.EventKind.ContributionScoped():
			return existing.ContributionID == t.ContributionID
		default:
			return false
		}
	}
	for _, existing := range s.rows {
		if check(existing) {
			return true
		}
	}
	for _, existing := range pending {
		if check(existing) {
			return true
		}
	}
	return false
}

func (s *inMemoryStore) append(txs ...Transaction) {
	for _, t := range txs {
		s.byID[t.ID] = len(s.rows)
		s.rows = append(s.rows, t)
	}
}
