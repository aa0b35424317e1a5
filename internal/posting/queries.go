package posting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harryospicon/catarse/internal/balance"
)

// Summary is a user's balance position at a point in time.
type Summary struct {
	UserID uuid.UUID
	Amount decimal.Decimal
	AsOf   time.Time
}

// ProjectSuccessPosted reports whether the project's success credit was written.
func (s *Service) ProjectSuccessPosted(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return s.store.ExistsForProject(ctx, balance.EventSuccessfulProjectPledged, projectID)
}

// ContributionRefunded reports whether the contribution was refunded into a balance.
func (s *Service) ContributionRefunded(ctx context.Context, contributionID uuid.UUID) (bool, error) {
	return s.store.ExistsForContribution(ctx, balance.EventContributionRefund, contributionID)
}

// ContributionChargedBack reports whether the contribution's chargeback was posted.
func (s *Service) ContributionChargedBack(ctx context.Context, contributionID uuid.UUID) (bool, error) {
	return s.store.ExistsForContribution(ctx, balance.EventContributionChargedback, contributionID)
}

// UserBalance sums the user's transactions into their current position.
func (s *Service) UserBalance(ctx context.Context, userID uuid.UUID) (Summary, error) {
	amount, err := s.store.UserBalance(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{UserID: userID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// UserStatement returns the user's transactions, most recent first.
func (s *Service) UserStatement(ctx context.Context, userID uuid.UUID) ([]balance.Transaction, error) {
	return s.store.ListForUser(ctx, userID)
}

// Transaction fetches a single transaction by identifier.
func (s *Service) Transaction(ctx context.Context, id uuid.UUID) (balance.Transaction, error) {
	return s.store.Get(ctx, id)
}
