package posting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harryospicon/catarse/internal/balance"
)

// ExpirationWindow is how long a refund credit may sit unused before it can
// be reversed.
const ExpirationWindow = 90 * 24 * time.Hour

// Expiration is foreclosed for the whole user, not per credit: any transfer
// activity, or a prior expiration, means the balance is no longer untouched.
var expirationBlockers = []balance.EventKind{
	balance.EventBalanceTransferRequest,
	balance.EventBalanceTransferProject,
	balance.EventBalanceExpired,
}

// CanExpire reports whether the refund credit behind the transaction can
// still be reversed by an expiration posting.
func (s *Service) CanExpire(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return s.canExpire(ctx, t)
}

func (s *Service) canExpire(ctx context.Context, t balance.Transaction) (bool, error) {
	if t.EventKind != balance.EventContributionRefund || !t.ContributionID.Valid {
		return false, nil
	}
	if time.Since(t.CreatedAt) <= ExpirationWindow {
		return false, nil
	}
	blocked, err := s.store.ExistsForUser(ctx, t.UserID, expirationBlockers...)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}
