package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/contribution"
	"github.com/harryospicon/catarse/internal/fees"
	"github.com/harryospicon/catarse/internal/logging"
	"github.com/harryospicon/catarse/internal/metrics"
	"github.com/harryospicon/catarse/internal/notification"
	"github.com/harryospicon/catarse/internal/payment"
	"github.com/harryospicon/catarse/internal/project"
	"github.com/harryospicon/catarse/internal/user"
)

// ErrProjectMismatch occurs when a contribution is posted against a project
// it does not belong to.
var ErrProjectMismatch = errors.New("contribution does not belong to project")

const (
	opProjectSuccess   = "project_success"
	opLateConfirmation = "late_confirmation"
	opChargeback       = "chargeback"
	opRefund           = "refund"
	opExpiration       = "expiration"
)

// Service is the posting engine. Each operation reads its collaborator
// snapshots, re-checks the event guard, and writes through the balance store,
// whose uniqueness constraints make replays and races collapse into no-ops
// rather than double postings.
type Service struct {
	store         balance.Store
	projects      project.Repository
	contributions contribution.Repository
	payments      payment.Repository
	users         user.Repository
	notifier      notification.Notifier
	logger        *slog.Logger
}

// Deps aggregates the collaborators a Service needs.
type Deps struct {
	Store         balance.Store
	Projects      project.Repository
	Contributions contribution.Repository
	Payments      payment.Repository
	Users         user.Repository
	Notifier      notification.Notifier
	Logger        *slog.Logger
}

// NewService constructs the posting engine.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:         d.Store,
		projects:      d.Projects,
		contributions: d.Contributions,
		payments:      d.Payments,
		users:         d.Users,
		notifier:      d.Notifier,
		logger:        logger,
	}
}

// PostResult reports whether a posting wrote transactions and which ones.
type PostResult struct {
	Posted       bool
	Transactions []balance.Transaction
}

// PostProjectSuccess credits the owner of a successfully finished project
// with its paid pledges and debits the service fee, plus withheld income tax
// for natural-person owners. All rows land atomically; replays are no-ops.
func (s *Service) PostProjectSuccess(ctx context.Context, projectID uuid.UUID) (PostResult, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return PostResult{}, err
	}
	if !p.Successful() {
		return PostResult{}, nil
	}

	posted, err := s.store.ExistsForProject(ctx, balance.EventSuccessfulProjectPledged, p.ID)
	if err != nil {
		return PostResult{}, err
	}
	if posted {
		metrics.DuplicatesSuppressed.WithLabelValues(opProjectSuccess).Inc()
		return PostResult{}, nil
	}

	txs := []balance.Transaction{
		{
			ProjectID: balance.Ref(p.ID),
			UserID:    p.UserID,
			EventKind: balance.EventSuccessfulProjectPledged,
			Amount:    p.PaidPledged,
		},
		{
			ProjectID: balance.Ref(p.ID),
			UserID:    p.UserID,
			EventKind: balance.EventProjectServiceFee,
			Amount:    fees.ServiceFee(p),
		},
	}
	if tax, ok := fees.IRRFTax(p); ok {
		txs = append(txs, balance.Transaction{
			ProjectID: balance.Ref(p.ID),
			UserID:    p.UserID,
			EventKind: balance.EventIRRFTaxProject,
			Amount:    tax,
		})
	}

	inserted, err := s.store.Insert(ctx, txs...)
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateEvent) {
			metrics.DuplicatesSuppressed.WithLabelValues(opProjectSuccess).Inc()
			return PostResult{}, nil
		}
		return PostResult{}, fmt.Errorf("post project success: %w", err)
	}

	s.recordPosted(ctx, inserted...)
	return PostResult{Posted: true, Transactions: inserted}, nil
}

// PostLateConfirmation credits the project owner with a contribution that was
// confirmed only after the project finished, and debits its fee. Nothing is
// posted until the project's own success credit exists, so a late webhook
// cannot land before the pledges it tops up.
func (s *Service) PostLateConfirmation(ctx context.Context, projectID, contributionID uuid.UUID) (PostResult, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return PostResult{}, err
	}
	c, err := s.contributions.Get(ctx, contributionID)
	if err != nil {
		return PostResult{}, err
	}
	if c.ProjectID != p.ID {
		return PostResult{}, fmt.Errorf("%w: contribution %s, project %s", ErrProjectMismatch, c.ID, p.ID)
	}
	if !p.Successful() || !c.Confirmed() {
		return PostResult{}, nil
	}

	credited, err := s.store.ExistsForProject(ctx, balance.EventSuccessfulProjectPledged, p.ID)
	if err != nil {
		return PostResult{}, err
	}
	if !credited {
		return PostResult{}, nil
	}

	posted, err := s.store.ExistsForContribution(ctx, balance.EventContributionConfirmedAfterFinished, c.ID)
	if err != nil {
		return PostResult{}, err
	}
	if posted {
		metrics.DuplicatesSuppressed.WithLabelValues(opLateConfirmation).Inc()
		return PostResult{}, nil
	}

	inserted, err := s.store.Insert(ctx,
		balance.Transaction{
			ProjectID:      balance.Ref(p.ID),
			ContributionID: balance.Ref(c.ID),
			UserID:         p.UserID,
			EventKind:      balance.EventContributionConfirmedAfterFinished,
			Amount:         c.Value,
		},
		balance.Transaction{
			ProjectID:      balance.Ref(p.ID),
			ContributionID: balance.Ref(c.ID),
			UserID:         p.UserID,
			EventKind:      balance.EventContributionFee,
			Amount:         fees.ContributionFee(c, p),
		},
	)
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateEvent) {
			metrics.DuplicatesSuppressed.WithLabelValues(opLateConfirmation).Inc()
			return PostResult{}, nil
		}
		return PostResult{}, fmt.Errorf("post late confirmation: %w", err)
	}

	s.recordPosted(ctx, inserted...)
	return PostResult{Posted: true, Transactions: inserted}, nil
}

// PostChargeback debits the project owner for a charged-back payment, net of
// the fee the platform already kept. Nothing is posted unless the owner was
// credited for the project in the first place.
func (s *Service) PostChargeback(ctx context.Context, paymentID uuid.UUID) (PostResult, error) {
	pay, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return PostResult{}, err
	}
	if !pay.ChargedBack() {
		return PostResult{}, nil
	}

	c, err := s.contributions.Get(ctx, pay.ContributionID)
	if err != nil {
		return PostResult{}, err
	}
	p, err := s.projects.Get(ctx, c.ProjectID)
	if err != nil {
		return PostResult{}, err
	}

	credited, err := s.store.ExistsForProject(ctx, balance.EventSuccessfulProjectPledged, p.ID)
	if err != nil {
		return PostResult{}, err
	}
	if !credited {
		return PostResult{}, nil
	}

	posted, err := s.store.ExistsForContribution(ctx, balance.EventContributionChargedback, c.ID)
	if err != nil {
		return PostResult{}, err
	}
	if posted {
		metrics.DuplicatesSuppressed.WithLabelValues(opChargeback).Inc()
		return PostResult{}, nil
	}

	inserted, err := s.store.Insert(ctx, balance.Transaction{
		ProjectID:      balance.Ref(p.ID),
		ContributionID: balance.Ref(c.ID),
		UserID:         p.UserID,
		EventKind:      balance.EventContributionChargedback,
		Amount:         fees.ChargebackAmount(c, p),
	})
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateEvent) {
			metrics.DuplicatesSuppressed.WithLabelValues(opChargeback).Inc()
			return PostResult{}, nil
		}
		return PostResult{}, fmt.Errorf("post chargeback: %w", err)
	}

	s.recordPosted(ctx, inserted...)
	return PostResult{Posted: true, Transactions: inserted}, nil
}

// PostRefund credits a confirmed contribution back to the contributor's
// balance and marks the contribution refunded, both in one storage
// transaction. Returns nil when nothing was posted.
func (s *Service) PostRefund(ctx context.Context, contributionID uuid.UUID) (*balance.Transaction, error) {
	c, err := s.contributions.Get(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if !c.Confirmed() || c.RefundedInBalance {
		return nil, nil
	}

	refunded, err := s.store.ExistsForContribution(ctx, balance.EventContributionRefund, c.ID)
	if err != nil {
		return nil, err
	}
	if refunded {
		metrics.DuplicatesSuppressed.WithLabelValues(opRefund).Inc()
		return nil, nil
	}

	inserted, err := s.store.InsertRefund(ctx, balance.Transaction{
		ProjectID:      balance.Ref(c.ProjectID),
		ContributionID: balance.Ref(c.ID),
		UserID:         c.UserID,
		EventKind:      balance.EventContributionRefund,
		Amount:         c.Value,
	})
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateEvent) {
			metrics.DuplicatesSuppressed.WithLabelValues(opRefund).Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("post refund: %w", err)
	}

	s.recordPosted(ctx, inserted)
	return &inserted, nil
}

// PostExpiration reverses a refund credit that sat unused past the expiry
// window, re-checking the guard before writing. Returns nil when the credit
// cannot expire.
func (s *Service) PostExpiration(ctx context.Context, transactionID uuid.UUID) (*balance.Transaction, error) {
	original, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	ok, err := s.canExpire(ctx, original)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	inserted, err := s.store.Insert(ctx, balance.Transaction{
		ProjectID:      original.ProjectID,
		ContributionID: original.ContributionID,
		UserID:         original.UserID,
		EventKind:      balance.EventBalanceExpired,
		Amount:         original.Amount.Neg(),
	})
	if err != nil {
		if errors.Is(err, balance.ErrDuplicateEvent) {
			metrics.DuplicatesSuppressed.WithLabelValues(opExpiration).Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("post expiration: %w", err)
	}

	s.recordPosted(ctx, inserted...)
	s.notifyExpired(ctx, inserted[0])
	return &inserted[0], nil
}

// PostTransferRequest debits a user-requested withdrawal from their balance.
// The store serializes the funds check with the write per user, so concurrent
// requests cannot overdraw. Repeated legitimate requests are allowed;
// transport-level idempotency keys cover accidental replays.
func (s *Service) PostTransferRequest(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*balance.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", balance.ErrInvalidTransaction)
	}

	inserted, err := s.store.InsertTransfer(ctx, balance.Transaction{
		UserID:    userID,
		EventKind: balance.EventBalanceTransferRequest,
		Amount:    amount.Neg(),
	})
	if err != nil {
		return nil, fmt.Errorf("post transfer request: %w", err)
	}

	s.recordPosted(ctx, inserted)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferRequested,
			Destination: s.destinationFor(ctx, userID),
			Body:        fmt.Sprintf("transfer of %s requested from your balance", amount),
			Meta:        transactionMeta(inserted),
		})
	}
	return &inserted, nil
}

func (s *Service) recordPosted(ctx context.Context, txs ...balance.Transaction) {
	if len(txs) == 0 {
		return
	}
	dest := s.destinationFor(ctx, txs[0].UserID)
	for _, t := range txs {
		metrics.TransactionsPosted.WithLabelValues(string(t.EventKind)).Inc()
		s.logger.Info("balance transaction posted",
			slog.String("transaction_id", t.ID.String()),
			slog.String("event_kind", string(t.EventKind)),
			slog.String("user_id", t.UserID.String()),
			slog.String("amount", t.Amount.String()),
		)
		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindBalancePosted,
				Destination: dest,
				Body:        fmt.Sprintf("%s %s", t.EventKind, t.Amount),
				Meta:        transactionMeta(t),
			})
		}
	}
}

func (s *Service) notifyExpired(ctx context.Context, t balance.Transaction) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindBalanceExpired,
		Destination: s.destinationFor(ctx, t.UserID),
		Body:        fmt.Sprintf("your balance credit of %s expired", t.Amount.Abs()),
		Meta:        transactionMeta(t),
	})
}

func (s *Service) destinationFor(ctx context.Context, userID uuid.UUID) string {
	if s.users != nil {
		if u, err := s.users.Get(ctx, userID); err == nil && u.Email != "" {
			return u.Email
		}
	}
	return userID.String()
}

func transactionMeta(t balance.Transaction) map[string]string {
	meta := map[string]string{
		"transaction_id": t.ID.String(),
		"event_kind":     string(t.EventKind),
		"user_id":        t.UserID.String(),
		"amount":         t.Amount.String(),
	}
	if t.ProjectID.Valid {
		meta["project_id"] = t.ProjectID.UUID.String()
	}
	if t.ContributionID.Valid {
		meta["contribution_id"] = t.ContributionID.UUID.String()
	}
	return meta
}
