package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateEvent indicates the event was already posted for its subject
	// and therefore the posting should be treated as idempotent.
	ErrDuplicateEvent = errors.New("balance event already posted")

	// ErrInvalidTransaction flags a transaction that fails structural validation.
	ErrInvalidTransaction = errors.New("invalid balance transaction")

	// ErrNotFound occurs when a transaction lookup misses.
	ErrNotFound = errors.New("balance transaction not found")

	// ErrInsufficientFunds occurs when a transfer request exceeds the user's
	// current balance.
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// EventKind names the business fact a balance transaction records. The set is
// closed: values are persisted verbatim and read by reporting, so a rename is
// a data migration, not a refactor.
type EventKind string

const (
	// EventSuccessfulProjectPledged credits the owner with the paid pledges of
	// a successfully finished project.
	EventSuccessfulProjectPledged EventKind = "successful_project_pledged"
	// EventProjectServiceFee debits the platform service fee for a successful project.
	EventProjectServiceFee EventKind = "catarse_project_service_fee"
	// EventIRRFTaxProject debits withheld income tax for natural-person owners.
	EventIRRFTaxProject EventKind = "irrf_tax_project"
	// EventContributionConfirmedAfterFinished credits a contribution confirmed
	// after its project already finished.
	EventContributionConfirmedAfterFinished EventKind = "project_contribution_confirmed_after_finished"
	// EventContributionFee debits the fee on a late-confirmed contribution.
	EventContributionFee EventKind = "catarse_contribution_fee"
	// EventContributionChargedback claws back a charged-back contribution, net of its fee.
	EventContributionChargedback EventKind = "contribution_chargedback"
	// EventContributionRefund credits a contributor refunded into their balance.
	EventContributionRefund EventKind = "contribution_refund"
	// EventBalanceExpired reverses a refund credit left unused past the expiry window.
	EventBalanceExpired EventKind = "balance_expired"
	// EventBalanceTransferRequest debits a user-requested balance withdrawal.
	EventBalanceTransferRequest EventKind = "balance_transfer_request"
	// EventBalanceTransferProject debits a balance used to back a project.
	EventBalanceTransferProject EventKind = "balance_transfer_project"
)

// Valid reports whether the kind belongs to the closed set.
func (k EventKind) Valid() bool {
	switch k {
	case EventSuccessfulProjectPledged, EventProjectServiceFee, EventIRRFTaxProject,
		EventContributionConfirmedAfterFinished, EventContributionFee,
		EventContributionChargedback, EventContributionRefund,
		EventBalanceExpired, EventBalanceTransferRequest, EventBalanceTransferProject:
		return true
	default:
		return false
	}
}

// ProjectScoped reports whether the kind may occur at most once per project.
func (k EventKind) ProjectScoped() bool {
	switch k {
	case EventSuccessfulProjectPledged, EventProjectServiceFee, EventIRRFTaxProject:
		return true
	default:
		return false
	}
}

// ContributionScoped reports whether the kind may occur at most once per contribution.
func (k EventKind) ContributionScoped() bool {
	switch k {
	case EventContributionConfirmedAfterFinished, EventContributionFee,
		EventContributionChargedback, EventContributionRefund, EventBalanceExpired:
		return true
	default:
		return false
	}
}

// Ref wraps an identifier for the nullable subject columns.
func Ref(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

// Transaction is one immutable signed movement on a user's balance.
// Corrections are posted as offsetting transactions, never as updates.
type Transaction struct {
	ID             uuid.UUID
	ProjectID      uuid.NullUUID
	ContributionID uuid.NullUUID
	UserID         uuid.UUID
	EventKind      EventKind
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// Validate checks the structural rules every transaction must meet before it
// may touch storage.
func (t Transaction) Validate() error {
	if t.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	}
	if !t.EventKind.Valid() {
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidTransaction, t.EventKind)
	}
	if t.EventKind.ProjectScoped() && !t.ProjectID.Valid {
		return fmt.Errorf("%w: %s requires a project id", ErrInvalidTransaction, t.EventKind)
	}
	if t.EventKind.ContributionScoped() && !t.ContributionID.Valid {
		return fmt.Errorf("%w: %s requires a contribution id", ErrInvalidTransaction, t.EventKind)
	}
	return nil
}

// Store is the persistence contract for balance transactions.
type Store interface {
	// Insert writes the transactions as one atomic batch. When any of them
	// collides with an already posted event the whole batch is discarded and
	// ErrDuplicateEvent returned.
	Insert(ctx context.Context, txs ...Transaction) ([]Transaction, error)
	// InsertRefund writes a contribution_refund transaction and marks the
	// contribution as refunded in balance within the same storage transaction.
	InsertRefund(ctx context.Context, tx Transaction) (Transaction, error)
	// InsertTransfer writes a balance_transfer_request debit only when the
	// user's summed balance covers it, with the check and the write serialized
	// per user. Returns ErrInsufficientFunds when it does not.
	InsertTransfer(ctx context.Context, tx Transaction) (Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	ExistsForProject(ctx context.Context, kind EventKind, projectID uuid.UUID) (bool, error)
	ExistsForContribution(ctx context.Context, kind EventKind, contributionID uuid.UUID) (bool, error)
	ExistsForUser(ctx context.Context, userID uuid.UUID, kinds ...EventKind) (bool, error)
	// ListExpirableRefunds returns refund transactions created before the
	// cutoff that have not yet been reversed by a balance_expired transaction.
	ListExpirableRefunds(ctx context.Context, before time.Time) ([]Transaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
	UserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// RefundMarker flips the refunded-in-balance flag on the contribution a
// refund transaction credits. The Postgres store issues the update itself;
// the in-memory store delegates so fixtures observe the same atomic contract.
type RefundMarker interface {
	MarkRefundedInBalance(ctx context.Context, contributionID uuid.UUID) error
}

func prepare(t Transaction) (Transaction, error) {
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t, nil
}
