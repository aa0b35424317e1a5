package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment gateway states as the platform persists them.
const (
	StatePending    = "pending"
	StatePaid       = "paid"
	StateRefused    = "refused"
	StateRefunded   = "refunded"
	StateChargeback = "chargeback"
)

// Payment is a read-only snapshot of a gateway payment backing a contribution.
type Payment struct {
	ID             uuid.UUID
	ContributionID uuid.UUID
	State          string
	ChargedBackAt  time.Time
}

// ChargedBack reports whether the gateway reversed this payment.
func (p Payment) ChargedBack() bool {
	return p.State == StateChargeback
}
