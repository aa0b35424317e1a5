package contribution

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution lifecycle states as the platform persists them.
const (
	StatePending   = "pending"
	StateConfirmed = "confirmed"
	StateRefused   = "refused"
)

// Contribution is a read-only snapshot of a backer's pledge. The only field
// this service ever writes is the refunded-in-balance flag, and that write
// happens inside the balance store's refund transaction.
type Contribution struct {
	ID                uuid.UUID
	ProjectID         uuid.UUID
	UserID            uuid.UUID
	Value             decimal.Decimal
	State             string
	RefundedInBalance bool
	CreatedAt         time.Time
}

// Confirmed reports whether the pledge was captured successfully.
func (c Contribution) Confirmed() bool {
	return c.State == StateConfirmed
}
