package project

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies the project owner for tax purposes.
type AccountType string

const (
	// AccountNaturalPerson marks an owner taxed as an individual.
	AccountNaturalPerson AccountType = "natural_person"
	// AccountLegalEntity marks an owner taxed as a company.
	AccountLegalEntity AccountType = "legal_entity"
)

// Campaign lifecycle states as the platform persists them.
const (
	StateOnline     = "online"
	StateWaiting    = "waiting_funds"
	StateSuccessful = "successful"
	StateFailed     = "failed"
)

// Project is a read-only snapshot of a campaign owned by the platform. The
// balance service never transitions campaign state.
type Project struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	OwnerAccountType AccountType
	Goal             decimal.Decimal
	PaidPledged      decimal.Decimal
	ServiceFeeRate   decimal.Decimal
	IRRFTax          decimal.Decimal
	State            string
	ExpiresAt        time.Time
}

// Successful reports whether the campaign finished in the successful state.
func (p Project) Successful() bool {
	return p.State == StateSuccessful
}

// NaturalPersonOwner reports whether the owner is taxed as a natural person.
func (p Project) NaturalPersonOwner() bool {
	return p.OwnerAccountType == AccountNaturalPerson
}
