// Package fees holds the pure fee and tax arithmetic applied when posting
// balance transactions. Amounts are rounded to two decimal places, the
// precision the ledger stores, and debits always come back negative.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/harryospicon/catarse/internal/contribution"
	"github.com/harryospicon/catarse/internal/project"
)

// ServiceFee is the platform's cut of a successful campaign: paid pledged
// total times the campaign's fee rate, as a debit.
func ServiceFee(p project.Project) decimal.Decimal {
	return p.PaidPledged.Mul(p.ServiceFeeRate).Round(2).Neg()
}

// ContributionFee is the platform's cut of a single contribution, as a debit.
func ContributionFee(c contribution.Contribution, p project.Project) decimal.Decimal {
	return c.Value.Mul(p.ServiceFeeRate).Round(2).Neg()
}

// ChargebackAmount claws back a charged-back contribution net of the fee the
// platform already kept, as a debit.
func ChargebackAmount(c contribution.Contribution, p project.Project) decimal.Decimal {
	fee := c.Value.Mul(p.ServiceFeeRate).Round(2)
	return c.Value.Sub(fee).Neg()
}

// IRRFTax returns the income tax withheld from the campaign's payout. The
// value is computed upstream by the platform; this only normalizes it into a
// debit. ok is false when the owner is not a natural person or nothing was
// withheld, in which case no transaction may be written.
func IRRFTax(p project.Project) (amount decimal.Decimal, ok bool) {
	if !p.NaturalPersonOwner() || p.IRRFTax.IsZero() {
		return decimal.Zero, false
	}
	return p.IRRFTax.Round(2).Abs().Neg(), true
}
