package posting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/contribution"
	"github.com/harryospicon/catarse/internal/logging"
	"github.com/harryospicon/catarse/internal/notification"
	"github.com/harryospicon/catarse/internal/payment"
	"github.com/harryospicon/catarse/internal/project"
	"github.com/harryospicon/catarse/internal/user"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store         balance.Store
	projects      *project.MemoryRepository
	contributions *contribution.MemoryRepository
	payments      *payment.MemoryRepository
	users         *user.MemoryRepository
	service       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	projects := project.NewMemoryRepository()
	contributions := contribution.NewMemoryRepository()
	payments := payment.NewMemoryRepository()
	users := user.NewMemoryRepository()
	store := balance.NewInMemory(contributions)

	svc := NewService(Deps{
		Store:         store,
		Projects:      projects,
		Contributions: contributions,
		Payments:      payments,
		Users:         users,
		Notifier:      notification.NewLoggerNotifier(logging.Discard()),
		Logger:        logging.Discard(),
	})

	return &fixture{
		store:         store,
		projects:      projects,
		contributions: contributions,
		payments:      payments,
		users:         users,
		service:       svc,
	}
}

func (f *fixture) seedProject(state string, owner project.AccountType, paidPledged, rate, irrf string) project.Project {
	p := project.Project{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		OwnerAccountType: owner,
		Goal:             dec("30"),
		PaidPledged:      dec(paidPledged),
		ServiceFeeRate:   dec(rate),
		IRRFTax:          dec(irrf),
		State:            state,
		ExpiresAt:        time.Now().UTC().AddDate(0, 0, -1),
	}
	f.projects.Add(p)
	return p
}

func (f *fixture) seedContribution(p project.Project, value, state string) contribution.Contribution {
	c := contribution.Contribution{
		ID:        uuid.New(),
		ProjectID: p.ID,
		UserID:    uuid.New(),
		Value:     dec(value),
		State:     state,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -30),
	}
	f.contributions.Add(c)
	return c
}

func (f *fixture) seedPayment(c contribution.Contribution, state string) payment.Payment {
	pay := payment.Payment{
		ID:             uuid.New(),
		ContributionID: c.ID,
		State:          state,
	}
	if state == payment.StateChargeback {
		pay.ChargedBackAt = time.Now().UTC()
	}
	f.payments.Add(pay)
	return pay
}

func (f *fixture) userTransactions(t *testing.T, userID uuid.UUID) []balance.Transaction {
	t.Helper()
	txs, err := f.store.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	return txs
}

func TestPostProjectSuccess_CreditsPledgesAndDebitsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")

	res, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, res.Posted)
	require.Len(t, res.Transactions, 2)

	byKind := map[balance.EventKind]balance.Transaction{}
	for _, tx := range res.Transactions {
		byKind[tx.EventKind] = tx
	}
	credit := byKind[balance.EventSuccessfulProjectPledged]
	fee := byKind[balance.EventProjectServiceFee]

	assert.True(t, credit.Amount.Equal(dec("200.00")), "credit %s", credit.Amount)
	assert.True(t, fee.Amount.Equal(dec("-26.00")), "fee %s", fee.Amount)
	assert.Equal(t, p.UserID, credit.UserID)
	assert.Equal(t, p.UserID, fee.UserID)

	total, err := f.store.UserBalance(ctx, p.UserID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("174.00")), "balance %s", total)
}

func TestPostProjectSuccess_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")

	first, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, first.Posted)

	second, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, second.Posted)
	assert.Empty(t, second.Transactions)

	assert.Len(t, f.userTransactions(t, p.UserID), 2)
}

func TestPostProjectSuccess_WithholdsIRRFForNaturalPersons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountNaturalPerson, "200.00", "0.13", "4.50")

	res, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 3)

	var tax *balance.Transaction
	for i := range res.Transactions {
		if res.Transactions[i].EventKind == balance.EventIRRFTaxProject {
			tax = &res.Transactions[i]
		}
	}
	require.NotNil(t, tax, "expected an irrf transaction")
	assert.True(t, tax.Amount.Equal(dec("-4.50")), "tax %s", tax.Amount)
}

func TestPostProjectSuccess_NoIRRFRowForLegalEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "4.50")

	res, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	exists, err := f.store.ExistsForProject(ctx, balance.EventIRRFTaxProject, p.ID)
	require.NoError(t, err)
	assert.False(t, exists, "legal entities never get an irrf row, not even a zero one")
}

func TestPostProjectSuccess_SkipsProjectsStillRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateOnline, project.AccountLegalEntity, "200.00", "0.13", "0")

	res, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, res.Posted)
	assert.Empty(t, f.userTransactions(t, p.UserID))
}

func TestPostProjectSuccess_UnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.PostProjectSuccess(context.Background(), uuid.New())
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestPostLateConfirmation_CreditsOwnerAndDebitsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	res, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
	require.NoError(t, err)
	require.True(t, res.Posted)
	require.Len(t, res.Transactions, 2)

	byKind := map[balance.EventKind]balance.Transaction{}
	for _, tx := range res.Transactions {
		byKind[tx.EventKind] = tx
	}
	credit := byKind[balance.EventContributionConfirmedAfterFinished]
	fee := byKind[balance.EventContributionFee]

	assert.True(t, credit.Amount.Equal(dec("100.00")), "credit %s", credit.Amount)
	assert.True(t, fee.Amount.Equal(dec("-13.00")), "fee %s", fee.Amount)
	assert.Equal(t, p.UserID, credit.UserID, "late confirmations credit the project owner")
	require.True(t, credit.ContributionID.Valid)
	assert.Equal(t, c.ID, credit.ContributionID.UUID)
}

func TestPostLateConfirmation_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	first, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
	require.NoError(t, err)
	require.True(t, first.Posted)

	second, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, second.Posted)

	// success pair plus one late pair, nothing more
	assert.Len(t, f.userTransactions(t, p.UserID), 4)
}

func TestPostLateConfirmation_ChecksPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("project not successful", func(t *testing.T) {
		p := f.seedProject(project.StateFailed, project.AccountLegalEntity, "200.00", "0.13", "0")
		c := f.seedContribution(p, "100.00", contribution.StateConfirmed)

		res, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
		require.NoError(t, err)
		assert.False(t, res.Posted)
	})

	t.Run("contribution not confirmed", func(t *testing.T) {
		p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
		c := f.seedContribution(p, "100.00", contribution.StatePending)

		res, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
		require.NoError(t, err)
		assert.False(t, res.Posted)
	})

	t.Run("success credit not yet posted", func(t *testing.T) {
		p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
		c := f.seedContribution(p, "100.00", contribution.StateConfirmed)

		// A late webhook racing ahead of the success posting must wait, or
		// the later success credit would count the contribution twice.
		res, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
		require.NoError(t, err)
		assert.False(t, res.Posted)
		assert.Empty(t, f.userTransactions(t, p.UserID))
	})

	t.Run("contribution from another project", func(t *testing.T) {
		p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
		other := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "50.00", "0.13", "0")
		c := f.seedContribution(other, "100.00", contribution.StateConfirmed)

		_, err := f.service.PostLateConfirmation(ctx, p.ID, c.ID)
		assert.ErrorIs(t, err, ErrProjectMismatch)
	})
}

func TestPostChargeback_DebitsOwnerNetOfFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)
	pay := f.seedPayment(c, payment.StateChargeback)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	res, err := f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)
	require.True(t, res.Posted)
	require.Len(t, res.Transactions, 1)

	clawback := res.Transactions[0]
	assert.Equal(t, balance.EventContributionChargedback, clawback.EventKind)
	assert.True(t, clawback.Amount.Equal(dec("-87.00")), "clawback %s", clawback.Amount)
	assert.Equal(t, p.UserID, clawback.UserID)
}

func TestPostChargeback_RequiresOwnerCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)
	pay := f.seedPayment(c, payment.StateChargeback)

	// The owner was never credited, so there is nothing to claw back from.
	res, err := f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)
	assert.False(t, res.Posted)
	assert.Empty(t, f.userTransactions(t, p.UserID))
}

func TestPostChargeback_RequiresChargedBackPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)
	pay := f.seedPayment(c, payment.StatePaid)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	res, err := f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)
	assert.False(t, res.Posted)
}

func TestPostChargeback_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)
	pay := f.seedPayment(c, payment.StateChargeback)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	first, err := f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)
	require.True(t, first.Posted)

	second, err := f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)
	assert.False(t, second.Posted)

	// success credit + fee + one clawback, nothing more
	assert.Len(t, f.userTransactions(t, p.UserID), 3)
}

func TestPostRefund_CreditsContributorAndMarksContribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateFailed, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "80.00", contribution.StateConfirmed)

	tx, err := f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, balance.EventContributionRefund, tx.EventKind)
	assert.True(t, tx.Amount.Equal(dec("80.00")), "refund %s", tx.Amount)
	assert.Equal(t, c.UserID, tx.UserID, "refunds credit the contributor")

	stored, err := f.contributions.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.RefundedInBalance)
}

func TestPostRefund_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateFailed, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "80.00", contribution.StateConfirmed)

	first, err := f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Len(t, f.userTransactions(t, c.UserID), 1)
}

func TestPostRefund_SkipsUnconfirmedContributions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateFailed, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "80.00", contribution.StatePending)

	tx, err := f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestPostRefund_SkipsAlreadyFlaggedContributions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateFailed, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "80.00", contribution.StateConfirmed)
	require.NoError(t, f.contributions.MarkRefundedInBalance(ctx, c.ID))

	tx, err := f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Empty(t, f.userTransactions(t, c.UserID))
}

func (f *fixture) seedRefund(t *testing.T, ageDays int, value string) balance.Transaction {
	t.Helper()
	return balance.Seed(f.store, balance.Transaction{
		ProjectID:      balance.Ref(uuid.New()),
		ContributionID: balance.Ref(uuid.New()),
		UserID:         uuid.New(),
		EventKind:      balance.EventContributionRefund,
		Amount:         dec(value),
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -ageDays),
	})
}

func TestPostExpiration_ReversesOldRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refund := f.seedRefund(t, 91, "70.00")

	tx, err := f.service.PostExpiration(ctx, refund.ID)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, balance.EventBalanceExpired, tx.EventKind)
	assert.True(t, tx.Amount.Equal(dec("-70.00")), "reversal %s", tx.Amount)
	assert.Equal(t, refund.UserID, tx.UserID)
	assert.Equal(t, refund.ProjectID, tx.ProjectID)
	assert.Equal(t, refund.ContributionID, tx.ContributionID)

	total, err := f.store.UserBalance(ctx, refund.UserID)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "balance %s", total)
}

func TestPostExpiration_LeavesFreshRefundsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refund := f.seedRefund(t, 10, "70.00")

	tx, err := f.service.PostExpiration(ctx, refund.ID)
	require.NoError(t, err)
	assert.Nil(t, tx)

	ok, err := f.service.CanExpire(ctx, refund.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostExpiration_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refund := f.seedRefund(t, 91, "70.00")

	first, err := f.service.PostExpiration(ctx, refund.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.service.PostExpiration(ctx, refund.ID)
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Len(t, f.userTransactions(t, refund.UserID), 2)
}

func TestPostExpiration_UnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.PostExpiration(context.Background(), uuid.New())
	assert.ErrorIs(t, err, balance.ErrNotFound)
}

func TestCanExpire_TransferActivityForeclosesTheWholeUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refund := f.seedRefund(t, 91, "70.00")

	ok, err := f.service.CanExpire(ctx, refund.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// Any transfer event on the user's balance blocks expiration of all of
	// their refund credits, not only the one being withdrawn.
	balance.Seed(f.store, balance.Transaction{
		UserID:    refund.UserID,
		EventKind: balance.EventBalanceTransferRequest,
		Amount:    dec("-10.00"),
	})

	ok, err = f.service.CanExpire(ctx, refund.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	tx, err := f.service.PostExpiration(ctx, refund.ID)
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestCanExpire_OnlyRefundCreditsExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credit := balance.Seed(f.store, balance.Transaction{
		ProjectID: balance.Ref(uuid.New()),
		UserID:    uuid.New(),
		EventKind: balance.EventSuccessfulProjectPledged,
		Amount:    dec("200.00"),
		CreatedAt: time.Now().UTC().AddDate(0, 0, -200),
	})

	ok, err := f.service.CanExpire(ctx, credit.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostTransferRequest_DebitsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	tx, err := f.service.PostTransferRequest(ctx, p.UserID, dec("100.00"))
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, balance.EventBalanceTransferRequest, tx.EventKind)
	assert.True(t, tx.Amount.Equal(dec("-100.00")), "debit %s", tx.Amount)

	total, err := f.store.UserBalance(ctx, p.UserID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("74.00")), "balance %s", total)
}

func TestPostTransferRequest_RejectsOverdraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.PostTransferRequest(ctx, uuid.New(), dec("10.00"))
	assert.ErrorIs(t, err, balance.ErrInsufficientFunds)
}

func TestPostTransferRequest_RejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.PostTransferRequest(ctx, uuid.New(), dec("0"))
	assert.ErrorIs(t, err, balance.ErrInvalidTransaction)

	_, err = f.service.PostTransferRequest(ctx, uuid.New(), dec("-5.00"))
	assert.ErrorIs(t, err, balance.ErrInvalidTransaction)
}

func TestPostTransferRequest_ConcurrentRequestsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	balance.Seed(f.store, balance.Transaction{
		ProjectID: balance.Ref(uuid.New()),
		UserID:    userID,
		EventKind: balance.EventSuccessfulProjectPledged,
		Amount:    dec("100.00"),
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.PostTransferRequest(ctx, userID, dec("100.00"))
		}(i)
	}
	wg.Wait()

	// The funds check and the debit are serialized per user, so exactly one
	// request gets the credit regardless of interleaving.
	var posted, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			posted++
		case errors.Is(err, balance.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, posted)
	assert.Equal(t, 1, rejected)

	total, err := f.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "balance %s", total)
}

func TestSweepExpirations_ReversesEveryEligibleRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldA := f.seedRefund(t, 120, "50.00")
	oldB := f.seedRefund(t, 95, "25.00")
	fresh := f.seedRefund(t, 10, "40.00")

	expired, err := f.service.SweepExpirations(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 2)

	for _, refund := range []balance.Transaction{oldA, oldB} {
		ok, err := f.service.CanExpire(ctx, refund.ID)
		require.NoError(t, err)
		assert.False(t, ok, "refund %s should be spent", refund.ID)

		total, err := f.store.UserBalance(ctx, refund.UserID)
		require.NoError(t, err)
		assert.True(t, total.IsZero(), "user %s balance %s", refund.UserID, total)
	}

	ok, err := f.service.CanExpire(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, ok, "fresh refund is still inside the window")
	total, err := f.store.UserBalance(ctx, fresh.UserID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("40.00")))
}

func TestSweepExpirations_FirstReversalForeclosesTheRestOfTheUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first := balance.Seed(f.store, balance.Transaction{
		ProjectID:      balance.Ref(uuid.New()),
		ContributionID: balance.Ref(uuid.New()),
		UserID:         userID,
		EventKind:      balance.EventContributionRefund,
		Amount:         dec("50.00"),
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -120),
	})
	second := balance.Seed(f.store, balance.Transaction{
		ProjectID:      balance.Ref(uuid.New()),
		ContributionID: balance.Ref(uuid.New()),
		UserID:         userID,
		EventKind:      balance.EventContributionRefund,
		Amount:         dec("25.00"),
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -100),
	})

	expired, err := f.service.SweepExpirations(ctx)
	require.NoError(t, err)

	// The first reversal puts a balance_expired event on the user, and the
	// guard treats that as balance activity, so the second refund survives.
	require.Len(t, expired, 1)
	require.True(t, first.ContributionID.Valid)
	require.True(t, expired[0].ContributionID.Valid)
	assert.Equal(t, first.ContributionID.UUID, expired[0].ContributionID.UUID)

	ok, err := f.service.CanExpire(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	total, err := f.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("25.00")), "balance %s", total)
}

func TestPostedAmountsFollowTheSignConvention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountNaturalPerson, "200.00", "0.13", "4.50")
	c := f.seedContribution(p, "100.00", contribution.StateConfirmed)
	pay := f.seedPayment(c, payment.StateChargeback)

	_, err := f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.service.PostLateConfirmation(ctx, p.ID, c.ID)
	require.NoError(t, err)
	_, err = f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)

	credits := map[balance.EventKind]bool{
		balance.EventSuccessfulProjectPledged:           true,
		balance.EventContributionConfirmedAfterFinished: true,
	}
	for _, tx := range f.userTransactions(t, p.UserID) {
		if credits[tx.EventKind] {
			assert.True(t, tx.Amount.IsPositive(), "%s should be a credit, got %s", tx.EventKind, tx.Amount)
		} else {
			assert.True(t, tx.Amount.IsNegative(), "%s should be a debit, got %s", tx.EventKind, tx.Amount)
		}
	}
}

func TestQueries_ReflectPostedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(project.StateSuccessful, project.AccountLegalEntity, "200.00", "0.13", "0")
	c := f.seedContribution(p, "80.00", contribution.StateConfirmed)

	posted, err := f.service.ProjectSuccessPosted(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, posted)

	_, err = f.service.PostProjectSuccess(ctx, p.ID)
	require.NoError(t, err)

	posted, err = f.service.ProjectSuccessPosted(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, posted)

	refunded, err := f.service.ContributionRefunded(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, refunded)

	_, err = f.service.PostRefund(ctx, c.ID)
	require.NoError(t, err)

	refunded, err = f.service.ContributionRefunded(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, refunded)

	chargedBack, err := f.service.ContributionChargedBack(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, chargedBack)

	pay := f.seedPayment(c, payment.StateChargeback)
	_, err = f.service.PostChargeback(ctx, pay.ID)
	require.NoError(t, err)

	chargedBack, err = f.service.ContributionChargedBack(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, chargedBack)

	statement, err := f.service.UserStatement(ctx, p.UserID)
	require.NoError(t, err)
	assert.Len(t, statement, 3)

	got, err := f.service.Transaction(ctx, statement[0].ID)
	require.NoError(t, err)
	assert.Equal(t, statement[0].ID, got.ID)
	assert.Equal(t, statement[0].EventKind, got.EventKind)

	_, err = f.service.Transaction(ctx, uuid.New())
	assert.ErrorIs(t, err, balance.ErrNotFound)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := NewSweeper(f.service, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeperRunDisabledWithoutInterval(t *testing.T) {
	f := newFixture(t)
	sweeper := NewSweeper(f.service, 0, logging.Discard())

	done := make(chan struct{})
	go func() {
		sweeper.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper with zero interval should return immediately")
	}
}

func TestPostRefund_UnknownContribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.PostRefund(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contribution.ErrNotFound))
}
