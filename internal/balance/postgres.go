package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

const transactionColumns = `id, project_id, contribution_id, user_id, event_kind, amount, created_at`

// PostgresStore persists balance transactions in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed balance store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the store's schema statements.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range Schema() {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply balance schema: %w", err)
		}
	}
	return nil
}

// Insert writes all transactions in a single database transaction. A unique
// violation on any row aborts the batch and surfaces ErrDuplicateEvent.
func (s *PostgresStore) Insert(ctx context.Context, txs ...Transaction) ([]Transaction, error) {
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

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, t := range prepared {
		if err := insertOne(ctx, tx, t); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return prepared, nil
}

// InsertRefund writes the refund transaction and marks its contribution as
// refunded in balance within the same database transaction.
func (s *PostgresStore) InsertRefund(ctx context.Context, t Transaction) (Transaction, error) {
	if t.EventKind != EventContributionRefund {
		return Transaction{}, fmt.Errorf("%w: InsertRefund requires %s, got %s", ErrInvalidTransaction, EventContributionRefund, t.EventKind)
	}
	p, err := prepare(t)
	if err != nil {
		return Transaction{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := insertOne(ctx, tx, p); err != nil {
		return Transaction{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE contributions SET refunded_in_balance = true WHERE id = $1`, p.ContributionID); err != nil {
		return Transaction{}, fmt.Errorf("mark contribution refunded: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return p, nil
}

// InsertTransfer writes a withdrawal debit only when the user's summed
// balance covers it. Transfer kinds carry no unique index, so the funds check
// and the insert run in one database transaction under a per-user advisory
// lock; concurrent requests cannot both spend the same credit.
func (s *PostgresStore) InsertTransfer(ctx context.Context, t Transaction) (Transaction, error) {
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

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, p.UserID); err != nil {
		return Transaction{}, fmt.Errorf("lock user balance: %w", err)
	}

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM balance_transactions WHERE user_id = $1`, p.UserID).Scan(&total); err != nil {
		return Transaction{}, fmt.Errorf("sum user balance: %w", err)
	}
	if total.Add(p.Amount).IsNegative() {
		return Transaction{}, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFunds, p.Amount.Neg(), total)
	}

	if err := insertOne(ctx, tx, p); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return p, nil
}

// Get fetches a transaction by identifier.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM balance_transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Transaction{}, err
	}
	return t, nil
}

// ExistsForProject reports whether an event of the kind was posted for the project.
func (s *PostgresStore) ExistsForProject(ctx context.Context, kind EventKind, projectID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM balance_transactions WHERE event_kind = $1 AND project_id = $2)`
	var exists bool
	if err := s.db.QueryRow(ctx, query, string(kind), projectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("project event lookup: %w", err)
	}
	return exists, nil
}

// ExistsForContribution reports whether an event of the kind was posted for the contribution.
func (s *PostgresStore) ExistsForContribution(ctx context.Context, kind EventKind, contributionID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM balance_transactions WHERE event_kind = $1 AND contribution_id = $2)`
	var exists bool
	if err := s.db.QueryRow(ctx, query, string(kind), contributionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("contribution event lookup: %w", err)
	}
	return exists, nil
}

// ExistsForUser reports whether the user holds any transaction of the given kinds.
func (s *PostgresStore) ExistsForUser(ctx context.Context, userID uuid.UUID, kinds ...EventKind) (bool, error) {
	if len(kinds) == 0 {
		return false, nil
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	const query = `SELECT EXISTS (
		SELECT 1 FROM balance_transactions WHERE user_id = $1 AND event_kind = ANY($2))`
	var exists bool
	if err := s.db.QueryRow(ctx, query, userID, names).Scan(&exists); err != nil {
		return false, fmt.Errorf("user event lookup: %w", err)
	}
	return exists, nil
}

// ListExpirableRefunds returns refund transactions older than the cutoff that
// no balance_expired transaction has reversed yet.
func (s *PostgresStore) ListExpirableRefunds(ctx context.Context, before time.Time) ([]Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM balance_transactions b
		WHERE b.event_kind = $1
		  AND b.created_at < $2
		  AND NOT EXISTS (
			SELECT 1 FROM balance_transactions e
			WHERE e.event_kind = $3 AND e.contribution_id = b.contribution_id)
		ORDER BY b.created_at`
	rows, err := s.db.Query(ctx, query, string(EventContributionRefund), before.UTC(), string(EventBalanceExpired))
	if err != nil {
		return nil, fmt.Errorf("list expirable refunds: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListForUser returns the user's transactions, most recent first.
func (s *PostgresStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+`
		FROM balance_transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UserBalance sums the user's transactions.
func (s *PostgresStore) UserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM balance_transactions WHERE user_id = $1`
	var total decimal.Decimal
	if err := s.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum user balance: %w", err)
	}
	return total, nil
}

func insertOne(ctx context.Context, tx pgx.Tx, t Transaction) error {
	_, err := tx.Exec(ctx, `INSERT INTO balance_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.ProjectID, t.ContributionID, t.UserID, string(t.EventKind), t.Amount, t.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%s: %w", t.EventKind, ErrDuplicateEvent)
		}
		return fmt.Errorf("insert %s: %w", t.EventKind, err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	if err := row.Scan(&t.ID, &t.ProjectID, &t.ContributionID, &t.UserID, &t.EventKind, &t.Amount, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
