package contribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound occurs when a contribution lookup misses.
var ErrNotFound = errors.New("contribution not found")

// Repository reads contribution snapshots.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Contribution, error)
}

// PostgresRepository reads contributions from the platform's PostgreSQL tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a contribution snapshot by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Contribution, error) {
	const query = `SELECT id, project_id, user_id, value, state,
			refunded_in_balance, created_at
		FROM contributions WHERE id = $1`
	var c Contribution
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ProjectID, &c.UserID, &c.Value, &c.State,
		&c.RefundedInBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contribution{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}
