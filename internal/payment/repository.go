package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound occurs when a payment lookup misses.
var ErrNotFound = errors.New("payment not found")

// Repository reads payment snapshots.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Payment, error)
}

// PostgresRepository reads payments from the platform's PostgreSQL tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a payment snapshot by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	const query = `SELECT id, contribution_id, state, chargedback_at
		FROM payments WHERE id = $1`
	var p Payment
	var chargedBackAt *time.Time
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.ContributionID, &p.State, &chargedBackAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	if chargedBackAt != nil {
		p.ChargedBackAt = chargedBackAt.UTC()
	}
	return p, nil
}
