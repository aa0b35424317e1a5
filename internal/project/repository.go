package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound occurs when a project lookup misses.
var ErrNotFound = errors.New("project not found")

// Repository reads project snapshots.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Project, error)
}

// PostgresRepository reads projects from the platform's PostgreSQL tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a project snapshot by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Project, error) {
	const query = `SELECT id, user_id, owner_account_type, goal, paid_pledged,
			service_fee, irrf_tax, state, expires_at
		FROM projects WHERE id = $1`
	var p Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.OwnerAccountType, &p.Goal, &p.PaidPledged,
		&p.ServiceFeeRate, &p.IRRFTax, &p.State, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}
