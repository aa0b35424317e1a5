package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound occurs when a user lookup misses.
var ErrNotFound = errors.New("user not found")

// User is the slice of the platform's account record this service needs to
// address notifications.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Repository reads user records.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (User, error)
}

// PostgresRepository reads users from the platform's PostgreSQL tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a user by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
