package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/soyaya/boardling-sub008/internal/user/domain"
)

const (
	getUserSQL    = `SELECT id, email, created_at FROM users WHERE id = $1`
	createUserSQL = `INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, getUserSQL, id).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, createUserSQL, u.ID, u.Email, u.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
