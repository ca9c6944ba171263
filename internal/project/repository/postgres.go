package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/soyaya/boardling-sub008/internal/project/domain"
)

const (
	getProjectSQL    = `SELECT id, user_id, name, created_at FROM projects WHERE id = $1`
	listByUserSQL    = `SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 ORDER BY created_at, id`
	createProjectSQL = `INSERT INTO projects (id, user_id, name, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a project repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the project for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, getProjectSQL, id).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the user's projects, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, listByUserSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CreateIfAbsent inserts p unless a project with the same id exists. Reports whether a row was written.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, p *domain.Project) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, createProjectSQL, p.ID, p.UserID, p.Name, p.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
