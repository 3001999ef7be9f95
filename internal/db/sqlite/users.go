package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/listify/internal/db"
)

// UserRepository handles user database operations.
type UserRepository struct {
	conn *sql.DB
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *db.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id := newID(user.ID)
	now := time.Now().UTC()
	_, err := r.conn.ExecContext(ctx, query,
		id,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Image,
		now,
		now,
	)
	if isUnique(err) {
		return db.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*db.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*db.User, error) {
	query := `
		SELECT id, name, email, password_hash, image, created_at, updated_at
		FROM users
		WHERE ` + column + ` = ?
	`
	var user db.User
	err := r.conn.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}
