package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/plantid/internal/models"
)

// PutUser upserts a user profile.
func (s *SQLiteStore) PutUser(ctx context.Context, user *models.User) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if user == nil || user.ID == "" {
		return fmt.Errorf("user id is required")
	}

	body, err := encodeRecord(user)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, schema_version, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    email = excluded.email,
		    schema_version = excluded.schema_version,
		    body = excluded.body,
		    updated_at = excluded.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		userSchemaVersion,
		body,
		user.UpdatedAt.UnixNano(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by their ID. Returns nil if it does not exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT schema_version, body
		FROM users
		WHERE id = ?
	`

	var version int
	var body string
	err = db.QueryRowContext(ctx, query, id).Scan(&version, &body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	user := &models.User{}
	if err := decodeRecord(body, version, userSchemaVersion, nil, user); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return user, nil
}
