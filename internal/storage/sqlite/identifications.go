package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/plantid/internal/models"
)

// PutIdentification upserts an identification.
func (s *SQLiteStore) PutIdentification(ctx context.Context, identification *models.Identification) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if identification == nil || identification.ID == "" {
		return fmt.Errorf("identification id is required")
	}
	if err := identification.Validate(); err != nil {
		return fmt.Errorf("invalid identification %s: %w", identification.ID, err)
	}

	body, err := encodeRecord(identification)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO identifications (id, user_id, plant_id, confirmed_plant_id, is_confirmed, schema_version, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     user_id = excluded.user_id,
		     plant_id = excluded.plant_id,
		     confirmed_plant_id = excluded.confirmed_plant_id,
		     is_confirmed = excluded.is_confirmed,
		     schema_version = excluded.schema_version,
		     body = excluded.body,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at`,
		identification.ID, identification.UserID,
		nullString(identification.PlantID), nullString(identification.ConfirmedPlantID),
		identification.IsConfirmed, identificationSchemaVersion, body,
		identification.CreatedAt.UnixNano(), identification.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert identification: %w", err)
	}

	return nil
}

// GetIdentification retrieves an identification by ID. Returns nil if it does not exist.
func (s *SQLiteStore) GetIdentification(ctx context.Context, id string) (*models.Identification, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var version int
	var body string
	err = db.QueryRowContext(ctx,
		"SELECT schema_version, body FROM identifications WHERE id = ?",
		id,
	).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Identification not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identification: %w", err)
	}

	identification := &models.Identification{}
	if err := decodeRecord(body, version, identificationSchemaVersion, nil, identification); err != nil {
		return nil, fmt.Errorf("identification %s: %w", id, err)
	}
	return identification, nil
}

// ListIdentificationsByUser retrieves a user's identifications, newest first.
func (s *SQLiteStore) ListIdentificationsByUser(ctx context.Context, userID string) ([]*models.Identification, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT schema_version, body FROM identifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifications by user: %w", err)
	}
	defer rows.Close()

	var identifications []*models.Identification
	for rows.Next() {
		var version int
		var body string
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("failed to scan identification: %w", err)
		}
		identification := &models.Identification{}
		if err := decodeRecord(body, version, identificationSchemaVersion, nil, identification); err != nil {
			return nil, err
		}
		identifications = append(identifications, identification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identifications: %w", err)
	}

	return identifications, nil
}

// nullString stores empty optional references as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
