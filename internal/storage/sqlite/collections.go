package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/plantid/internal/models"
)

// PutCollection upserts a personal collection entry.
// No uniqueness is enforced across (user_id, plant_id).
func (s *SQLiteStore) PutCollection(ctx context.Context, collection *models.PlantCollection) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if collection == nil || collection.ID == "" {
		return fmt.Errorf("collection id is required")
	}

	body, err := encodeRecord(collection)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO plant_collections (id, user_id, plant_id, schema_version, body, added_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     user_id = excluded.user_id,
		     plant_id = excluded.plant_id,
		     schema_version = excluded.schema_version,
		     body = excluded.body,
		     added_at = excluded.added_at`,
		collection.ID, collection.UserID, collection.PlantID,
		collectionSchemaVersion, body, collection.AddedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert plant collection: %w", err)
	}

	return nil
}

// GetCollection retrieves a collection entry by ID. Returns nil if it does not exist.
func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*models.PlantCollection, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var version int
	var body string
	err = db.QueryRowContext(ctx,
		"SELECT schema_version, body FROM plant_collections WHERE id = ?",
		id,
	).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Collection entry not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plant collection: %w", err)
	}

	collection := &models.PlantCollection{}
	if err := decodeRecord(body, version, collectionSchemaVersion, collectionMigrations, collection); err != nil {
		return nil, fmt.Errorf("plant collection %s: %w", id, err)
	}
	return collection, nil
}

// ListCollectionsByUser retrieves a user's collection entries, newest first.
func (s *SQLiteStore) ListCollectionsByUser(ctx context.Context, userID string) ([]*models.PlantCollection, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT schema_version, body FROM plant_collections
		 WHERE user_id = ? ORDER BY added_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plant collections by user: %w", err)
	}
	defer rows.Close()

	var collections []*models.PlantCollection
	for rows.Next() {
		var version int
		var body string
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("failed to scan plant collection: %w", err)
		}
		collection := &models.PlantCollection{}
		if err := decodeRecord(body, version, collectionSchemaVersion, collectionMigrations, collection); err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plant collections: %w", err)
	}

	return collections, nil
}
