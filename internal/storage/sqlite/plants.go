package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/storage"
)

// PutPlant upserts a plant and rewrites its region and common-name index rows.
func (s *SQLiteStore) PutPlant(ctx context.Context, plant *models.Plant) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if plant == nil || plant.ID == "" {
		return fmt.Errorf("plant id is required")
	}

	body, err := encodeRecord(plant)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO plants (id, scientific_name, family, origin, plant_type, conservation_status, schema_version, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     scientific_name = excluded.scientific_name,
		     family = excluded.family,
		     origin = excluded.origin,
		     plant_type = excluded.plant_type,
		     conservation_status = excluded.conservation_status,
		     schema_version = excluded.schema_version,
		     body = excluded.body,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at`,
		plant.ID, plant.ScientificName, plant.Family, string(plant.Origin), string(plant.PlantType),
		plant.Description.ConservationStatus, plantSchemaVersion, body,
		plant.CreatedAt.UnixNano(), plant.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert plant: %w", err)
	}

	// Rewrite index rows
	if _, err := tx.ExecContext(ctx, "DELETE FROM plant_regions WHERE plant_id = ?", plant.ID); err != nil {
		return fmt.Errorf("failed to clear plant regions: %w", err)
	}
	for _, region := range plant.Regions {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO plant_regions (plant_id, region) VALUES (?, ?)",
			plant.ID, region,
		)
		if err != nil {
			return fmt.Errorf("failed to insert plant region: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM plant_common_names WHERE plant_id = ?", plant.ID); err != nil {
		return fmt.Errorf("failed to clear common names: %w", err)
	}
	for i, name := range plant.CommonNames {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO plant_common_names (plant_id, position, name) VALUES (?, ?, ?)",
			plant.ID, i, name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert common name: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetPlant retrieves a plant by ID. Returns nil if it does not exist.
func (s *SQLiteStore) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var version int
	var body string
	err = db.QueryRowContext(ctx,
		"SELECT schema_version, body FROM plants WHERE id = ?",
		id,
	).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Plant not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plant: %w", err)
	}

	plant := &models.Plant{}
	if err := decodeRecord(body, version, plantSchemaVersion, plantMigrations, plant); err != nil {
		return nil, fmt.Errorf("plant %s: %w", id, err)
	}
	return plant, nil
}

// SearchPlants returns plants matching all set filters, ordered by scientific name.
func (s *SQLiteStore) SearchPlants(ctx context.Context, filters models.Filters) ([]*models.Plant, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `SELECT p.schema_version, p.body FROM plants p WHERE 1=1`
	var args []any

	if filters.Region != "" {
		query += ` AND EXISTS (SELECT 1 FROM plant_regions r WHERE r.plant_id = p.id AND r.region LIKE ? ESCAPE '\')`
		args = append(args, likePattern(filters.Region))
	}
	if filters.PlantType != "" {
		query += ` AND p.plant_type = ?`
		args = append(args, string(filters.PlantType))
	}
	if filters.Family != "" {
		query += ` AND p.family = ?`
		args = append(args, filters.Family)
	}
	if filters.Origin != "" {
		query += ` AND p.origin = ?`
		args = append(args, string(filters.Origin))
	}
	if filters.ConservationStatus != "" {
		query += ` AND p.conservation_status = ?`
		args = append(args, filters.ConservationStatus)
	}
	if filters.SearchTerm != "" {
		pattern := likePattern(filters.SearchTerm)
		query += ` AND (p.scientific_name LIKE ? ESCAPE '\'` +
			` OR EXISTS (SELECT 1 FROM plant_common_names c WHERE c.plant_id = p.id AND c.name LIKE ? ESCAPE '\'))`
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY p.scientific_name, p.id LIMIT ?`
	args = append(args, storage.SearchPageSize)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search plants: %w", err)
	}
	defer rows.Close()

	var plants []*models.Plant
	for rows.Next() {
		var version int
		var body string
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("failed to scan plant: %w", err)
		}
		plant := &models.Plant{}
		if err := decodeRecord(body, version, plantSchemaVersion, plantMigrations, plant); err != nil {
			return nil, err
		}
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plants: %w", err)
	}

	return plants, nil
}

// Families returns the distinct botanical families in the catalog.
func (s *SQLiteStore) Families(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "SELECT DISTINCT family FROM plants WHERE family != '' ORDER BY family")
}

// Regions returns the distinct region tags in the catalog.
func (s *SQLiteStore) Regions(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "SELECT DISTINCT region FROM plant_regions ORDER BY region")
}

func (s *SQLiteStore) distinct(ctx context.Context, query string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct values: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return values, nil
}
