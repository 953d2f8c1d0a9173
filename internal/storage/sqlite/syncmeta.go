package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/plantid/internal/models"
)

// SaveSyncMeta replaces the "last full sync" singleton.
func (s *SQLiteStore) SaveSyncMeta(ctx context.Context, meta *models.SyncMeta) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	body, err := encodeRecord(meta)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO sync_meta (id, body, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		body, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save sync meta: %w", err)
	}
	return nil
}

// SyncMeta returns the "last full sync" singleton, or nil if no sync has completed.
func (s *SQLiteStore) SyncMeta(ctx context.Context) (*models.SyncMeta, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var body string
	err = db.QueryRowContext(ctx, "SELECT body FROM sync_meta WHERE id = 1").Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync meta: %w", err)
	}

	meta := &models.SyncMeta{}
	if err := decodeRecord(body, syncMetaSchemaVersion, syncMetaSchemaVersion, nil, meta); err != nil {
		return nil, err
	}
	return meta, nil
}
