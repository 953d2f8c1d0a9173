package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/plantid/internal/models"
)

// Enqueue persists a pending remote write and returns its ID.
func (s *SQLiteStore) Enqueue(ctx context.Context, entry *models.OutboxEntry) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.NextAttemptAt.IsZero() {
		entry.NextAttemptAt = entry.CreatedAt
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO outbox (kind, record_id, payload, attempts, next_attempt_at, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Kind), entry.RecordID, entry.Payload, entry.Attempts,
		entry.NextAttemptAt.UnixNano(), entry.LastError, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert outbox entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// DueOutbox returns live entries due at or before now, in enqueue order.
// An entry is held back while an older live entry for the same record is
// pending, so a record's writes reach the remote in the order they were queued.
func (s *SQLiteStore) DueOutbox(ctx context.Context, now time.Time, limit int) ([]*models.OutboxEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, record_id, payload, attempts, next_attempt_at, last_error, created_at
		 FROM outbox WHERE buried = 0 AND next_attempt_at <= ?
		   AND NOT EXISTS (
		       SELECT 1 FROM outbox older
		       WHERE older.record_id = outbox.record_id
		         AND older.buried = 0 AND older.id < outbox.id)
		 ORDER BY id LIMIT ?`,
		now.UnixNano(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.OutboxEntry
	for rows.Next() {
		entry := &models.OutboxEntry{}
		var kind string
		var next, created int64
		if err := rows.Scan(&entry.ID, &kind, &entry.RecordID, &entry.Payload, &entry.Attempts,
			&next, &entry.LastError, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entry.Kind = models.OutboxKind(kind)
		entry.NextAttemptAt = time.Unix(0, next)
		entry.CreatedAt = time.Unix(0, created)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox entries: %w", err)
	}

	return entries, nil
}

// AckOutbox removes a delivered entry.
func (s *SQLiteStore) AckOutbox(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM outbox WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete outbox entry: %w", err)
	}
	return nil
}

// RetryOutbox records a failed attempt and schedules the next one.
func (s *SQLiteStore) RetryOutbox(ctx context.Context, id int64, next time.Time, lastErr string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		next.UnixNano(), lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox entry: %w", err)
	}
	return nil
}

// BuryOutbox stops retrying an entry but keeps it for inspection.
func (s *SQLiteStore) BuryOutbox(ctx context.Context, id int64, lastErr string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, buried = 1, last_error = ? WHERE id = ?`,
		lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to bury outbox entry: %w", err)
	}
	return nil
}

// OutboxDepth returns the number of live entries.
func (s *SQLiteStore) OutboxDepth(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var depth int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox WHERE buried = 0").Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return depth, nil
}
