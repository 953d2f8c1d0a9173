// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/storage"
)

// Ensure SQLiteStore implements the storage interfaces
var (
	_ storage.Store       = (*SQLiteStore)(nil)
	_ storage.OutboxQueue = (*SQLiteStore)(nil)
)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// recordTables maps record types to their tables.
var recordTables = map[models.RecordType]string{
	models.RecordPlant:           "plants",
	models.RecordIdentification:  "identifications",
	models.RecordUser:            "users",
	models.RecordPlantCollection: "plant_collections",
}

// Open prepares a store for the given database path without initializing it.
// Every operation fails with storage.ErrStoreUnavailable until Init succeeds.
func Open(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return &SQLiteStore{path: dbPath}, nil
}

// New creates a new SQLiteStore with the given database path and initializes it.
func New(dbPath string) (*SQLiteStore, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// Init opens the database and runs migrations. Calling it again is a no-op.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the store has a single logical owner and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// conn returns the open database or storage.ErrStoreUnavailable.
func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, storage.ErrStoreUnavailable
	}
	return s.db, nil
}

// Count returns the number of records of the given type.
func (s *SQLiteStore) Count(ctx context.Context, recordType models.RecordType) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	table, ok := recordTables[recordType]
	if !ok {
		return 0, fmt.Errorf("unknown record type: %s", recordType)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Clear deletes every record of the given type.
func (s *SQLiteStore) Clear(ctx context.Context, recordType models.RecordType) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, ok := recordTables[recordType]; !ok {
		return fmt.Errorf("unknown record type: %s", recordType)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(ctx, tx, recordType); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearAll deletes every record and the sync metadata.
// Pending outbox entries are kept: they are still owed to the remote store.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, recordType := range models.RecordTypes {
		if err := clearTx(ctx, tx, recordType); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_meta"); err != nil {
		return fmt.Errorf("failed to clear sync meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func clearTx(ctx context.Context, tx *sql.Tx, recordType models.RecordType) error {
	table := recordTables[recordType]
	if recordType == models.RecordPlant {
		for _, child := range []string{"plant_regions", "plant_common_names"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+child); err != nil {
				return fmt.Errorf("failed to clear %s: %w", child, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// likePattern builds a substring LIKE pattern, escaping wildcards in value.
// Use it with ESCAPE '\'.
func likePattern(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(value) + "%"
}
