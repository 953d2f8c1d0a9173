// Package storage provides abstractions for the device-local record store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/plantid/internal/models"
)

// SearchPageSize caps the number of plants a local search returns.
const SearchPageSize = 100

// ErrStoreUnavailable is returned by every operation invoked before Init.
var ErrStoreUnavailable = errors.New("local store unavailable: not initialized")

// Store defines the local record store.
// This abstraction keeps the catalog and workflow independent of SQLite.
//
// Lookups return nil and no error when a record is absent.
type Store interface {
	// Init opens the schema, creating tables and indices if absent.
	// It is idempotent.
	Init(ctx context.Context) error

	// PutPlant upserts a plant, replacing all fields.
	PutPlant(ctx context.Context, plant *models.Plant) error
	GetPlant(ctx context.Context, id string) (*models.Plant, error)

	// SearchPlants returns plants matching every set filter, ordered by
	// scientific name and capped at SearchPageSize.
	SearchPlants(ctx context.Context, filters models.Filters) ([]*models.Plant, error)

	// Families and Regions return the distinct values present in the catalog.
	Families(ctx context.Context) ([]string, error)
	Regions(ctx context.Context) ([]string, error)

	PutIdentification(ctx context.Context, identification *models.Identification) error
	GetIdentification(ctx context.Context, id string) (*models.Identification, error)

	// ListIdentificationsByUser returns a user's identifications, newest first.
	ListIdentificationsByUser(ctx context.Context, userID string) ([]*models.Identification, error)

	PutUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	PutCollection(ctx context.Context, collection *models.PlantCollection) error
	GetCollection(ctx context.Context, id string) (*models.PlantCollection, error)

	// ListCollectionsByUser returns a user's collection entries, newest first.
	ListCollectionsByUser(ctx context.Context, userID string) ([]*models.PlantCollection, error)

	Count(ctx context.Context, recordType models.RecordType) (int, error)
	Clear(ctx context.Context, recordType models.RecordType) error
	ClearAll(ctx context.Context) error

	// SaveSyncMeta replaces the "last full sync" singleton.
	SaveSyncMeta(ctx context.Context, meta *models.SyncMeta) error

	// SyncMeta returns the singleton, or nil if no sync has completed.
	SyncMeta(ctx context.Context) (*models.SyncMeta, error)

	// Close releases any resources held by the store.
	Close() error
}

// OutboxQueue is the durable queue of pending remote writes.
type OutboxQueue interface {
	// Enqueue appends an entry and returns its assigned ID.
	Enqueue(ctx context.Context, entry *models.OutboxEntry) (int64, error)

	// DueOutbox returns up to limit live entries whose next attempt is at or before now,
	// in enqueue order. Entries behind an older live entry for the same record are withheld.
	DueOutbox(ctx context.Context, now time.Time, limit int) ([]*models.OutboxEntry, error)

	// AckOutbox removes a delivered entry.
	AckOutbox(ctx context.Context, id int64) error

	// RetryOutbox records a failed attempt and schedules the next one.
	RetryOutbox(ctx context.Context, id int64, next time.Time, lastErr string) error

	// BuryOutbox stops retrying an entry but keeps it for inspection.
	BuryOutbox(ctx context.Context, id int64, lastErr string) error

	// OutboxDepth returns the number of live (not buried) entries.
	OutboxDepth(ctx context.Context) (int, error)
}
