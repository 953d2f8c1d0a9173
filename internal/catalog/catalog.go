// Package catalog serves plant and user reads through a process-lifetime memo
// backed by the local store, reconciling with the remote store on demand.
//
// Reads go memo, then local store, then remote. Concurrent misses on the same
// key share one load, which is detached from the cancellation of the caller
// that started it. Memo entries have no TTL: they are dropped by
// InvalidateAll, and search results additionally by a completed SyncAll.
// Writes that bypass the catalog (identifications, collections) do not
// invalidate it.
package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/observability"
	"github.com/mmynk/plantid/internal/storage"
)

// DefaultLimit is the page size of the browse helpers.
const DefaultLimit = 50

// Catalog is the read-through cache over the sync engine.
type Catalog struct {
	engine *SyncEngine
	local  storage.Store
	health *health.Tracker
	memo   *memo
	group  singleflight.Group

	defaultLimit int
}

// Stats describes the local catalog and cache.
type Stats struct {
	Counts       map[models.RecordType]int `json:"counts"`
	LastSync     *models.SyncMeta          `json:"lastSync,omitempty"`
	CachedItems  int                       `json:"cachedItems"`
	CachedSearch int                       `json:"cachedSearches"`
	Health       health.Snapshot           `json:"health"`
}

// New creates a catalog. A defaultLimit <= 0 uses DefaultLimit.
func New(engine *SyncEngine, local storage.Store, tracker *health.Tracker, defaultLimit int) *Catalog {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Catalog{
		engine:       engine,
		local:        local,
		health:       tracker,
		memo:         newMemo(),
		defaultLimit: defaultLimit,
	}
}

// GetPlant returns the plant with id, or nil if neither store has it.
func (c *Catalog) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	if v, ok := c.memo.entity(models.RecordPlant, id); ok {
		observability.CacheLookups.WithLabelValues("entity", "hit").Inc()
		return v.(*models.Plant), nil
	}
	observability.CacheLookups.WithLabelValues("entity", "miss").Inc()

	v, err, _ := c.group.Do("plant/"+id, func() (any, error) {
		plant, err := c.engine.GetPlant(context.WithoutCancel(ctx), id)
		if err != nil || plant == nil {
			return nil, err
		}
		c.memo.putEntity(models.RecordPlant, id, plant)
		return plant, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*models.Plant), nil
}

// GetUser returns the user with id, or nil if neither store has it.
func (c *Catalog) GetUser(ctx context.Context, id string) (*models.User, error) {
	if v, ok := c.memo.entity(models.RecordUser, id); ok {
		observability.CacheLookups.WithLabelValues("entity", "hit").Inc()
		return v.(*models.User), nil
	}
	observability.CacheLookups.WithLabelValues("entity", "miss").Inc()

	v, err, _ := c.group.Do("user/"+id, func() (any, error) {
		user, err := c.engine.GetUser(context.WithoutCancel(ctx), id)
		if err != nil || user == nil {
			return nil, err
		}
		c.memo.putEntity(models.RecordUser, id, user)
		return user, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*models.User), nil
}

// Search returns one page of plants matching filters. page is 1-based;
// non-positive page or limit fall back to 1 and the default limit.
func (c *Catalog) Search(ctx context.Context, filters models.Filters, page, limit int) (*models.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = c.defaultLimit
	}

	key := searchKey(filters, page, limit)
	if r, ok := c.memo.search(key); ok {
		observability.CacheLookups.WithLabelValues("search", "hit").Inc()
		return r, nil
	}
	observability.CacheLookups.WithLabelValues("search", "miss").Inc()

	v, err, _ := c.group.Do("search/"+key, func() (any, error) {
		r, err := c.engine.Search(context.WithoutCancel(ctx), filters, page, limit)
		if err != nil {
			return nil, err
		}
		c.memo.putSearch(key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SearchResult), nil
}

// ByCategory returns the first page of plants of the given type.
func (c *Catalog) ByCategory(ctx context.Context, plantType models.PlantType, limit int) (*models.SearchResult, error) {
	return c.Search(ctx, models.Filters{PlantType: plantType}, 1, limit)
}

// ByRegion returns the first page of plants found in region.
func (c *Catalog) ByRegion(ctx context.Context, region string, limit int) (*models.SearchResult, error) {
	return c.Search(ctx, models.Filters{Region: region}, 1, limit)
}

// Endemic returns the first page of endemic plants.
func (c *Catalog) Endemic(ctx context.Context, limit int) (*models.SearchResult, error) {
	return c.Search(ctx, models.Filters{Origin: models.OriginEndemic}, 1, limit)
}

// Native returns the first page of native plants.
func (c *Catalog) Native(ctx context.Context, limit int) (*models.SearchResult, error) {
	return c.Search(ctx, models.Filters{Origin: models.OriginNative}, 1, limit)
}

// SyncAll pulls the remote catalog into the local store, refreshes the
// entity memo with the synced plants and drops every memoized search.
func (c *Catalog) SyncAll(ctx context.Context) (*SyncReport, error) {
	report, err := c.engine.SyncAll(ctx)
	if report != nil {
		for _, p := range report.plants {
			c.memo.putEntity(models.RecordPlant, p.ID, p)
		}
		c.memo.clearSearches()
	}
	return report, err
}

// InvalidateAll empties both memo tables.
func (c *Catalog) InvalidateAll() {
	c.memo.clear()
}

// Stats reports record counts, the last sync, memo sizes and health.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	counts := make(map[models.RecordType]int, len(models.RecordTypes))
	for _, recordType := range models.RecordTypes {
		n, err := c.local.Count(ctx, recordType)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", recordType, err)
		}
		counts[recordType] = n
	}

	meta, err := c.local.SyncMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync meta: %w", err)
	}

	entities, searches := c.memo.size()
	return &Stats{
		Counts:       counts,
		LastSync:     meta,
		CachedItems:  entities,
		CachedSearch: searches,
		Health:       c.health.Snapshot(),
	}, nil
}

// Families returns the botanical families present locally.
func (c *Catalog) Families(ctx context.Context) ([]string, error) {
	return c.local.Families(ctx)
}

// Regions returns the region tags present locally.
func (c *Catalog) Regions(ctx context.Context) ([]string, error) {
	return c.local.Regions(ctx)
}

// PlantTypes returns every plant type.
func (c *Catalog) PlantTypes() []models.PlantType {
	return models.PlantTypes
}
