package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/observability"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/storage"
)

// DefaultSyncCeiling caps the number of plants pulled by SyncAll.
const DefaultSyncCeiling = 1000

const componentRemote = "remote"

// SyncReport summarizes a bulk catalog pull.
type SyncReport struct {
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Status   health.Status `json:"status"`
	LastSync time.Time     `json:"lastSync"`

	plants []*models.Plant
}

// SyncEngine reconciles the local store with the remote store.
// Local data is always preferred; the remote fills gaps and is written back.
type SyncEngine struct {
	local        storage.Store
	remote       remote.Store
	health       *health.Tracker
	ceiling      int
	modelVersion string
	now          func() time.Time
}

// NewSyncEngine creates a sync engine. A ceiling <= 0 uses DefaultSyncCeiling.
func NewSyncEngine(local storage.Store, rs remote.Store, tracker *health.Tracker, ceiling int, modelVersion string) *SyncEngine {
	if ceiling <= 0 {
		ceiling = DefaultSyncCeiling
	}
	return &SyncEngine{
		local:        local,
		remote:       rs,
		health:       tracker,
		ceiling:      ceiling,
		modelVersion: modelVersion,
		now:          time.Now,
	}
}

// Search runs a merged local and remote search and returns one page.
// Remote failures degrade the result to local-only; local failures are returned.
func (e *SyncEngine) Search(ctx context.Context, filters models.Filters, page, limit int) (*models.SearchResult, error) {
	local, err := e.local.SearchPlants(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search local plants: %w", err)
	}

	merged := make([]*models.Plant, 0, len(local))
	seen := make(map[string]bool, len(local))
	for _, p := range local {
		if !seen[p.ID] {
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	if len(local) < limit {
		rows, err := e.remote.QueryPlants(ctx, remote.QueryFromFilters(filters, limit))
		if err != nil {
			slog.Warn("Remote search failed, serving local results", "error", err, "local", len(local))
			e.health.Record(health.Degraded(componentRemote, "query plants", err))
		} else {
			e.health.Record(health.OK(componentRemote, "query plants"))
			for _, p := range rows {
				if seen[p.ID] || !filters.Matches(p) {
					continue
				}
				seen[p.ID] = true
				merged = append(merged, p)
				e.writeBack(ctx, p)
			}
		}
	}

	return paginate(merged, filters, page, limit), nil
}

// GetPlant returns a plant from the local store, falling back to the remote.
// A plant found remotely is written back. Remote failures read as absent.
func (e *SyncEngine) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	plant, err := e.local.GetPlant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get local plant: %w", err)
	}
	if plant != nil {
		return plant, nil
	}

	plant, err = e.remote.GetPlant(ctx, id)
	if err != nil {
		slog.Warn("Remote plant lookup failed", "error", err, "plant_id", id)
		e.health.Record(health.Degraded(componentRemote, "get plant", err))
		return nil, nil
	}
	if plant == nil {
		return nil, nil
	}
	e.writeBack(ctx, plant)
	return plant, nil
}

// GetUser returns a user from the local store, falling back to the remote.
func (e *SyncEngine) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := e.local.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get local user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = e.remote.GetUser(ctx, id)
	if err != nil {
		slog.Warn("Remote user lookup failed", "error", err, "user_id", id)
		e.health.Record(health.Degraded(componentRemote, "get user", err))
		return nil, nil
	}
	if user == nil {
		return nil, nil
	}
	if err := e.local.PutUser(ctx, user); err != nil {
		slog.Warn("Failed to write back user", "error", err, "user_id", id)
		observability.WriteBacks.WithLabelValues("failed").Inc()
	} else {
		observability.WriteBacks.WithLabelValues("ok").Inc()
	}
	return user, nil
}

// SyncAll pulls up to the ceiling of remote plants into the local store.
// Per-record failures are counted and skipped. A failed remote listing
// returns an error wrapping remote.ErrRemoteUnavailable and changes nothing.
func (e *SyncEngine) SyncAll(ctx context.Context) (*SyncReport, error) {
	plants, err := e.remote.ListPlants(ctx, e.ceiling)
	if err != nil {
		e.health.Record(health.Degraded(componentRemote, "list plants", err))
		return nil, fmt.Errorf("failed to list remote plants: %w", err)
	}
	e.health.Record(health.OK(componentRemote, "list plants"))

	report := &SyncReport{Status: health.StatusOK, LastSync: e.now()}
	for _, p := range plants {
		if err := e.local.PutPlant(ctx, p); err != nil {
			slog.Warn("Failed to sync plant", "error", err, "plant_id", p.ID)
			observability.SyncRecords.WithLabelValues("failed").Inc()
			report.Failed++
			continue
		}
		observability.SyncRecords.WithLabelValues("ok").Inc()
		report.Synced++
		report.plants = append(report.plants, p)
	}
	if report.Failed > 0 {
		report.Status = health.StatusDegraded
	}

	total, err := e.local.Count(ctx, models.RecordPlant)
	if err != nil {
		return report, fmt.Errorf("failed to count plants: %w", err)
	}
	meta := &models.SyncMeta{
		ModelVersion: e.modelVersion,
		LastSync:     report.LastSync,
		TotalSize:    total,
		Synced:       report.Synced,
		Failed:       report.Failed,
	}
	if err := e.local.SaveSyncMeta(ctx, meta); err != nil {
		return report, fmt.Errorf("failed to save sync meta: %w", err)
	}

	slog.Info("Catalog synced", "synced", report.Synced, "failed", report.Failed, "total", total)
	return report, nil
}

func (e *SyncEngine) writeBack(ctx context.Context, p *models.Plant) {
	if err := e.local.PutPlant(ctx, p); err != nil {
		slog.Warn("Failed to write back plant", "error", err, "plant_id", p.ID)
		observability.WriteBacks.WithLabelValues("failed").Inc()
		return
	}
	observability.WriteBacks.WithLabelValues("ok").Inc()
}

// paginate returns the 1-based page of records.
func paginate(records []*models.Plant, filters models.Filters, page, limit int) *models.SearchResult {
	total := len(records)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &models.SearchResult{
		Records: records[start:end],
		Total:   total,
		HasMore: end < total,
		Filters: filters,
	}
}
