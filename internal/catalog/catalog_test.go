package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/storage/sqlite"
)

type fixture struct {
	local   *sqlite.SQLiteStore
	remote  *remote.Memory
	health  *health.Tracker
	catalog *Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	local, err := sqlite.New(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	rs := remote.NewMemory()
	tracker := health.NewTracker()
	engine := NewSyncEngine(local, rs, tracker, 0, "test")
	return &fixture{
		local:   local,
		remote:  rs,
		health:  tracker,
		catalog: New(engine, local, tracker, 0),
	}
}

func cactus(id, name string) *models.Plant {
	return &models.Plant{
		ID:             id,
		ScientificName: name,
		CommonNames:    []string{name + " común"},
		Family:         "Cactaceae",
		Origin:         models.OriginNative,
		PlantType:      models.PlantTypeCactus,
		Regions:        []string{"Sonora"},
	}
}

func ids(plants []*models.Plant) []string {
	var out []string
	for _, p := range plants {
		out = append(out, p.ID)
	}
	return out
}

func TestSearchFallsBackToRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))
	f.remote.PutPlant(cactus("c2", "Ferocactus wislizeni"))

	result, err := f.catalog.Search(ctx, models.Filters{Family: "Cactaceae"}, 1, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, ids(result.Records))
	assert.Equal(t, 2, result.Total)
	assert.False(t, result.HasMore)

	// Remote records are written back.
	count, err := f.local.Count(ctx, models.RecordPlant)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSearchLocalWinsOnDuplicateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	localCopy := cactus("c1", "Carnegiea gigantea")
	localCopy.Description.Habitat = "local"
	require.NoError(t, f.local.PutPlant(ctx, localCopy))

	remoteCopy := cactus("c1", "Carnegiea gigantea")
	remoteCopy.Description.Habitat = "remote"
	f.remote.PutPlant(remoteCopy)

	result, err := f.catalog.Search(ctx, models.Filters{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "local", result.Records[0].Description.Habitat)

	stored, err := f.local.GetPlant(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "local", stored.Description.Habitat)
}

func TestSearchDropsRemoteRowsFailingFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))
	f.remote.PutPlant(cactus("c2", "Ferocactus wislizeni"))

	filters := models.Filters{Family: "Cactaceae", SearchTerm: "ferocactus"}
	result, err := f.catalog.Search(ctx, filters, 1, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"c2"}, ids(result.Records))
	for _, p := range result.Records {
		assert.True(t, filters.Matches(p))
	}
}

func TestSearchServesLocalWhenRemoteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.PutPlant(ctx, cactus("c1", "Carnegiea gigantea")))
	f.remote.PutPlant(cactus("c2", "Ferocactus wislizeni"))
	f.remote.SetFailure(errors.New("deadline exceeded"))

	result, err := f.catalog.Search(ctx, models.Filters{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(result.Records))

	latest, ok := f.health.Latest("remote")
	require.True(t, ok)
	assert.Equal(t, health.StatusDegraded, latest.Status)
}

func TestSearchSkipsRemoteWhenLocalFillsPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.PutPlant(ctx, cactus("c1", "Carnegiea gigantea")))
	require.NoError(t, f.local.PutPlant(ctx, cactus("c2", "Ferocactus wislizeni")))

	_, err := f.catalog.Search(ctx, models.Filters{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, f.remote.Calls("query plants"))
}

func TestSearchPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.local.PutPlant(ctx, cactus(fmt.Sprintf("c%d", i), fmt.Sprintf("Cactus %d", i))))
	}

	first, err := f.catalog.Search(ctx, models.Filters{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, ids(first.Records))
	assert.Equal(t, 5, first.Total)
	assert.True(t, first.HasMore)

	last, err := f.catalog.Search(ctx, models.Filters{}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c4"}, ids(last.Records))
	assert.False(t, last.HasMore)

	beyond, err := f.catalog.Search(ctx, models.Filters{}, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Records)
	assert.False(t, beyond.HasMore)
}

func TestSearchIsMemoized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))

	for i := 0; i < 3; i++ {
		_, err := f.catalog.Search(ctx, models.Filters{Family: "Cactaceae"}, 1, 20)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.remote.Calls("query plants"))

	f.catalog.InvalidateAll()
	_, err := f.catalog.Search(ctx, models.Filters{Family: "Cactaceae"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, f.remote.Calls("query plants"))
}

func TestConcurrentSearchMissesAreCollapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.catalog.Search(ctx, models.Filters{}, 1, 20)
			assert.NoError(t, err)
			assert.Len(t, result.Records, 1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, f.remote.Calls("query plants"), 8)
	assert.GreaterOrEqual(t, f.remote.Calls("query plants"), 1)
}

func TestSyncAllInvalidatesSearches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.SetFailure(errors.New("offline"))

	before, err := f.catalog.Search(ctx, models.Filters{}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, before.Records)

	f.remote.SetFailure(nil)
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))
	f.remote.PutPlant(cactus("c2", "Ferocactus wislizeni"))

	report, err := f.catalog.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, health.StatusOK, report.Status)

	after, err := f.catalog.Search(ctx, models.Filters{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids(after.Records))

	meta, err := f.local.SyncMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.TotalSize)
	assert.Equal(t, "test", meta.ModelVersion)

	// Synced plants are served from the memo.
	calls := f.remote.Calls("get plant")
	p, err := f.catalog.GetPlant(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, calls, f.remote.Calls("get plant"))
}

func TestSyncAllRemoteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.PutPlant(ctx, cactus("c1", "Carnegiea gigantea")))
	f.remote.SetFailure(errors.New("offline"))

	report, err := f.catalog.SyncAll(ctx)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, remote.ErrRemoteUnavailable)

	count, err := f.local.Count(ctx, models.RecordPlant)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetPlant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))

	t.Run("remote hit is written back", func(t *testing.T) {
		p, err := f.catalog.GetPlant(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, p)

		stored, err := f.local.GetPlant(ctx, "c1")
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})

	t.Run("absent everywhere is nil", func(t *testing.T) {
		p, err := f.catalog.GetPlant(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("remote failure reads as absent", func(t *testing.T) {
		f.remote.SetFailure(errors.New("offline"))
		defer f.remote.SetFailure(nil)

		p, err := f.catalog.GetPlant(ctx, "other")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestGetUserWritesBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.PutUser(&models.User{ID: "u1", Email: "ana@example.com"})

	u, err := f.catalog.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)

	stored, err := f.local.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ana@example.com", stored.Email)
}

func TestBrowseHelpers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	endemic := cactus("e1", "Echinocactus grusonii")
	endemic.Origin = models.OriginEndemic
	endemic.Regions = []string{"Querétaro"}
	require.NoError(t, f.local.PutPlant(ctx, endemic))
	require.NoError(t, f.local.PutPlant(ctx, cactus("c1", "Carnegiea gigantea")))

	result, err := f.catalog.Endemic(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids(result.Records))

	result, err = f.catalog.Native(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(result.Records))

	result, err = f.catalog.ByRegion(ctx, "Sonora", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(result.Records))

	result, err = f.catalog.ByCategory(ctx, models.PlantTypeCactus, 10)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)

	stats, err := f.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Counts[models.RecordPlant])
	assert.Equal(t, 4, stats.CachedSearch)
	assert.Equal(t, models.PlantTypes, f.catalog.PlantTypes())
}

// blockingRemote holds GetPlant until released, then honours the context it was given.
type blockingRemote struct {
	*remote.Memory
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	close(b.entered)
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Memory.GetPlant(ctx, id)
}

func TestSharedLoadSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.remote.PutPlant(cactus("c1", "Carnegiea gigantea"))
	rs := &blockingRemote{Memory: f.remote, entered: make(chan struct{}), release: make(chan struct{})}
	cat := New(NewSyncEngine(f.local, rs, f.health, 0, "test"), f.local, f.health, 0)

	type result struct {
		plant *models.Plant
		err   error
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan result, 1)
	go func() {
		plant, err := cat.GetPlant(ctx, "c1")
		done <- result{plant, err}
	}()

	<-rs.entered
	cancel()
	close(rs.release)

	r := <-done
	require.NoError(t, r.err)
	require.NotNil(t, r.plant, "the load shared with other waiters must not see the caller's cancellation")
	assert.Equal(t, "c1", r.plant.ID)

	stored, err := f.local.GetPlant(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, stored)

	// Memoized: no second remote call.
	again, err := cat.GetPlant(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", again.ID)
	assert.Equal(t, 1, f.remote.Calls("get plant"))
}
