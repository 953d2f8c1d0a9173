package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/storage/sqlite"
)

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

func newTestOutbox(t *testing.T, images ImageUploader, cfg Config) (*Outbox, *sqlite.SQLiteStore, *remote.Memory) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rs := remote.NewMemory()
	return New(store, rs, images, health.NewTracker(), cfg), store, rs
}

func TestDrainDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	uploader := &fakeUploader{}
	o, store, rs := newTestOutbox(t, uploader, Config{})

	identification := &models.Identification{ID: "i1", UserID: "u1", PlantID: "p1",
		Predictions: []models.Prediction{{PlantID: "p1", Confidence: 0.9}}}
	require.NoError(t, o.Enqueue(ctx, models.OutboxSetIdentification, "i1", identification))
	require.NoError(t, o.Enqueue(ctx, models.OutboxConfirmation, "i1", ConfirmationPayload{
		Confirmation: remote.Confirmation{ConfirmedPlantID: "p1", IsConfirmed: true},
	}))
	require.NoError(t, o.Enqueue(ctx, models.OutboxSetCollection, "c1", &models.PlantCollection{ID: "c1", UserID: "u1", PlantID: "p1"}))
	require.NoError(t, o.Enqueue(ctx, models.OutboxImageUpload, "identifications/i1.jpg", ImagePayload{Path: "/tmp/i1.jpg", Key: "identifications/i1.jpg"}))

	delivered, err := o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, delivered)

	mirrored, ok := rs.Identification("i1")
	require.True(t, ok)
	assert.True(t, mirrored.IsConfirmed)
	assert.Equal(t, 1, rs.Collections())
	assert.Equal(t, []string{"identifications/i1.jpg"}, uploader.keys)

	depth, err := store.OutboxDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestDrainRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	o, store, rs := newTestOutbox(t, nil, Config{BaseBackoff: time.Second, MaxBackoff: 4 * time.Second})
	now := time.Unix(1700000000, 0)
	o.now = func() time.Time { return now }

	require.NoError(t, o.Enqueue(ctx, models.OutboxSetIdentification, "i1", &models.Identification{ID: "i1"}))
	require.NoError(t, o.Enqueue(ctx, models.OutboxConfirmation, "i1", ConfirmationPayload{}))
	rs.SetFailure(errors.New("offline"))

	delivered, err := o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	// The confirmation waits behind the failed set.
	assert.Equal(t, 1, rs.Calls("set identification"))
	assert.Equal(t, 0, rs.Calls("update confirmation"))

	due, err := store.DueOutbox(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	// The confirmation is withheld behind the pending set.
	require.Len(t, due, 1)
	first := due[0]
	require.Equal(t, models.OutboxSetIdentification, first.Kind)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, now.Add(time.Second).UnixNano(), first.NextAttemptAt.UnixNano())

	rs.SetFailure(nil)
	now = now.Add(time.Second)
	delivered, err = o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, rs.Calls("update confirmation"))
}

func TestConfirmationWaitsForRescheduledSet(t *testing.T) {
	ctx := context.Background()
	o, store, rs := newTestOutbox(t, nil, Config{BaseBackoff: time.Minute, MaxBackoff: time.Hour})
	now := time.Unix(1700000000, 0)
	o.now = func() time.Time { return now }

	require.NoError(t, o.Enqueue(ctx, models.OutboxSetIdentification, "i1", &models.Identification{ID: "i1"}))
	rs.SetFailure(errors.New("offline"))
	delivered, err := o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	// The remote recovers while the set is backing off, and a confirmation arrives.
	rs.SetFailure(nil)
	now = now.Add(time.Second)
	require.NoError(t, o.Enqueue(ctx, models.OutboxConfirmation, "i1", ConfirmationPayload{
		Confirmation: remote.Confirmation{ConfirmedPlantID: "p1", IsConfirmed: true},
	}))

	delivered, err = o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, rs.Calls("update confirmation"))

	depth, err := store.OutboxDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	now = now.Add(time.Minute)
	delivered, err = o.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	mirrored, ok := rs.Identification("i1")
	require.True(t, ok)
	assert.True(t, mirrored.IsConfirmed)
	c, confirmed := rs.Confirmation("i1")
	require.True(t, confirmed)
	assert.Equal(t, "p1", c.ConfirmedPlantID)
}

func TestBackoffIsCapped(t *testing.T) {
	o := New(nil, nil, nil, nil, Config{BaseBackoff: 2 * time.Second, MaxBackoff: 5 * time.Minute})

	assert.Equal(t, 2*time.Second, o.backoff(0))
	assert.Equal(t, 4*time.Second, o.backoff(1))
	assert.Equal(t, 8*time.Second, o.backoff(2))
	assert.Equal(t, 5*time.Minute, o.backoff(20))
}

func TestDrainBuriesAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	o, store, rs := newTestOutbox(t, nil, Config{MaxAttempts: 1})
	rs.SetFailure(errors.New("rejected"))

	require.NoError(t, o.Enqueue(ctx, models.OutboxSetCollection, "c1", &models.PlantCollection{ID: "c1"}))
	_, err := o.Drain(ctx)
	require.NoError(t, err)

	depth, err := store.OutboxDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestImageUploadWithoutStoreIsBuried(t *testing.T) {
	ctx := context.Background()
	o, store, _ := newTestOutbox(t, nil, Config{})

	require.NoError(t, o.Enqueue(ctx, models.OutboxImageUpload, "k", ImagePayload{Path: "/tmp/x.jpg", Key: "k"}))
	_, err := o.Drain(ctx)
	require.NoError(t, err)

	depth, err := store.OutboxDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestRunDrainsOnKickAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	ctx, cancel := context.WithCancel(context.Background())
	o, store, rs := newTestOutbox(t, nil, Config{Interval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.NoError(t, o.Enqueue(ctx, models.OutboxSetCollection, "c1", &models.PlantCollection{ID: "c1"}))
	require.Eventually(t, func() bool { return rs.Collections() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	depth, err := store.OutboxDepth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}
