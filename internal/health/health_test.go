package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker()

	snap := tracker.Snapshot()
	assert.Equal(t, StatusOK, snap.Status)
	assert.Empty(t, snap.Components)

	tracker.Record(OK("local", "put"))
	tracker.Record(Degraded("remote", "query", errors.New("deadline exceeded")))

	snap = tracker.Snapshot()
	assert.Equal(t, StatusDegraded, snap.Status)
	assert.Equal(t, 1, snap.Degraded)
	require.Contains(t, snap.Components, "remote")
	assert.Equal(t, "deadline exceeded", snap.Components["remote"].Err)

	// A later success replaces the component's latest result but keeps the count.
	tracker.Record(OK("remote", "query"))
	snap = tracker.Snapshot()
	assert.Equal(t, StatusOK, snap.Status)
	assert.Equal(t, 1, snap.Degraded)

	tracker.Record(Fatal("local", "put", errors.New("disk full")))
	assert.Equal(t, StatusFatal, tracker.Snapshot().Status)

	latest, ok := tracker.Latest("local")
	require.True(t, ok)
	assert.Equal(t, "put", latest.Op)
}

func TestNilTrackerIgnoresResults(t *testing.T) {
	var tracker *Tracker
	assert.NotPanics(t, func() {
		tracker.Record(Degraded("remote", "get", errors.New("offline")))
	})
}
