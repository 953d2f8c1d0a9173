// Package health records the outcome of operations whose failures are not
// propagated to the caller, so degraded states stay observable.
package health

import (
	"sync"
	"time"

	"github.com/mmynk/plantid/internal/observability"
)

// Status classifies an operation outcome.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFatal    Status = "fatal"
)

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusFatal:
		return 2
	}
	return 0
}

// Result is the outcome of one operation.
type Result struct {
	Component string    `json:"component"`
	Op        string    `json:"op"`
	Status    Status    `json:"status"`
	Err       string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// OK returns a successful result.
func OK(component, op string) Result {
	return Result{Component: component, Op: op, Status: StatusOK, At: time.Now()}
}

// Degraded returns a result for a failure the caller recovered from.
func Degraded(component, op string, err error) Result {
	return Result{Component: component, Op: op, Status: StatusDegraded, Err: errString(err), At: time.Now()}
}

// Fatal returns a result for a failure that was propagated.
func Fatal(component, op string, err error) Result {
	return Result{Component: component, Op: op, Status: StatusFatal, Err: errString(err), At: time.Now()}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Snapshot is the aggregated view returned by Tracker.Snapshot.
type Snapshot struct {
	// Status is the worst status among the latest result of each component.
	Status     Status            `json:"status"`
	Components map[string]Result `json:"components"`
	Degraded   int               `json:"degradedTotal"`
}

// Tracker keeps the latest result per component.
// The zero value is not usable; use NewTracker.
type Tracker struct {
	mu       sync.RWMutex
	latest   map[string]Result
	degraded int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]Result)}
}

// Record stores r as the latest result of its component.
// A nil tracker ignores the result.
func (t *Tracker) Record(r Result) {
	if t == nil {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	observability.HealthResults.WithLabelValues(r.Component, string(r.Status)).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[r.Component] = r
	if r.Status == StatusDegraded {
		t.degraded++
	}
}

// Latest returns the latest result for component.
func (t *Tracker) Latest(component string) (Result, bool) {
	if t == nil {
		return Result{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.latest[component]
	return r, ok
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{Status: StatusOK, Components: map[string]Result{}}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Status:     StatusOK,
		Components: make(map[string]Result, len(t.latest)),
		Degraded:   t.degraded,
	}
	for name, r := range t.latest {
		snap.Components[name] = r
		if r.Status.severity() > snap.Status.severity() {
			snap.Status = r.Status
		}
	}
	return snap
}
