// Package outbox mirrors local writes to the remote store through a durable queue.
//
// Every remote write is first persisted as an outbox entry next to the local
// record, then delivered by a single background drainer. Failed deliveries are
// retried with exponential backoff; entries that can never succeed, or that
// exceed the attempt ceiling, are buried and kept for inspection.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/observability"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/storage"
)

const componentOutbox = "outbox"

var errNoImageStore = errors.New("no image store configured")

// ImageUploader copies a local image file to object storage.
type ImageUploader interface {
	Upload(ctx context.Context, key, path string) error
}

// Config controls draining and retries.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// MaxAttempts buries an entry after this many failed deliveries. Zero never buries.
	MaxAttempts int
}

// ConfirmationPayload is the payload of an OutboxConfirmation entry.
type ConfirmationPayload struct {
	Confirmation remote.Confirmation `json:"confirmation"`
}

// ImagePayload is the payload of an OutboxImageUpload entry.
type ImagePayload struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

// permanentError marks a delivery that can never succeed.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Outbox enqueues and delivers pending remote writes.
type Outbox struct {
	queue  storage.OutboxQueue
	remote remote.Store
	images ImageUploader
	health *health.Tracker
	cfg    Config
	now    func() time.Time
	kick   chan struct{}
}

// New creates an outbox. images may be nil, in which case image uploads are buried.
func New(queue storage.OutboxQueue, rs remote.Store, images ImageUploader, tracker *health.Tracker, cfg Config) *Outbox {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &Outbox{
		queue:  queue,
		remote: rs,
		images: images,
		health: tracker,
		cfg:    cfg,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}
}

// Enqueue persists a remote write for kind and record. payload is JSON-encoded.
func (o *Outbox) Enqueue(ctx context.Context, kind models.OutboxKind, recordID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}

	now := o.now()
	_, err = o.queue.Enqueue(ctx, &models.OutboxEntry{
		Kind:          kind,
		RecordID:      recordID,
		Payload:       data,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}

	select {
	case o.kick <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the queue on every tick and after every enqueue until ctx is done.
func (o *Outbox) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	slog.Info("Outbox drainer started", "interval", o.cfg.Interval)
	for {
		if _, err := o.Drain(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Outbox drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Outbox drainer stopped")
			return nil
		case <-ticker.C:
		case <-o.kick:
		}
	}
}

// Drain delivers due entries and returns how many were delivered. It keeps
// pulling batches while entries are delivered, so writes released by an
// earlier delivery for the same record go out in the same drain.
// Only local queue failures are returned; delivery failures are rescheduled.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for ctx.Err() == nil {
		n, err := o.drainBatch(ctx)
		delivered += n
		if err != nil {
			return delivered, err
		}
		if n == 0 {
			break
		}
	}

	if depth, err := o.queue.OutboxDepth(ctx); err == nil {
		observability.OutboxDepth.Set(float64(depth))
	}
	if delivered > 0 {
		o.health.Record(health.OK(componentOutbox, "deliver"))
	}
	return delivered, nil
}

func (o *Outbox) drainBatch(ctx context.Context) (int, error) {
	entries, err := o.queue.DueOutbox(ctx, o.now(), o.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due entries: %w", err)
	}

	delivered := 0
	// Entries for a record stay ordered: once one fails, later ones wait.
	blocked := make(map[string]bool)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if blocked[entry.RecordID] {
			continue
		}

		err := o.deliver(ctx, entry)
		if err == nil {
			if err := o.queue.AckOutbox(ctx, entry.ID); err != nil {
				return delivered, fmt.Errorf("ack entry %d: %w", entry.ID, err)
			}
			observability.OutboxAttempts.WithLabelValues(string(entry.Kind), "ok").Inc()
			delivered++
			continue
		}

		blocked[entry.RecordID] = true
		if err := o.fail(ctx, entry, err); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func (o *Outbox) fail(ctx context.Context, entry *models.OutboxEntry, cause error) error {
	attempts := entry.Attempts + 1
	o.health.Record(health.Degraded(componentOutbox, "deliver "+string(entry.Kind), cause))

	var permanent permanentError
	if errors.As(cause, &permanent) || (o.cfg.MaxAttempts > 0 && attempts >= o.cfg.MaxAttempts) {
		slog.Error("Burying outbox entry", "error", cause, "kind", entry.Kind, "record_id", entry.RecordID, "attempts", attempts)
		observability.OutboxAttempts.WithLabelValues(string(entry.Kind), "buried").Inc()
		if err := o.queue.BuryOutbox(ctx, entry.ID, cause.Error()); err != nil {
			return fmt.Errorf("bury entry %d: %w", entry.ID, err)
		}
		return nil
	}

	next := o.now().Add(o.backoff(entry.Attempts))
	slog.Warn("Outbox delivery failed", "error", cause, "kind", entry.Kind, "record_id", entry.RecordID, "attempts", attempts, "next_attempt", next)
	observability.OutboxAttempts.WithLabelValues(string(entry.Kind), "retry").Inc()
	if err := o.queue.RetryOutbox(ctx, entry.ID, next, cause.Error()); err != nil {
		return fmt.Errorf("reschedule entry %d: %w", entry.ID, err)
	}
	return nil
}

// backoff returns the delay after the given number of previous failures.
func (o *Outbox) backoff(previous int) time.Duration {
	d := o.cfg.BaseBackoff
	for i := 0; i < previous; i++ {
		d *= 2
		if d >= o.cfg.MaxBackoff {
			return o.cfg.MaxBackoff
		}
	}
	if d > o.cfg.MaxBackoff {
		return o.cfg.MaxBackoff
	}
	return d
}

func (o *Outbox) deliver(ctx context.Context, entry *models.OutboxEntry) error {
	switch entry.Kind {
	case models.OutboxSetIdentification:
		var identification models.Identification
		if err := json.Unmarshal(entry.Payload, &identification); err != nil {
			return permanentError{fmt.Errorf("decode identification: %w", err)}
		}
		return o.remote.SetIdentification(ctx, &identification)

	case models.OutboxConfirmation:
		var p ConfirmationPayload
		if err := json.Unmarshal(entry.Payload, &p); err != nil {
			return permanentError{fmt.Errorf("decode confirmation: %w", err)}
		}
		return o.remote.UpdateConfirmation(ctx, entry.RecordID, p.Confirmation)

	case models.OutboxSetCollection:
		var collection models.PlantCollection
		if err := json.Unmarshal(entry.Payload, &collection); err != nil {
			return permanentError{fmt.Errorf("decode collection: %w", err)}
		}
		return o.remote.SetCollection(ctx, &collection)

	case models.OutboxImageUpload:
		if o.images == nil {
			return permanentError{errNoImageStore}
		}
		var p ImagePayload
		if err := json.Unmarshal(entry.Payload, &p); err != nil {
			return permanentError{fmt.Errorf("decode image upload: %w", err)}
		}
		return o.images.Upload(ctx, p.Key, p.Path)
	}
	return permanentError{fmt.Errorf("unknown outbox kind %q", entry.Kind)}
}
