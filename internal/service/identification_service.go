// Package service implements the identification workflow on top of the local
// store, the inference capability and the outbox.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/images"
	"github.com/mmynk/plantid/internal/inference"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/observability"
	"github.com/mmynk/plantid/internal/outbox"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/stats"
	"github.com/mmynk/plantid/internal/storage"
)

var (
	// ErrBusy is returned when an identification is already in flight.
	ErrBusy = errors.New("an identification is already in progress")

	// ErrNoMatch is returned when no candidate reaches the confidence threshold.
	ErrNoMatch = errors.New("no plant matched with sufficient confidence")

	// ErrInvalidCapture is returned when a capture carries no image handle.
	ErrInvalidCapture = errors.New("capture has no image handle")
)

const (
	componentLocal  = "local"
	componentOutbox = "outbox"
)

// Stage is the in-flight step of the identification in progress.
type Stage int32

const (
	StageIdle Stage = iota
	StageCapturing
	StagePredicting
	StagePersisting
)

func (s Stage) String() string {
	switch s {
	case StageCapturing:
		return "Capturing"
	case StagePredicting:
		return "Predicting"
	case StagePersisting:
		return "Persisting"
	}
	return "Idle"
}

// Enqueuer records a pending remote write.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.OutboxKind, recordID string, payload any) error
}

// PlantLookup resolves catalog plants, local first.
type PlantLookup interface {
	GetPlant(ctx context.Context, id string) (*models.Plant, error)
}

// IdentificationConfig tunes candidate selection and mirroring.
type IdentificationConfig struct {
	Threshold      float64
	MaxPredictions int

	// MirrorImages enqueues an upload of every capture image.
	MirrorImages bool
}

// ConfirmResult is the outcome of a confirmation.
type ConfirmResult struct {
	Identification *models.Identification   `json:"identification"`
	Collection     *models.PlantCollection `json:"collection,omitempty"`
}

// IdentificationService runs one identification at a time: predict, persist,
// mirror, and later confirm into the user's collection.
type IdentificationService struct {
	store     storage.Store
	predictor inference.Predictor
	outbox    Enqueuer
	plants    PlantLookup
	health    *health.Tracker
	cfg       IdentificationConfig

	busy  atomic.Bool
	stage atomic.Int32

	now   func() time.Time
	newID func() string
}

// NewIdentificationService creates the workflow. Zero threshold and max
// predictions default to 0.70 and 5.
func NewIdentificationService(
	store storage.Store,
	predictor inference.Predictor,
	enqueuer Enqueuer,
	plants PlantLookup,
	tracker *health.Tracker,
	cfg IdentificationConfig,
) *IdentificationService {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.70
	}
	if cfg.MaxPredictions == 0 {
		cfg.MaxPredictions = 5
	}
	return &IdentificationService{
		store:     store,
		predictor: predictor,
		outbox:    enqueuer,
		plants:    plants,
		health:    tracker,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// IdentifyPlant classifies a capture and persists the resulting identification.
// Only one call runs at a time; a concurrent call fails with ErrBusy.
func (s *IdentificationService) IdentifyPlant(ctx context.Context, capture models.Capture, filters models.Filters, userID string) (*models.Identification, error) {
	if !s.busy.CompareAndSwap(false, true) {
		observability.Identifications.WithLabelValues("busy").Inc()
		return nil, ErrBusy
	}
	defer func() {
		s.stage.Store(int32(StageIdle))
		s.busy.Store(false)
	}()

	s.stage.Store(int32(StageCapturing))
	if capture.Handle == "" {
		return nil, ErrInvalidCapture
	}

	s.stage.Store(int32(StagePredicting))
	candidates, err := s.predictor.Predict(ctx, capture.Handle)
	if err != nil {
		observability.Identifications.WithLabelValues("model_error").Inc()
		slog.Error("Prediction failed", "error", err, "user_id", userID)
		return nil, err
	}

	selected := inference.Select(candidates, s.cfg.Threshold, s.cfg.MaxPredictions)
	if len(selected) == 0 {
		observability.Identifications.WithLabelValues("no_match").Inc()
		slog.Info("No confident match", "candidates", len(candidates), "threshold", s.cfg.Threshold)
		return nil, ErrNoMatch
	}

	predictions := make([]models.Prediction, len(selected))
	for i, c := range selected {
		predictions[i] = models.Prediction{
			PlantID:        c.SpeciesID,
			Confidence:     c.Confidence,
			ScientificName: c.ScientificName,
			CommonNames:    c.CommonNames,
		}
	}

	created := capture.Timestamp
	if created.IsZero() {
		created = s.now()
	}
	identification := &models.Identification{
		ID:          s.newID(),
		UserID:      userID,
		PlantID:     predictions[0].PlantID,
		ImageURI:    capture.Handle,
		Confidence:  predictions[0].Confidence,
		Predictions: predictions,
		Location:    capture.IdentificationLocation(),
		Filters:     filters,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	s.stage.Store(int32(StagePersisting))
	if err := s.store.PutIdentification(ctx, identification); err != nil {
		s.health.Record(health.Fatal(componentLocal, "put identification", err))
		return nil, fmt.Errorf("failed to save identification: %w", err)
	}

	s.mirror(ctx, models.OutboxSetIdentification, identification.ID, identification)
	if s.cfg.MirrorImages {
		key := images.ObjectKey(identification.ID, capture.Handle)
		s.mirror(ctx, models.OutboxImageUpload, key, outbox.ImagePayload{
			Path: images.LocalPath(capture.Handle),
			Key:  key,
		})
	}

	observability.Identifications.WithLabelValues("identified").Inc()
	slog.Info("Plant identified",
		"identification_id", identification.ID,
		"plant_id", identification.PlantID,
		"confidence", identification.Confidence,
		"predictions", len(predictions),
	)
	return identification, nil
}

// ConfirmIdentification records the user's confirmed species and adds the
// plant to their collection. An unknown identification is a no-op and
// returns a nil result. Every confirmation appends a new collection entry.
func (s *IdentificationService) ConfirmIdentification(ctx context.Context, identificationID, confirmedPlantID, userID string) (*ConfirmResult, error) {
	identifications, err := s.store.ListIdentificationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifications: %w", err)
	}

	var identification *models.Identification
	for _, candidate := range identifications {
		if candidate.ID == identificationID {
			identification = candidate
			break
		}
	}
	if identification == nil {
		slog.Info("Confirmation for unknown identification ignored", "identification_id", identificationID, "user_id", userID)
		return nil, nil
	}

	now := s.now()
	identification.Confirm(confirmedPlantID, now)
	if err := s.store.PutIdentification(ctx, identification); err != nil {
		s.health.Record(health.Fatal(componentLocal, "put identification", err))
		return nil, fmt.Errorf("failed to save confirmation: %w", err)
	}
	s.mirror(ctx, models.OutboxConfirmation, identification.ID, outbox.ConfirmationPayload{
		Confirmation: remote.Confirmation{
			ConfirmedPlantID: confirmedPlantID,
			IsConfirmed:      true,
			UpdatedAt:        now,
		},
	})

	result := &ConfirmResult{Identification: identification}

	plant, err := s.plants.GetPlant(ctx, confirmedPlantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed plant: %w", err)
	}
	if plant == nil {
		slog.Warn("Confirmed plant not found, collection not updated", "plant_id", confirmedPlantID)
		return result, nil
	}

	collection := &models.PlantCollection{
		ID:             s.newID(),
		UserID:         userID,
		PlantID:        confirmedPlantID,
		Plant:          *plant,
		AddedAt:        now,
		PersonalImages: []string{identification.ImageURI},
	}
	if err := s.store.PutCollection(ctx, collection); err != nil {
		s.health.Record(health.Fatal(componentLocal, "put collection", err))
		return nil, fmt.Errorf("failed to save collection entry: %w", err)
	}
	s.mirror(ctx, models.OutboxSetCollection, collection.ID, collection)
	result.Collection = collection

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		user.PlantCollectionIDs = append(user.PlantCollectionIDs, collection.ID)
		user.UpdatedAt = now
		if err := s.store.PutUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user collection: %w", err)
		}
	}

	observability.Identifications.WithLabelValues("confirmed").Inc()
	slog.Info("Identification confirmed",
		"identification_id", identification.ID,
		"plant_id", confirmedPlantID,
		"collection_id", collection.ID,
	)
	return result, nil
}

// History returns the user's identifications, newest first.
func (s *IdentificationService) History(ctx context.Context, userID string) ([]*models.Identification, error) {
	return s.store.ListIdentificationsByUser(ctx, userID)
}

// Stats summarizes the user's identifications.
func (s *IdentificationService) Stats(ctx context.Context, userID string) (*stats.Summary, error) {
	identifications, err := s.store.ListIdentificationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifications: %w", err)
	}
	summary := stats.Summarize(identifications)
	return &summary, nil
}

// Collection returns the user's collection entries, newest first.
func (s *IdentificationService) Collection(ctx context.Context, userID string) ([]*models.PlantCollection, error) {
	return s.store.ListCollectionsByUser(ctx, userID)
}

// IsAvailable reports whether a new identification can start now.
func (s *IdentificationService) IsAvailable() bool {
	return s.predictor.Loaded() && !s.busy.Load()
}

// Stage returns the step of the identification in flight.
func (s *IdentificationService) Stage() Stage {
	return Stage(s.stage.Load())
}

// ModelInfo describes the identification model.
func (s *IdentificationService) ModelInfo() inference.ModelInfo {
	return s.predictor.Info()
}

// mirror enqueues a remote write. Failures are recorded, never returned:
// the local record is already durable.
func (s *IdentificationService) mirror(ctx context.Context, kind models.OutboxKind, recordID string, payload any) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, kind, recordID, payload); err != nil {
		slog.Warn("Failed to enqueue remote write", "error", err, "kind", kind, "record_id", recordID)
		s.health.Record(health.Degraded(componentOutbox, "enqueue "+string(kind), err))
	}
}
