package models

import (
	"errors"
	"time"
)

var (
	ErrConfirmationMismatch = errors.New("isConfirmed must be set exactly when confirmedPlantId is set")
	ErrMissingPredictions   = errors.New("predictions must not be empty when plantId is set")
)

// IdentificationState is the per-record lifecycle state of an identification.
type IdentificationState string

const (
	StateAwaitingConfirmation IdentificationState = "AwaitingConfirmation"
	StateConfirmed            IdentificationState = "Confirmed"
)

// Prediction is one ranked candidate stored on an identification.
type Prediction struct {
	PlantID        string   `json:"plantId" firestore:"plantId"`
	Confidence     float64  `json:"confidence" firestore:"confidence"`
	ScientificName string   `json:"scientificName" firestore:"scientificName"`
	CommonNames    []string `json:"commonNames" firestore:"commonNames"`
}

// Location is where a capture was taken.
type Location struct {
	Latitude     float64 `json:"latitude" firestore:"latitude"`
	Longitude    float64 `json:"longitude" firestore:"longitude"`
	Region       string  `json:"region" firestore:"region"`
	Municipality string  `json:"municipality" firestore:"municipality"`
}

// Identification records one capture attempt.
// It is created once per capture and mutated exactly once, at confirmation.
type Identification struct {
	ID     string `json:"id" firestore:"id"`
	UserID string `json:"userId" firestore:"userId"`

	// PlantID is the provisional match: the top prediction's species.
	PlantID string `json:"plantId,omitempty" firestore:"plantId,omitempty"`

	ImageURI   string  `json:"imageUri" firestore:"imageUri"`
	Confidence float64 `json:"confidence" firestore:"confidence"`

	// Predictions are ordered by non-increasing confidence.
	Predictions []Prediction `json:"predictions" firestore:"predictions"`

	ConfirmedPlantID string `json:"confirmedPlantId,omitempty" firestore:"confirmedPlantId,omitempty"`
	IsConfirmed      bool   `json:"isConfirmed" firestore:"isConfirmed"`

	Location *Location `json:"location,omitempty" firestore:"location,omitempty"`
	Filters  Filters   `json:"filters" firestore:"filters"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// State derives the lifecycle state from the confirmation fields.
func (i *Identification) State() IdentificationState {
	if i.IsConfirmed {
		return StateConfirmed
	}
	return StateAwaitingConfirmation
}

// Validate checks the record invariants.
func (i *Identification) Validate() error {
	if i.IsConfirmed != (i.ConfirmedPlantID != "") {
		return ErrConfirmationMismatch
	}
	if i.PlantID != "" && len(i.Predictions) == 0 {
		return ErrMissingPredictions
	}
	return nil
}

// Confirm promotes the provisional match to an authoritative one.
func (i *Identification) Confirm(plantID string, at time.Time) {
	i.ConfirmedPlantID = plantID
	i.IsConfirmed = true
	i.UpdatedAt = at
}
