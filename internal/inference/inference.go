// Package inference defines the image-classification capability used by the
// identification workflow and the candidate selection rules applied to its output.
package inference

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrModelNotReady is returned when the model cannot be loaded or run.
	ErrModelNotReady = errors.New("identification model not ready")

	// ErrInvalidImage is returned when the image behind a handle is missing or cannot be decoded.
	ErrInvalidImage = errors.New("capture image cannot be read")
)

// Candidate is one ranked species guess.
type Candidate struct {
	SpeciesID      string
	Confidence     float64
	ScientificName string
	CommonNames    []string
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Version       string  `json:"version"`
	InputShape    []int64 `json:"inputShape"`
	OutputClasses int     `json:"outputClasses"`
	Loaded        bool    `json:"loaded"`
}

// Predictor classifies an image. Implementations must be safe for concurrent use.
type Predictor interface {
	// Predict returns candidates for the image at handle. Faults loading or
	// running the model are reported as ErrModelNotReady.
	Predict(ctx context.Context, handle string) ([]Candidate, error)

	// Loaded reports whether the model is ready without triggering a load.
	Loaded() bool

	Info() ModelInfo
}

// Select keeps the candidates with confidence >= threshold, ordered by
// non-increasing confidence and capped at max. Ties keep their input order.
func Select(candidates []Candidate, threshold float64, max int) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var selected []Candidate
	for _, c := range sorted {
		if max > 0 && len(selected) == max {
			break
		}
		if c.Confidence >= threshold {
			selected = append(selected, c)
		}
	}
	return selected
}
