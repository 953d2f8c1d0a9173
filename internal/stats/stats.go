// Package stats computes per-user identification statistics.
package stats

import (
	"sort"

	"github.com/mmynk/plantid/internal/models"
)

// TopPlantsLimit caps the number of plants in Summary.TopPlants.
const TopPlantsLimit = 5

// PlantCount is how many confirmed identifications named a plant.
type PlantCount struct {
	PlantID string `json:"plantId"`
	Count   int    `json:"count"`
}

// Summary aggregates a user's identifications.
type Summary struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`

	// Accuracy is the confirmed share of all identifications, in percent.
	Accuracy float64 `json:"accuracy"`

	// ModelAgreement is the percentage of confirmations that kept the provisional match.
	ModelAgreement float64 `json:"modelAgreement"`

	TopPlants []PlantCount `json:"topPlants"`
}

// Summarize computes statistics over identifications.
//
// Algorithm:
// - Accuracy: confirmed / total * 100, or 0 with no identifications
// - Top plants: confirmed plant IDs by count descending, ties by plant ID, capped at TopPlantsLimit
func Summarize(identifications []*models.Identification) Summary {
	s := Summary{Total: len(identifications), TopPlants: []PlantCount{}}

	counts := make(map[string]int)
	agreed := 0
	for _, identification := range identifications {
		if identification.IsConfirmed {
			s.Confirmed++
			if identification.ConfirmedPlantID == identification.PlantID {
				agreed++
			}
		}
		if identification.ConfirmedPlantID != "" {
			counts[identification.ConfirmedPlantID]++
		}
	}

	if s.Total > 0 {
		s.Accuracy = float64(s.Confirmed) / float64(s.Total) * 100
	}
	if s.Confirmed > 0 {
		s.ModelAgreement = float64(agreed) / float64(s.Confirmed) * 100
	}

	for plantID, count := range counts {
		s.TopPlants = append(s.TopPlants, PlantCount{PlantID: plantID, Count: count})
	}
	sort.Slice(s.TopPlants, func(i, j int) bool {
		if s.TopPlants[i].Count != s.TopPlants[j].Count {
			return s.TopPlants[i].Count > s.TopPlants[j].Count
		}
		return s.TopPlants[i].PlantID < s.TopPlants[j].PlantID
	})
	if len(s.TopPlants) > TopPlantsLimit {
		s.TopPlants = s.TopPlants[:TopPlantsLimit]
	}
	return s
}
