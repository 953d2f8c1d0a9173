package stats

import (
	"math"
	"testing"

	"github.com/mmynk/plantid/internal/models"
)

func identification(plantID, confirmedID string) *models.Identification {
	return &models.Identification{
		PlantID:          plantID,
		ConfirmedPlantID: confirmedID,
		IsConfirmed:      confirmedID != "",
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name            string
		identifications []*models.Identification
		wantTotal       int
		wantConfirmed   int
		wantAccuracy    float64
		wantAgreement   float64
		wantTop         []PlantCount
	}{
		{
			name:         "no identifications",
			wantTop:      []PlantCount{},
			wantAccuracy: 0,
		},
		{
			name: "half confirmed",
			identifications: []*models.Identification{
				identification("A", "A"),
				identification("A", ""),
			},
			wantTotal:     2,
			wantConfirmed: 1,
			wantAccuracy:  50,
			wantAgreement: 100,
			wantTop:       []PlantCount{{PlantID: "A", Count: 1}},
		},
		{
			name: "confirmations that override the model",
			identifications: []*models.Identification{
				identification("A", "B"),
				identification("A", "B"),
				identification("C", "C"),
				identification("D", ""),
			},
			wantTotal:     4,
			wantConfirmed: 3,
			wantAccuracy:  75,
			wantAgreement: 100.0 / 3,
			wantTop:       []PlantCount{{PlantID: "B", Count: 2}, {PlantID: "C", Count: 1}},
		},
		{
			name: "top plants are capped and tie-broken by id",
			identifications: []*models.Identification{
				identification("F", "F"), identification("E", "E"), identification("D", "D"),
				identification("C", "C"), identification("B", "B"), identification("A", "A"),
			},
			wantTotal:     6,
			wantConfirmed: 6,
			wantAccuracy:  100,
			wantAgreement: 100,
			wantTop: []PlantCount{
				{PlantID: "A", Count: 1}, {PlantID: "B", Count: 1}, {PlantID: "C", Count: 1},
				{PlantID: "D", Count: 1}, {PlantID: "E", Count: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.identifications)

			if got.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", got.Total, tt.wantTotal)
			}
			if got.Confirmed != tt.wantConfirmed {
				t.Errorf("Confirmed = %d, want %d", got.Confirmed, tt.wantConfirmed)
			}
			if math.Abs(got.Accuracy-tt.wantAccuracy) > 0.01 {
				t.Errorf("Accuracy = %v, want %v", got.Accuracy, tt.wantAccuracy)
			}
			if math.Abs(got.ModelAgreement-tt.wantAgreement) > 0.01 {
				t.Errorf("ModelAgreement = %v, want %v", got.ModelAgreement, tt.wantAgreement)
			}
			if len(got.TopPlants) != len(tt.wantTop) {
				t.Fatalf("TopPlants = %v, want %v", got.TopPlants, tt.wantTop)
			}
			for i := range got.TopPlants {
				if got.TopPlants[i] != tt.wantTop[i] {
					t.Errorf("TopPlants[%d] = %v, want %v", i, got.TopPlants[i], tt.wantTop[i])
				}
			}
		})
	}
}
