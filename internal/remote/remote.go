// Package remote defines the remote document store contract and its adapters.
//
// The remote store is the shared source of truth for the plant catalog and the
// mirror target for identifications and collection entries. Every adapter wraps
// its failures with ErrRemoteUnavailable so callers can recover from them uniformly.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/plantid/internal/models"
)

// Remote collection names.
const (
	CollectionPlants          = "plants"
	CollectionUsers           = "users"
	CollectionIdentifications = "identifications"
	CollectionPlantCollection = "plantCollections"
)

// ErrRemoteUnavailable wraps every failure talking to the remote store.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// Store is the remote document store.
// Lookups return nil and no error when a document is absent.
type Store interface {
	GetPlant(ctx context.Context, id string) (*models.Plant, error)

	// QueryPlants returns plants matching q, ordered by scientific name.
	QueryPlants(ctx context.Context, q PlantQuery) ([]*models.Plant, error)

	// ListPlants returns up to limit plants for a bulk pull.
	ListPlants(ctx context.Context, limit int) ([]*models.Plant, error)

	GetUser(ctx context.Context, id string) (*models.User, error)

	SetIdentification(ctx context.Context, identification *models.Identification) error

	// UpdateConfirmation patches only the confirmation fields of an identification.
	UpdateConfirmation(ctx context.Context, id string, c Confirmation) error

	SetCollection(ctx context.Context, collection *models.PlantCollection) error

	Close() error
}

// PlantQuery is the subset of the catalog filters a document store can evaluate natively.
// Region is an array-containment test; the rest are equality tests.
type PlantQuery struct {
	Region             string
	PlantType          models.PlantType
	Family             string
	Origin             models.Origin
	ConservationStatus string
	Limit              int
}

// QueryFromFilters translates catalog filters into a remote query.
// The search term has no document-store equivalent and is dropped;
// callers re-check results with Filters.Matches.
func QueryFromFilters(f models.Filters, limit int) PlantQuery {
	return PlantQuery{
		Region:             f.Region,
		PlantType:          f.PlantType,
		Family:             f.Family,
		Origin:             f.Origin,
		ConservationStatus: f.ConservationStatus,
		Limit:              limit,
	}
}

// Matches reports whether p satisfies q, using the remote store's exact semantics.
func (q PlantQuery) Matches(p *models.Plant) bool {
	if q.PlantType != "" && p.PlantType != q.PlantType {
		return false
	}
	if q.Family != "" && p.Family != q.Family {
		return false
	}
	if q.Origin != "" && p.Origin != q.Origin {
		return false
	}
	if q.ConservationStatus != "" && p.Description.ConservationStatus != q.ConservationStatus {
		return false
	}
	if q.Region != "" {
		found := false
		for _, r := range p.Regions {
			if r == q.Region {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Confirmation is the partial update applied when a user confirms an identification.
type Confirmation struct {
	ConfirmedPlantID string    `json:"confirmedPlantId" firestore:"confirmedPlantId"`
	IsConfirmed      bool      `json:"isConfirmed" firestore:"isConfirmed"`
	UpdatedAt        time.Time `json:"updatedAt" firestore:"updatedAt"`
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
}
