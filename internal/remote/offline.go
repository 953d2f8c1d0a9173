package remote

import (
	"context"
	"errors"

	"github.com/mmynk/plantid/internal/models"
)

var errOffline = errors.New("no remote store configured")

// Offline is a Store that is never reachable.
// It lets the device run purely from its local store.
type Offline struct{}

var _ Store = Offline{}

func (Offline) GetPlant(context.Context, string) (*models.Plant, error) {
	return nil, unavailable("get plant", errOffline)
}

func (Offline) QueryPlants(context.Context, PlantQuery) ([]*models.Plant, error) {
	return nil, unavailable("query plants", errOffline)
}

func (Offline) ListPlants(context.Context, int) ([]*models.Plant, error) {
	return nil, unavailable("list plants", errOffline)
}

func (Offline) GetUser(context.Context, string) (*models.User, error) {
	return nil, unavailable("get user", errOffline)
}

func (Offline) SetIdentification(context.Context, *models.Identification) error {
	return unavailable("set identification", errOffline)
}

func (Offline) UpdateConfirmation(context.Context, string, Confirmation) error {
	return unavailable("update confirmation", errOffline)
}

func (Offline) SetCollection(context.Context, *models.PlantCollection) error {
	return unavailable("set collection", errOffline)
}

func (Offline) Close() error { return nil }
