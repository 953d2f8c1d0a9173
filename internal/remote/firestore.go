package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mmynk/plantid/internal/models"
)

// Firestore is a Store backed by Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

var _ Store = (*Firestore)(nil)

// NewFirestore connects to the Firestore database of projectID.
// credentialsFile may be empty to use application default credentials.
func NewFirestore(ctx context.Context, projectID, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	snap, err := f.client.Collection(CollectionPlants).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get plant", err)
	}
	return plantFromSnapshot(snap)
}

func (f *Firestore) QueryPlants(ctx context.Context, q PlantQuery) ([]*models.Plant, error) {
	query := f.client.Collection(CollectionPlants).Query
	if q.Region != "" {
		query = query.Where("region", "array-contains", q.Region)
	}
	if q.PlantType != "" {
		query = query.Where("plantType", "==", string(q.PlantType))
	}
	if q.Family != "" {
		query = query.Where("family", "==", q.Family)
	}
	if q.Origin != "" {
		query = query.Where("origin", "==", string(q.Origin))
	}
	if q.ConservationStatus != "" {
		query = query.Where("description.conservationStatus", "==", q.ConservationStatus)
	}
	query = query.OrderBy("scientificName", firestore.Asc)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, unavailable("query plants", err)
	}
	return plantsFromSnapshots(snaps)
}

func (f *Firestore) ListPlants(ctx context.Context, limit int) ([]*models.Plant, error) {
	query := f.client.Collection(CollectionPlants).OrderBy("scientificName", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, unavailable("list plants", err)
	}
	return plantsFromSnapshots(snaps)
}

func (f *Firestore) GetUser(ctx context.Context, id string) (*models.User, error) {
	snap, err := f.client.Collection(CollectionUsers).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}

	user := &models.User{}
	if err := snap.DataTo(user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	if user.ID == "" {
		user.ID = snap.Ref.ID
	}
	return user, nil
}

func (f *Firestore) SetIdentification(ctx context.Context, identification *models.Identification) error {
	_, err := f.client.Collection(CollectionIdentifications).Doc(identification.ID).Set(ctx, identification)
	if err != nil {
		return unavailable("set identification", err)
	}
	return nil
}

func (f *Firestore) UpdateConfirmation(ctx context.Context, id string, c Confirmation) error {
	_, err := f.client.Collection(CollectionIdentifications).Doc(id).Update(ctx, []firestore.Update{
		{Path: "confirmedPlantId", Value: c.ConfirmedPlantID},
		{Path: "isConfirmed", Value: c.IsConfirmed},
		{Path: "updatedAt", Value: c.UpdatedAt},
	})
	if err != nil {
		return unavailable("update confirmation", err)
	}
	return nil
}

func (f *Firestore) SetCollection(ctx context.Context, collection *models.PlantCollection) error {
	_, err := f.client.Collection(CollectionPlantCollection).Doc(collection.ID).Set(ctx, collection)
	if err != nil {
		return unavailable("set collection", err)
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func plantFromSnapshot(snap *firestore.DocumentSnapshot) (*models.Plant, error) {
	plant := &models.Plant{}
	if err := snap.DataTo(plant); err != nil {
		return nil, fmt.Errorf("decode plant %s: %w", snap.Ref.ID, err)
	}
	if plant.ID == "" {
		plant.ID = snap.Ref.ID
	}
	return plant, nil
}

func plantsFromSnapshots(snaps []*firestore.DocumentSnapshot) ([]*models.Plant, error) {
	plants := make([]*models.Plant, 0, len(snaps))
	for _, snap := range snaps {
		plant, err := plantFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		plants = append(plants, plant)
	}
	return plants, nil
}
