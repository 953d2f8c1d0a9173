package remote

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mmynk/plantid/internal/models"
)

// Memory is an in-process Store. It backs tests and local demos,
// and can be told to fail to simulate an unreachable remote.
type Memory struct {
	mu              sync.RWMutex
	plants          map[string]*models.Plant
	users           map[string]*models.User
	identifications map[string]*models.Identification
	collections     map[string]*models.PlantCollection
	confirmations   map[string]Confirmation

	failErr error
	calls   map[string]int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plants:          make(map[string]*models.Plant),
		users:           make(map[string]*models.User),
		identifications: make(map[string]*models.Identification),
		collections:     make(map[string]*models.PlantCollection),
		confirmations:   make(map[string]Confirmation),
		calls:           make(map[string]int),
	}
}

// SetFailure makes every subsequent call fail with err wrapped in ErrRemoteUnavailable.
// A nil err restores normal operation.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// PutPlant seeds a plant document.
func (m *Memory) PutPlant(p *models.Plant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plants[p.ID] = clonePlant(p)
}

// PutUser seeds a user document.
func (m *Memory) PutUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	cp.PlantCollectionIDs = slices.Clone(u.PlantCollectionIDs)
	m.users[u.ID] = &cp
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Identification returns the mirrored identification with the given ID.
func (m *Memory) Identification(id string) (*models.Identification, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identification, ok := m.identifications[id]
	return identification, ok
}

// Confirmation returns the confirmation patch applied to an identification.
func (m *Memory) Confirmation(id string) (Confirmation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.confirmations[id]
	return c, ok
}

// Collections returns the number of mirrored collection entries.
func (m *Memory) Collections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections)
}

// begin counts the call and returns the injected failure, if any.
func (m *Memory) begin(op string) error {
	m.calls[op]++
	if m.failErr != nil {
		return unavailable(op, m.failErr)
	}
	return nil
}

func (m *Memory) GetPlant(_ context.Context, id string) (*models.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get plant"); err != nil {
		return nil, err
	}
	p, ok := m.plants[id]
	if !ok {
		return nil, nil
	}
	return clonePlant(p), nil
}

func (m *Memory) QueryPlants(_ context.Context, q PlantQuery) ([]*models.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("query plants"); err != nil {
		return nil, err
	}

	var out []*models.Plant
	for _, p := range m.sortedPlants() {
		if q.Matches(p) {
			out = append(out, clonePlant(p))
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) ListPlants(_ context.Context, limit int) ([]*models.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("list plants"); err != nil {
		return nil, err
	}

	var out []*models.Plant
	for _, p := range m.sortedPlants() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, clonePlant(p))
	}
	return out, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get user"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.PlantCollectionIDs = slices.Clone(u.PlantCollectionIDs)
	return &cp, nil
}

func (m *Memory) SetIdentification(_ context.Context, identification *models.Identification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("set identification"); err != nil {
		return err
	}
	cp := *identification
	m.identifications[identification.ID] = &cp
	return nil
}

func (m *Memory) UpdateConfirmation(_ context.Context, id string, c Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update confirmation"); err != nil {
		return err
	}
	m.confirmations[id] = c
	if identification, ok := m.identifications[id]; ok {
		identification.ConfirmedPlantID = c.ConfirmedPlantID
		identification.IsConfirmed = c.IsConfirmed
		identification.UpdatedAt = c.UpdatedAt
	}
	return nil
}

func (m *Memory) SetCollection(_ context.Context, collection *models.PlantCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("set collection"); err != nil {
		return err
	}
	cp := *collection
	m.collections[collection.ID] = &cp
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) sortedPlants() []*models.Plant {
	plants := make([]*models.Plant, 0, len(m.plants))
	for _, p := range m.plants {
		plants = append(plants, p)
	}
	sort.Slice(plants, func(i, j int) bool {
		if plants[i].ScientificName != plants[j].ScientificName {
			return plants[i].ScientificName < plants[j].ScientificName
		}
		return plants[i].ID < plants[j].ID
	})
	return plants
}

func clonePlant(p *models.Plant) *models.Plant {
	cp := *p
	cp.CommonNames = slices.Clone(p.CommonNames)
	cp.Regions = slices.Clone(p.Regions)
	cp.Images = slices.Clone(p.Images)
	return &cp
}
