package catalog

import (
	"encoding/json"
	"sync"

	"github.com/mmynk/plantid/internal/models"
)

type entityKey struct {
	recordType models.RecordType
	id         string
}

// memo holds the two process-lifetime memo tables. Entries never expire;
// they are dropped only by explicit invalidation.
type memo struct {
	mu       sync.RWMutex
	entities map[entityKey]any
	searches map[string]*models.SearchResult
}

func newMemo() *memo {
	return &memo{
		entities: make(map[entityKey]any),
		searches: make(map[string]*models.SearchResult),
	}
}

func (m *memo) entity(recordType models.RecordType, id string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entities[entityKey{recordType, id}]
	return v, ok
}

func (m *memo) putEntity(recordType models.RecordType, id string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[entityKey{recordType, id}] = v
}

func (m *memo) search(key string) (*models.SearchResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.searches[key]
	return r, ok
}

func (m *memo) putSearch(key string, r *models.SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[key] = r
}

func (m *memo) clearSearches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = make(map[string]*models.SearchResult)
}

func (m *memo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[entityKey]any)
	m.searches = make(map[string]*models.SearchResult)
}

func (m *memo) size() (entities, searches int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities), len(m.searches)
}

// searchKey fingerprints a search request. Struct fields marshal in declaration
// order, so equal requests always produce equal keys.
func searchKey(filters models.Filters, page, limit int) string {
	data, _ := json.Marshal(struct {
		Filters models.Filters `json:"filters"`
		Page    int            `json:"page"`
		Limit   int            `json:"limit"`
	}{filters, page, limit})
	return string(data)
}
