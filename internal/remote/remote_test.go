package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/plantid/internal/models"
)

func plant(id, name, family string, regions ...string) *models.Plant {
	return &models.Plant{
		ID:             id,
		ScientificName: name,
		Family:         family,
		PlantType:      models.PlantTypeCactus,
		Origin:         models.OriginNative,
		Regions:        regions,
	}
}

func TestQueryFromFiltersDropsSearchTerm(t *testing.T) {
	q := QueryFromFilters(models.Filters{
		Family:     "Cactaceae",
		Region:     "Sonora",
		SearchTerm: "saguaro",
	}, 20)

	assert.Equal(t, PlantQuery{Family: "Cactaceae", Region: "Sonora", Limit: 20}, q)
}

func TestPlantQueryMatches(t *testing.T) {
	p := plant("c1", "Carnegiea gigantea", "Cactaceae", "Sonora", "Arizona")

	assert.True(t, PlantQuery{}.Matches(p))
	assert.True(t, PlantQuery{Region: "Arizona", Family: "Cactaceae"}.Matches(p))
	assert.False(t, PlantQuery{Region: "Son"}.Matches(p), "region is array containment, not substring")
	assert.False(t, PlantQuery{Origin: models.OriginExotic}.Matches(p))
}

func TestPlantQuerySQL(t *testing.T) {
	query, args := plantQuerySQL(PlantQuery{Region: "Sonora", Family: "Cactaceae", Limit: 20})

	assert.Equal(t,
		`SELECT body FROM documents WHERE collection = $1 AND body->'regions' ? $2 AND body->>'family' = $3`+
			` ORDER BY body->>'scientificName', id LIMIT $4`,
		query)
	assert.Equal(t, []any{CollectionPlants, "Sonora", "Cactaceae", 20}, args)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutPlant(plant("o1", "Opuntia ficus-indica", "Cactaceae", "Oaxaca"))
	m.PutPlant(plant("c1", "Carnegiea gigantea", "Cactaceae", "Sonora"))
	m.PutPlant(plant("a1", "Agave tequilana", "Asparagaceae", "Jalisco"))

	t.Run("query is ordered and limited", func(t *testing.T) {
		plants, err := m.QueryPlants(ctx, PlantQuery{Family: "Cactaceae", Limit: 1})
		require.NoError(t, err)
		require.Len(t, plants, 1)
		assert.Equal(t, "c1", plants[0].ID)
	})

	t.Run("list returns every plant up to the limit", func(t *testing.T) {
		plants, err := m.ListPlants(ctx, 10)
		require.NoError(t, err)
		require.Len(t, plants, 3)
		assert.Equal(t, "a1", plants[0].ID)
	})

	t.Run("missing document is nil", func(t *testing.T) {
		p, err := m.GetPlant(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		p, err := m.GetPlant(ctx, "c1")
		require.NoError(t, err)
		p.Regions[0] = "changed"

		again, err := m.GetPlant(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Sonora", again.Regions[0])
	})

	t.Run("confirmation patches the mirrored identification", func(t *testing.T) {
		require.NoError(t, m.SetIdentification(ctx, &models.Identification{ID: "i1", PlantID: "c1"}))
		require.NoError(t, m.UpdateConfirmation(ctx, "i1", Confirmation{ConfirmedPlantID: "c1", IsConfirmed: true}))

		identification, ok := m.Identification("i1")
		require.True(t, ok)
		assert.True(t, identification.IsConfirmed)
		assert.Equal(t, "c1", identification.ConfirmedPlantID)
	})

	t.Run("injected failure wraps ErrRemoteUnavailable", func(t *testing.T) {
		m.SetFailure(errors.New("network down"))
		defer m.SetFailure(nil)

		_, err := m.QueryPlants(ctx, PlantQuery{})
		assert.ErrorIs(t, err, ErrRemoteUnavailable)
		assert.ErrorIs(t, m.SetCollection(ctx, &models.PlantCollection{ID: "x"}), ErrRemoteUnavailable)
		assert.Equal(t, 0, m.Collections())
	})
}

func TestOfflineIsAlwaysUnavailable(t *testing.T) {
	ctx := context.Background()
	var s Store = Offline{}

	_, err := s.GetPlant(ctx, "c1")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	_, err = s.ListPlants(ctx, 10)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.ErrorIs(t, s.SetIdentification(ctx, &models.Identification{}), ErrRemoteUnavailable)
	assert.NoError(t, s.Close())
}
