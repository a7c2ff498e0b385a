package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felle787/LocalRadar2/internal/domain"
)

func testVenue(ownerID, name string) domain.Venue {
	return domain.Venue{
		OwnerID:     ownerID,
		Name:        name,
		Address:     "1 Main St",
		Location:    "Springfield",
		Type:        domain.DefaultVenueType,
		Categories:  []string{"Live Music", "Craft Beer"},
		Description: "Neighbourhood bar",
		Coordinates: &domain.Coordinates{Latitude: 39.78, Longitude: -89.65},
	}
}

func TestVenueRepo_UpsertInsertAndGet(t *testing.T) {
	repo := NewVenueRepo(setupTestDB(t))
	ctx := t.Context()

	saved, err := repo.Upsert(ctx, testVenue("owner-1", "Moe's"))
	require.NoError(t, err)
	assert.Equal(t, "Moe's", saved.Name)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Live Music", "Craft Beer"}, got.Categories)
	require.NotNil(t, got.Coordinates)
	assert.InDelta(t, 39.78, got.Coordinates.Latitude, 1e-9)
	assert.InDelta(t, -89.65, got.Coordinates.Longitude, 1e-9)
}

func TestVenueRepo_UpsertUpdateKeepsCreatedAt(t *testing.T) {
	repo := NewVenueRepo(setupTestDB(t))
	ctx := t.Context()

	first, err := repo.Upsert(ctx, testVenue("owner-1", "Moe's"))
	require.NoError(t, err)

	update := testVenue("owner-1", "Moe's Tavern")
	update.Coordinates = nil
	update.Categories = nil
	second, err := repo.Upsert(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, "Moe's Tavern", second.Name)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Nil(t, second.Coordinates)
	assert.Equal(t, []string{}, second.Categories)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVenueRepo_GetNotFound(t *testing.T) {
	repo := NewVenueRepo(setupTestDB(t))

	_, err := repo.Get(t.Context(), "missing")
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestVenueRepo_ListAndCount(t *testing.T) {
	repo := NewVenueRepo(setupTestDB(t))
	ctx := t.Context()

	venues, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, venues)

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Upsert(ctx, testVenue(id, "Venue "+id))
		require.NoError(t, err)
	}

	venues, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, venues, 3)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
