package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
	"github.com/felle787/LocalRadar2/internal/domain"
)

// mockVenueRepository implements domain.VenueRepository for tests.
type mockVenueRepository struct {
	calls atomic.Int32
	getFn func(ctx context.Context, ownerID string) (*domain.Venue, error)
}

func (m *mockVenueRepository) Get(ctx context.Context, ownerID string) (*domain.Venue, error) {
	m.calls.Add(1)
	if m.getFn != nil {
		return m.getFn(ctx, ownerID)
	}
	return nil, domain.ErrVenueNotFound
}

func (m *mockVenueRepository) List(context.Context) ([]domain.Venue, error) { return nil, nil }

func (m *mockVenueRepository) Upsert(_ context.Context, v domain.Venue) (*domain.Venue, error) {
	return &v, nil
}

func (m *mockVenueRepository) Count(context.Context) (int, error) { return 0, nil }

func venueRepo(venue domain.Venue) *mockVenueRepository {
	return &mockVenueRepository{getFn: func(_ context.Context, ownerID string) (*domain.Venue, error) {
		if ownerID != venue.OwnerID {
			return nil, domain.ErrVenueNotFound
		}
		v := venue
		return &v, nil
	}}
}

var testVenue = domain.Venue{
	OwnerID:  "owner-1",
	Name:     "The Tap Room",
	Address:  "1 Main St",
	Location: "Springfield",
	Type:     domain.DefaultVenueType,
}

// --- In-memory layer (no Redis needed) ---

func TestMemoryCache_HitAndMiss(t *testing.T) {
	cache := newMemoryCache(clockwork.NewFakeClock(), 10*time.Second)

	_, hit := cache.get("owner-1")
	assert.False(t, hit)

	cache.set("owner-1", testVenue)

	venue, hit := cache.get("owner-1")
	require.True(t, hit)
	assert.Equal(t, "The Tap Room", venue.Name)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newMemoryCache(clock, 10*time.Second)
	cache.set("owner-1", testVenue)

	clock.Advance(9 * time.Second)
	_, hit := cache.get("owner-1")
	assert.True(t, hit, "Should still hit at 9 seconds")

	clock.Advance(2 * time.Second)
	_, hit = cache.get("owner-1")
	assert.False(t, hit, "Should miss after TTL expires")
}

func TestMemoryCache_EvictExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newMemoryCache(clock, 10*time.Second)

	cache.set("a", testVenue)
	clock.Advance(5 * time.Second)
	cache.set("b", testVenue)
	clock.Advance(6 * time.Second)

	assert.Equal(t, 1, cache.evictExpired())
	assert.Equal(t, 1, cache.size())
	_, hit := cache.get("b")
	assert.True(t, hit)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := newMemoryCache(clockwork.NewRealClock(), 10*time.Second)

	var wg sync.WaitGroup
	wg.Go(func() {
		for range 100 {
			cache.set("owner-1", testVenue)
		}
	})
	wg.Go(func() {
		for range 100 {
			cache.get("owner-1")
		}
	})
	wg.Go(func() {
		for range 100 {
			cache.invalidate("owner-1")
		}
	})
	wg.Wait()
}

// --- Layered lookups ---

func TestVenueCache_LoadsFromRepositoryThenMemory(t *testing.T) {
	mr, client := setupTestClient(t)
	repo := venueRepo(testVenue)
	reg := prometheus.NewRegistry()
	m := metrics.NewCacheMetrics(reg)
	cache := NewVenueCache(client, repo, clockwork.NewFakeClock(), time.Minute, m)
	ctx := context.Background()

	venue, err := cache.GetVenue(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "The Tap Room", venue.Name)
	assert.True(t, mr.Exists(venueCacheKey("owner-1")), "L2 should be populated")

	_, err = cache.GetVenue(ctx, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), repo.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Hits.WithLabelValues("memory")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Misses.WithLabelValues("redis")), 0)
}

func TestVenueCache_ServesFromRedisLayer(t *testing.T) {
	_, client := setupTestClient(t)
	repo := venueRepo(testVenue)
	ctx := context.Background()

	// A second instance sharing Redis
	first := NewVenueCache(client, repo, clockwork.NewFakeClock(), time.Minute, nil)
	second := NewVenueCache(client, repo, clockwork.NewFakeClock(), time.Minute, nil)

	_, err := first.GetVenue(ctx, "owner-1")
	require.NoError(t, err)
	venue, err := second.GetVenue(ctx, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, "The Tap Room", venue.Name)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestVenueCache_WithoutRedis(t *testing.T) {
	repo := venueRepo(testVenue)
	cache := NewVenueCache(nil, repo, clockwork.NewFakeClock(), time.Minute, nil)

	_, err := cache.GetVenue(context.Background(), "owner-1")
	require.NoError(t, err)
	_, err = cache.GetVenue(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), repo.calls.Load())
	require.NoError(t, cache.Invalidate(context.Background(), "owner-1"))
}

func TestVenueCache_NotFoundPropagates(t *testing.T) {
	_, client := setupTestClient(t)
	cache := NewVenueCache(client, &mockVenueRepository{}, clockwork.NewFakeClock(), time.Minute, nil)

	_, err := cache.GetVenue(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestVenueCache_CollapsesConcurrentLoads(t *testing.T) {
	_, client := setupTestClient(t)
	release := make(chan struct{})
	repo := &mockVenueRepository{getFn: func(context.Context, string) (*domain.Venue, error) {
		<-release
		v := testVenue
		return &v, nil
	}}
	cache := NewVenueCache(client, repo, clockwork.NewFakeClock(), time.Minute, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_, err := cache.GetVenue(context.Background(), "owner-1")
			assert.NoError(t, err)
		})
	}
	assert.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestVenueCache_Invalidate(t *testing.T) {
	mr, client := setupTestClient(t)
	repo := venueRepo(testVenue)
	cache := NewVenueCache(client, repo, clockwork.NewFakeClock(), time.Minute, nil)
	ctx := context.Background()

	_, err := cache.GetVenue(ctx, "owner-1")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "owner-1"))

	assert.False(t, mr.Exists(venueCacheKey("owner-1")))
	_, hit := cache.mem.get("owner-1")
	assert.False(t, hit)

	_, err = cache.GetVenue(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestVenueCache_EvictionTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewVenueCache(nil, venueRepo(testVenue), clock, 10*time.Second, nil)
	cache.mem.set("owner-1", testVenue)

	stop := cache.StartEvictionTimer(time.Minute)
	defer stop()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return cache.mem.size() == 0 }, time.Second, time.Millisecond)
}
