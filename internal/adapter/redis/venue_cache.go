package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
	"github.com/felle787/LocalRadar2/internal/domain"
)

const venueCacheTTL = 1 * time.Hour

// VenueCache is a read-through venue lookup: in-memory (L1), Redis (L2), repository (L3).
// Concurrent L3 loads of the same venue are collapsed into one query.
type VenueCache struct {
	rdb     goredis.Cmdable
	venues  domain.VenueRepository
	mem     *memoryCache
	loads   singleflight.Group
	metrics *metrics.CacheMetrics
	clock   clockwork.Clock
}

var _ domain.VenueSource = (*VenueCache)(nil)

// NewVenueCache creates the cache. rdb may be nil to run without the Redis layer; m may be nil.
func NewVenueCache(rdb goredis.Cmdable, venues domain.VenueRepository, clock clockwork.Clock, memTTL time.Duration, m *metrics.CacheMetrics) *VenueCache {
	return &VenueCache{
		rdb:     rdb,
		venues:  venues,
		mem:     newMemoryCache(clock, memTTL),
		metrics: m,
		clock:   clock,
	}
}

// StartEvictionTimer periodically drops expired in-memory entries. Call the returned func to stop.
func (c *VenueCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired venue cache entries", "count", evicted, "remaining", c.mem.size())
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (c *VenueCache) GetVenue(ctx context.Context, ownerID string) (*domain.Venue, error) {
	if venue, ok := c.mem.get(ownerID); ok {
		c.hit("memory")
		return venue, nil
	}
	c.miss("memory")

	if venue, ok := c.getCached(ctx, ownerID); ok {
		c.hit("redis")
		c.mem.set(ownerID, *venue)
		return venue, nil
	}
	c.miss("redis")

	v, err, _ := c.loads.Do(ownerID, func() (any, error) {
		venue, err := c.venues.Get(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		c.mem.set(ownerID, *venue)
		c.writeCache(ctx, ownerID, *venue)
		return venue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("venue lookup failed: %w", err)
	}
	venue := *v.(*domain.Venue)
	return &venue, nil
}

// Invalidate evicts the venue from this instance's memory layer and from Redis.
func (c *VenueCache) Invalidate(ctx context.Context, ownerID string) error {
	c.invalidateLocal(ownerID)

	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, venueCacheKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate venue cache: %w", err)
	}
	return nil
}

func (c *VenueCache) invalidateLocal(ownerID string) {
	c.mem.invalidate(ownerID)
	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
}

func (c *VenueCache) writeCache(ctx context.Context, ownerID string, venue domain.Venue) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(venue)
	if err != nil {
		slog.Warn("Failed to marshal venue for Redis cache", "owner_id", ownerID, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, venueCacheKey(ownerID), encoded, venueCacheTTL).Err(); err != nil {
		slog.Warn("Failed to populate Redis venue cache", "owner_id", ownerID, "error", err)
	}
}

func (c *VenueCache) getCached(ctx context.Context, ownerID string) (*domain.Venue, bool) {
	if c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, venueCacheKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis venue cache GET failed", "owner_id", ownerID, "error", err)
		}
		return nil, false
	}

	var venue domain.Venue
	if err := json.Unmarshal(data, &venue); err != nil {
		slog.Warn("Failed to unmarshal cached venue", "owner_id", ownerID, "error", err)
		return nil, false
	}
	return &venue, true
}

func (c *VenueCache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.Hits.WithLabelValues(layer).Inc()
	}
}

func (c *VenueCache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.Misses.WithLabelValues(layer).Inc()
	}
}

func venueCacheKey(ownerID string) string {
	return "venue_cache:" + ownerID
}

// memoryCache is the L1 layer with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	ttl     time.Duration
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	venue     domain.Venue
	expiresAt time.Time
}

func newMemoryCache(clock clockwork.Clock, ttl time.Duration) *memoryCache {
	return &memoryCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]memoryCacheEntry),
	}
}

func (c *memoryCache) get(ownerID string) (*domain.Venue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ownerID]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	venue := entry.venue
	return &venue, true
}

func (c *memoryCache) set(ownerID string, venue domain.Venue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ownerID] = memoryCacheEntry{
		venue:     venue,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

func (c *memoryCache) invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
