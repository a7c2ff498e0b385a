package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felle787/LocalRadar2/internal/domain"
)

const venueInvalidationChannel = "venue:invalidate"

// VenueInvalidator evicts a venue locally and tells every other instance to do the same.
type VenueInvalidator struct {
	rdb   *goredis.Client
	cache *VenueCache
}

var _ domain.VenueCacheInvalidator = (*VenueInvalidator)(nil)

// NewVenueInvalidator creates the invalidator. rdb may be nil for a single instance.
func NewVenueInvalidator(rdb *goredis.Client, cache *VenueCache) *VenueInvalidator {
	return &VenueInvalidator{rdb: rdb, cache: cache}
}

func (v *VenueInvalidator) InvalidateVenue(ctx context.Context, ownerID string) error {
	if err := v.cache.Invalidate(ctx, ownerID); err != nil {
		return err
	}
	if v.rdb == nil {
		return nil
	}
	if err := v.rdb.Publish(ctx, venueInvalidationChannel, ownerID).Err(); err != nil {
		return fmt.Errorf("failed to publish venue invalidation: %w", err)
	}
	return nil
}

// Start consumes invalidations published by any instance until ctx is done.
func (v *VenueInvalidator) Start(ctx context.Context) {
	if v.rdb == nil {
		return
	}

	pubsub := v.rdb.Subscribe(ctx, venueInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			v.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (v *VenueInvalidator) handleInvalidation(ownerID string) {
	if ownerID == "" {
		slog.Warn("Empty venue invalidation message")
		return
	}
	v.cache.invalidateLocal(ownerID)
	slog.Debug("Venue cache invalidated via pub/sub", "owner_id", ownerID)
}
