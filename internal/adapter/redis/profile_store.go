package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felle787/LocalRadar2/internal/domain"
)

const observeBuffer = 16

// ProfileStore keeps profile records as JSON strings and publishes every write.
type ProfileStore struct {
	rdb *goredis.Client
}

var _ domain.ProfileStore = (*ProfileStore)(nil)

func NewProfileStore(rdb *goredis.Client) *ProfileStore {
	return &ProfileStore{rdb: rdb}
}

func profileChannel(sessionID string) string {
	return "profile:" + domain.ProfilePath(sessionID)
}

func storeError(op, sessionID string, err error) error {
	return &domain.StoreError{Op: op, Path: domain.ProfilePath(sessionID), Err: err}
}

func (s *ProfileStore) Read(ctx context.Context, sessionID string) (*domain.Profile, error) {
	data, err := s.rdb.Get(ctx, domain.ProfilePath(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, storeError("read", sessionID, err)
	}
	return decodeProfile(sessionID, data)
}

// Write stores profile and publishes it in one MULTI block.
func (s *ProfileStore) Write(ctx context.Context, sessionID string, profile domain.Profile) error {
	data, err := encodeProfile(profile)
	if err != nil {
		return storeError("write", sessionID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, domain.ProfilePath(sessionID), data, 0)
		pipe.Publish(ctx, profileChannel(sessionID), data)
		return nil
	})
	if err != nil {
		return storeError("write", sessionID, err)
	}
	return nil
}

// WriteIfAbsent stores profile only if no record exists and reports whether it did.
func (s *ProfileStore) WriteIfAbsent(ctx context.Context, sessionID string, profile domain.Profile) (bool, error) {
	data, err := encodeProfile(profile)
	if err != nil {
		return false, storeError("write", sessionID, err)
	}

	created, err := s.rdb.SetNX(ctx, domain.ProfilePath(sessionID), data, 0).Result()
	if err != nil {
		return false, storeError("write", sessionID, err)
	}
	if !created {
		return false, nil
	}

	if err := s.rdb.Publish(ctx, profileChannel(sessionID), data).Err(); err != nil {
		slog.Warn("Failed to publish created profile", "session_id", sessionID, "error", err)
	}
	return true, nil
}

// Observe subscribes to the record's channel, then emits the current value followed by every
// published write. The subscription is released and the channel closed when ctx is done.
func (s *ProfileStore) Observe(ctx context.Context, sessionID string) (<-chan domain.ProfileEvent, error) {
	sub := s.rdb.Subscribe(ctx, profileChannel(sessionID))
	// Wait for the subscription confirmation so no write between here and GET is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, storeError("observe", sessionID, err)
	}

	ch := make(chan domain.ProfileEvent, observeBuffer)
	ch <- s.current(ctx, sessionID)

	go func() {
		defer close(ch)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev := domain.ProfileEvent{}
				profile, err := decodeProfile(sessionID, []byte(msg.Payload))
				if err != nil {
					ev.Err = err
				} else {
					ev.Profile = profile
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (s *ProfileStore) current(ctx context.Context, sessionID string) domain.ProfileEvent {
	profile, err := s.Read(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return domain.ProfileEvent{}
	case err != nil:
		return domain.ProfileEvent{Err: err}
	default:
		return domain.ProfileEvent{Profile: profile}
	}
}

func encodeProfile(profile domain.Profile) ([]byte, error) {
	data, err := json.Marshal(profile.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}
	return data, nil
}

func decodeProfile(sessionID string, data []byte) (*domain.Profile, error) {
	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, storeError("decode", sessionID, err)
	}
	normalized := profile.Clone()
	return &normalized, nil
}
