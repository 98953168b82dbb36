// Package status records per-profile stream liveness in Redis so
// operators and the playback origin can observe a stream without
// polling playlists.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/livecast/internal/domain/repository"
)

const keyPrefix = "livecast:stream"

// RedisStatusStore implements repository.StatusStore on Redis.
type RedisStatusStore struct {
	client *redis.Client
	// ttl bounds how long a live marker survives without updates, so a
	// crashed streamer does not advertise a live stream forever.
	ttl time.Duration
}

var _ repository.StatusStore = (*RedisStatusStore)(nil)

// NewRedisStatusStore creates a status store. The live-state TTL is
// derived from the segment length: a healthy stream refreshes its keys
// at least once per segment.
func NewRedisStatusStore(client *redis.Client, segmentLength int) *RedisStatusStore {
	return &RedisStatusStore{
		client: client,
		ttl:    10 * time.Duration(segmentLength) * time.Second,
	}
}

func sequenceKey(profile string) string {
	return fmt.Sprintf("%s:%s:sequence", keyPrefix, profile)
}

func stateKey(profile string) string {
	return fmt.Sprintf("%s:%s:state", keyPrefix, profile)
}

// SetSequence records the newest published sequence and refreshes the
// live marker.
func (s *RedisStatusStore) SetSequence(ctx context.Context, profile string, sequence int) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, sequenceKey(profile), sequence, s.ttl)
	pipe.Set(ctx, stateKey(profile), repository.StreamStateLive, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record sequence: %w", err)
	}
	return nil
}

// SetEnded marks the stream ended. The ended marker is kept without a
// TTL; it is the terminal state of the session.
func (s *RedisStatusStore) SetEnded(ctx context.Context, profile string) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, stateKey(profile), repository.StreamStateEnded, 0)
	pipe.Persist(ctx, sequenceKey(profile))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record stream end: %w", err)
	}
	return nil
}
