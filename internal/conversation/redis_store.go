package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const stateTTL = 24 * time.Hour

// RedisStore persists widget state in Redis with an expiry matching the state TTL.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl uses 24 hours.
func NewRedisStore(client *redis.Client, tracer trace.Tracer, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("discovery.internal.conversation.store")
	}
	if ttl <= 0 {
		ttl = stateTTL
	}
	return &RedisStore{redis: client, tracer: tracer, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}
	st, err := decodeState(data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, st *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	data, err := encodeState(st)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.redis.Set(ctx, stateKey(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_state")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

func stateKey(key string) string {
	return fmt.Sprintf("widget_state:%s", key)
}
