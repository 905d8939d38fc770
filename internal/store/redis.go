package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisSeqKey    = "seq"
	redisSubPrefix = "submission/"
)

// RedisStore implements PendingStore on Redis. Ids come from INCR on a
// sequence key and each submission is stored as one JSON string value.
type RedisStore struct {
	Client *redis.Client
	prefix string
	ttl    time.Duration
}

// Compile-time interface check.
var _ PendingStore = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and verifies the connection. Every key
// is namespaced under prefix. ttl > 0 expires abandoned submissions.
func NewRedisStore(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{Client: rdb, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) subKey(id int64) string {
	return s.prefix + redisSubPrefix + strconv.FormatInt(id, 10)
}

func (s *RedisStore) Create(ctx context.Context, sub *Submission) (int64, error) {
	if err := validate(sub); err != nil {
		return 0, err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	id, err := s.Client.Incr(ctx, s.prefix+redisSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate submission id: %w", err)
	}

	rec := *sub
	rec.ID = id
	b, err := json.Marshal(&rec)
	if err != nil {
		return 0, fmt.Errorf("marshal submission: %w", err)
	}
	ok, err := s.Client.SetNX(ctx, s.subKey(id), b, s.ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("store submission %d: %w", id, err)
	}
	if !ok {
		return 0, fmt.Errorf("submission %d already exists", id)
	}

	sub.ID = id
	log.Debug().Int64("submissionId", id).Int("items", len(sub.Items)).Msg("Submission persisted to Redis")
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id int64) (*Submission, error) {
	b, err := s.Client.Get(ctx, s.subKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get submission %d: %w", id, err)
	}

	var sub Submission
	if err := json.Unmarshal(b, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal submission %d: %w", id, err)
	}
	sub.ID = id
	return &sub, nil
}

func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	n, err := s.Client.Del(ctx, s.subKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete submission %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	log.Debug().Int64("submissionId", id).Msg("Submission deleted from Redis")
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.Client.Close()
}
