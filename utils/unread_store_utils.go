package utils

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const unreadKeyPrefix = "unread__"

// UnreadCountStore caches per-user unread notification counts in redis so
// the polling read model doesn't hit the database on every poll. The cache
// is advisory: a miss is recomputed from the notification store.
type UnreadCountStore struct {
	inner *redis.Client
}

func GetUnreadCountStore() (*UnreadCountStore, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &UnreadCountStore{inner: redisClient}, nil
}

func unreadKey(userId string) string {
	return unreadKeyPrefix + userId
}

// Get returns the cached count and whether the cache held a value.
func (s *UnreadCountStore) Get(ctx context.Context, userId string) (int64, bool, error) {
	val, err := s.inner.Get(ctx, unreadKey(userId)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (s *UnreadCountStore) Set(ctx context.Context, userId string, count int64) error {
	return s.inner.Set(ctx, unreadKey(userId), count, 0).Err()
}

func (s *UnreadCountStore) Incr(ctx context.Context, userId string, delta int64) error {
	return s.inner.IncrBy(ctx, unreadKey(userId), delta).Err()
}

// Invalidate drops the cached count so the next read recomputes it.
func (s *UnreadCountStore) Invalidate(ctx context.Context, userId string) error {
	return s.inner.Del(ctx, unreadKey(userId)).Err()
}
