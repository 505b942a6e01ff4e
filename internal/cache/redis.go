package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	tagPrefix = "tag:"
	// tagSetTTL outlives any entry TTL so a tag set never expires before
	// the entries it indexes.
	tagSetTTL = 24 * time.Hour
	scanCount = 100
)

// RedisStore is a Store shared by every replica through Redis. Tags are sets
// of keys under tag:<name>.
type RedisStore struct {
	client *redis.Client
	opts   storeOptions
}

// NewRedisStore connects to the Redis server at url.
func NewRedisStore(ctx context.Context, url string, storeOpts ...StoreOption) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, opts: newStoreOptions(storeOpts)}, nil
}

// Get returns the entry stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &e, nil
}

// Set stores e under key for ttl and adds key to each tag set.
func (s *RedisStore) Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error {
	stored := *e
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		for _, t := range stored.Tags {
			pipe.SAdd(ctx, tagPrefix+t, key)
			pipe.Expire(ctx, tagPrefix+t, tagSetTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// InvalidatePath drops page:path and page:path?query entries, then every
// entry sharing one of their non-shared tags.
func (s *RedisStore) InvalidatePath(ctx context.Context, path string) error {
	key := PageKey(path)
	keys := []string{key}
	pattern := escapeGlob(key+"?") + "*"
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}

	var tags []string
	for _, k := range keys {
		e, err := s.Get(ctx, k)
		if err != nil {
			// Missing or unreadable entries are deleted below either way.
			continue
		}
		tags = append(tags, e.Tags...)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete page %s: %w", path, err)
	}
	for _, t := range s.opts.pathTags(tags) {
		if err := s.InvalidateTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateTag drops every key in the tag set and the set itself.
func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) error {
	setKey := tagPrefix + tag
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read tag %s: %w", tag, err)
	}
	keys = append(keys, setKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tag %s: %w", tag, err)
	}
	return nil
}

// InvalidatePrefix drops every page whose path starts with prefix.
func (s *RedisStore) InvalidatePrefix(ctx context.Context, prefix string) error {
	return s.deleteMatching(ctx, escapeGlob(PageKey(prefix))+"*")
}

func (s *RedisStore) deleteMatching(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
