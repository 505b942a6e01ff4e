package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wanderher/wanderher/internal/cache"
)

// Tag names under which CMS data and the pages built from it are cached.
const TagPosts = "posts"

// PageTag is the tag of one page of the post list.
func PageTag(page int) string { return "posts:page:" + strconv.Itoa(page) }

// SlugTag is the tag of a single post looked up by slug.
func SlugTag(slug string) string { return "post:" + slug }

// IDTag is the tag of a single post by id.
func IDTag(id int64) string { return "post:" + strconv.FormatInt(id, 10) }

type draftKey struct{}

// WithDraft marks ctx as a preview request; cached data is bypassed.
func WithDraft(ctx context.Context) context.Context {
	return context.WithValue(ctx, draftKey{}, true)
}

// IsDraft reports whether ctx was marked with WithDraft.
func IsDraft(ctx context.Context) bool {
	v, _ := ctx.Value(draftKey{}).(bool)
	return v
}

// CachedClient caches a Source in a cache.Store. Concurrent misses for the
// same key share one upstream request. Every call also tags the page being
// rendered, so invalidating a post tag drops both data and pages.
type CachedClient struct {
	source Source
	store  cache.Store
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedClient wraps source.
func NewCachedClient(source Source, store cache.Store, ttl time.Duration) *CachedClient {
	return &CachedClient{source: source, store: store, ttl: ttl}
}

type loaded[T any] struct {
	value *T
	tags  []string
}

func load[T any](ctx context.Context, c *CachedClient, key string, fetch func() (*T, []string, error)) (*T, error) {
	if e, err := c.store.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(e.Body, &v); err == nil {
			cache.Tag(ctx, e.Tags...)
			return &v, nil
		}
		slog.Warn("discarding unreadable cms cache entry", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("cms cache lookup failed", "key", key, "error", err)
	}

	shared, err, _ := c.group.Do(key, func() (any, error) {
		v, tags, err := fetch()
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding cms cache entry: %w", err)
		}
		entry := &cache.Entry{Status: http.StatusOK, ContentType: "application/json", Body: body, Tags: tags}
		if err := c.store.Set(ctx, key, entry, c.ttl); err != nil {
			slog.Warn("cms cache store failed", "key", key, "error", err)
		}
		return loaded[T]{value: v, tags: tags}, nil
	})
	if err != nil {
		return nil, err
	}

	r := shared.(loaded[T])
	cache.Tag(ctx, r.tags...)
	return r.value, nil
}

// ListPosts returns one page of posts.
func (c *CachedClient) ListPosts(ctx context.Context, page, perPage int) (*PostList, error) {
	if page < 1 {
		page = 1
	}
	tags := []string{TagPosts, PageTag(page)}
	if IsDraft(ctx) {
		cache.Tag(ctx, tags...)
		return c.source.ListPosts(ctx, page, perPage)
	}

	key := cache.DataKey(fmt.Sprintf("posts?page=%d&per_page=%d", page, perPage))
	return load(ctx, c, key, func() (*PostList, []string, error) {
		list, err := c.source.ListPosts(ctx, page, perPage)
		if err != nil {
			return nil, nil, err
		}
		return list, tags, nil
	})
}

// GetPostBySlug returns a single post. Misses are not cached.
func (c *CachedClient) GetPostBySlug(ctx context.Context, slug string) (*Post, error) {
	tags := []string{TagPosts, SlugTag(slug)}
	if IsDraft(ctx) {
		cache.Tag(ctx, tags...)
		return c.source.GetPostBySlug(ctx, slug)
	}

	key := cache.DataKey("posts?slug=" + slug)
	return load(ctx, c, key, func() (*Post, []string, error) {
		p, err := c.source.GetPostBySlug(ctx, slug)
		if err != nil {
			return nil, nil, err
		}
		return p, append(tags, IDTag(p.ID)), nil
	})
}
