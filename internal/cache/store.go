// Package cache holds rendered pages and CMS responses and invalidates them
// by path, tag or path prefix.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Key namespaces.
const (
	pagePrefix = "page:"
	dataPrefix = "data:"
)

// PageKey is the key of a rendered page. requestURI includes the query.
func PageKey(requestURI string) string { return pagePrefix + requestURI }

// DataKey is the key of a cached upstream response.
func DataKey(url string) string { return dataPrefix + url }

// Entry is a cached value together with the tags it was stored under.
type Entry struct {
	Status      int       `json:"status"`
	ContentType string    `json:"contentType,omitempty"`
	Body        []byte    `json:"body"`
	Tags        []string  `json:"tags,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store is a tagged key/value cache. Invalidating something that is not
// cached is not an error.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error
	// InvalidatePath drops the page cached for path under any query string
	// together with the entries sharing its tags, so the data the page was
	// rendered from is fetched again.
	InvalidatePath(ctx context.Context, path string) error
	// InvalidateTag drops every entry stored under tag.
	InvalidateTag(ctx context.Context, tag string) error
	// InvalidatePrefix drops every page whose path starts with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// StoreOption configures a MemoryStore or RedisStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	shared map[string]struct{}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{shared: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSharedTags names tags that span many pages. InvalidatePath does not
// follow them from a page to its data, so revalidating one page leaves the
// rest of the site cached.
func WithSharedTags(tags ...string) StoreOption {
	return func(o *storeOptions) {
		for _, t := range tags {
			o.shared[t] = struct{}{}
		}
	}
}

// pathTags returns the distinct tags of a page that InvalidatePath follows.
func (o storeOptions) pathTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := o.shared[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// InvalidationRecorder counts invalidations by kind.
type InvalidationRecorder interface {
	RecordCacheInvalidation(kind string)
}

type instrumented struct {
	Store
	rec InvalidationRecorder
}

// Instrument wraps s so that successful invalidations are reported to rec.
func Instrument(s Store, rec InvalidationRecorder) Store {
	return &instrumented{Store: s, rec: rec}
}

func (i *instrumented) InvalidatePath(ctx context.Context, path string) error {
	if err := i.Store.InvalidatePath(ctx, path); err != nil {
		return err
	}
	i.rec.RecordCacheInvalidation("path")
	return nil
}

func (i *instrumented) InvalidateTag(ctx context.Context, tag string) error {
	if err := i.Store.InvalidateTag(ctx, tag); err != nil {
		return err
	}
	i.rec.RecordCacheInvalidation("tag")
	return nil
}

func (i *instrumented) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := i.Store.InvalidatePrefix(ctx, prefix); err != nil {
		return err
	}
	i.rec.RecordCacheInvalidation("prefix")
	return nil
}
