package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process Store backed by an expiring LRU. Entries
// carry their own TTL; maxTTL only bounds how long the LRU keeps them.
type MemoryStore struct {
	entries *lru.LRU[string, *Entry]

	// tagMu guards tags. It is never held while calling into entries,
	// whose eviction callback takes it.
	tagMu sync.Mutex
	tags  map[string]map[string]struct{}

	opts storeOptions
	now  func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries.
func NewMemoryStore(maxEntries int, maxTTL time.Duration, opts ...StoreOption) *MemoryStore {
	if maxEntries < 10 {
		maxEntries = 10
	}
	s := &MemoryStore{
		tags: make(map[string]map[string]struct{}),
		opts: newStoreOptions(opts),
		now:  time.Now,
	}
	s.entries = lru.NewLRU[string, *Entry](maxEntries, s.onEvict, maxTTL)
	return s
}

func (s *MemoryStore) onEvict(key string, e *Entry) {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	for _, t := range e.Tags {
		if keys, ok := s.tags[t]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tags, t)
			}
		}
	}
}

// Get returns the entry stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if e.expired(s.now()) {
		s.entries.Remove(key)
		return nil, ErrMiss
	}
	return e, nil
}

// Set stores e under key for ttl and indexes it by its tags.
func (s *MemoryStore) Set(_ context.Context, key string, e *Entry, ttl time.Duration) error {
	stored := *e
	stored.Tags = append([]string(nil), e.Tags...)
	stored.Body = append([]byte(nil), e.Body...)
	if ttl > 0 {
		stored.ExpiresAt = s.now().Add(ttl)
	}
	s.entries.Add(key, &stored)

	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	for _, t := range stored.Tags {
		keys, ok := s.tags[t]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[t] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidatePath drops page:path and page:path?query entries, then every
// entry sharing one of their non-shared tags.
func (s *MemoryStore) InvalidatePath(ctx context.Context, path string) error {
	key := PageKey(path)
	var tags []string
	for _, k := range s.entries.Keys() {
		if k != key && !strings.HasPrefix(k, key+"?") {
			continue
		}
		if e, ok := s.entries.Peek(k); ok {
			tags = append(tags, e.Tags...)
		}
		s.entries.Remove(k)
	}
	for _, t := range s.opts.pathTags(tags) {
		if err := s.InvalidateTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateTag drops every entry indexed under tag.
func (s *MemoryStore) InvalidateTag(_ context.Context, tag string) error {
	s.tagMu.Lock()
	keys := s.tags[tag]
	delete(s.tags, tag)
	s.tagMu.Unlock()

	for k := range keys {
		s.entries.Remove(k)
	}
	return nil
}

// InvalidatePrefix drops every page whose path starts with prefix.
func (s *MemoryStore) InvalidatePrefix(_ context.Context, prefix string) error {
	p := PageKey(prefix)
	for _, k := range s.entries.Keys() {
		if strings.HasPrefix(k, p) {
			s.entries.Remove(k)
		}
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of live entries.
func (s *MemoryStore) Len() int { return s.entries.Len() }
