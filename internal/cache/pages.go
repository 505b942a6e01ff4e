package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type tagsKey struct{}

type pageTags struct {
	mu      sync.Mutex
	tags    []string
	noStore bool
}

// Tag attaches tags to the page being rendered so that InvalidateTag on any
// of them drops it. It does nothing outside the Pages middleware.
func Tag(ctx context.Context, tags ...string) {
	pt, ok := ctx.Value(tagsKey{}).(*pageTags)
	if !ok {
		return
	}
	pt.mu.Lock()
	pt.tags = append(pt.tags, tags...)
	pt.mu.Unlock()
}

// NoStore keeps the page being rendered out of the cache.
func NoStore(ctx context.Context) {
	pt, ok := ctx.Value(tagsKey{}).(*pageTags)
	if !ok {
		return
	}
	pt.mu.Lock()
	pt.noStore = true
	pt.mu.Unlock()
}

// LookupRecorder counts page cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(result string)
}

// Pages caches successful GET responses by request URI.
type Pages struct {
	store    Store
	ttl      time.Duration
	bypass   func(*http.Request) bool
	recorder LookupRecorder
}

// PagesOption configures Pages.
type PagesOption func(*Pages)

// WithBypass skips the cache for requests where fn returns true, such as
// authenticated or preview requests.
func WithBypass(fn func(*http.Request) bool) PagesOption {
	return func(p *Pages) { p.bypass = fn }
}

// WithLookupRecorder reports hits and misses to rec.
func WithLookupRecorder(rec LookupRecorder) PagesOption {
	return func(p *Pages) { p.recorder = rec }
}

// NewPages creates a page cache over store.
func NewPages(store Store, ttl time.Duration, opts ...PagesOption) *Pages {
	p := &Pages{store: store, ttl: ttl}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pages) record(result string) {
	if p.recorder != nil {
		p.recorder.RecordCacheLookup(result)
	}
}

// Middleware serves cached pages and stores fresh 200 responses.
func (p *Pages) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || (p.bypass != nil && p.bypass(r)) {
			w.Header().Set("X-Cache", "BYPASS")
			next.ServeHTTP(w, r)
			return
		}

		key := PageKey(r.URL.RequestURI())
		e, err := p.store.Get(r.Context(), key)
		if err == nil {
			p.record("hit")
			if e.ContentType != "" {
				w.Header().Set("Content-Type", e.ContentType)
			}
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(e.Status)
			_, _ = w.Write(e.Body)
			return
		}
		if !errors.Is(err, ErrMiss) {
			slog.Warn("page cache lookup failed", "key", key, "error", err)
		}
		p.record("miss")

		pt := &pageTags{}
		ctx := context.WithValue(r.Context(), tagsKey{}, pt)
		w.Header().Set("X-Cache", "MISS")
		rec := &teeWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		pt.mu.Lock()
		defer pt.mu.Unlock()
		if rec.status != http.StatusOK || pt.noStore || len(w.Header().Values("Set-Cookie")) > 0 {
			return
		}
		entry := &Entry{
			Status:      rec.status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
			Tags:        pt.tags,
		}
		if err := p.store.Set(r.Context(), key, entry, p.ttl); err != nil {
			slog.Warn("page cache store failed", "key", key, "error", err)
		}
	})
}

// teeWriter writes through to the client while keeping a copy of the body.
type teeWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (t *teeWriter) WriteHeader(code int) {
	if !t.wroteHeader {
		t.status = code
		t.wroteHeader = true
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	t.wroteHeader = true
	t.body.Write(b)
	return t.ResponseWriter.Write(b)
}
