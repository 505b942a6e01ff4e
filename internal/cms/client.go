// Package cms reads blog posts from a WordPress REST API.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Sentinel errors returned by Source implementations.
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrNotConfigured = errors.New("cms base URL not configured")
	ErrUpstream      = errors.New("cms request failed")
)

const (
	maxResponseBytes = 8 << 20
	wpDateLayout     = "2006-01-02T15:04:05"
)

// Source is anything that can list and look up posts.
type Source interface {
	ListPosts(ctx context.Context, page, perPage int) (*PostList, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
}

// RequestRecorder counts CMS requests by result.
type RequestRecorder interface {
	RecordCMSRequest(result string)
}

// Client talks to the WordPress REST API under baseURL, for example
// https://example.com/wp-json/wp/v2.
type Client struct {
	baseURL    string
	httpClient *http.Client
	content    *bluemonday.Policy
	text       *bluemonday.Policy
	recorder   RequestRecorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestRecorder reports each request's result to rec.
func WithRequestRecorder(rec RequestRecorder) ClientOption {
	return func(c *Client) { c.recorder = rec }
}

// NewClient creates a Client. An empty baseURL yields a client whose calls
// fail with ErrNotConfigured.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		content: bluemonday.UGCPolicy(),
		text:    bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID       int64    `json:"id"`
	Slug     string   `json:"slug"`
	Date     string   `json:"date"`
	Title    rendered `json:"title"`
	Content  rendered `json:"content"`
	Excerpt  rendered `json:"excerpt"`
	Embedded struct {
		Author []struct {
			Name string `json:"name"`
		} `json:"author"`
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
			AltText   string `json:"alt_text"`
		} `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

func (c *Client) toPost(wp *wpPost) Post {
	p := Post{
		ID:          wp.ID,
		Slug:        wp.Slug,
		Title:       c.plain(wp.Title.Rendered),
		ContentHTML: template.HTML(c.content.Sanitize(wp.Content.Rendered)),
		ExcerptHTML: template.HTML(c.content.Sanitize(wp.Excerpt.Rendered)),
		Excerpt:     c.plain(wp.Excerpt.Rendered),
	}
	if d, err := time.Parse(wpDateLayout, wp.Date); err == nil {
		p.Date = d
	}
	if len(wp.Embedded.Author) > 0 {
		p.Author = wp.Embedded.Author[0].Name
	}
	if len(wp.Embedded.FeaturedMedia) > 0 && wp.Embedded.FeaturedMedia[0].SourceURL != "" {
		m := wp.Embedded.FeaturedMedia[0]
		p.FeaturedImage = &Image{URL: m.SourceURL, Alt: m.AltText}
	}
	return p
}

func (c *Client) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.text.Sanitize(s)))
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordCMSRequest(result)
	}
}

func (c *Client) get(ctx context.Context, query url.Values) ([]wpPost, http.Header, error) {
	if c.baseURL == "" {
		return nil, nil, ErrNotConfigured
	}

	query.Set("_embed", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/posts?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("error")
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.record("error")
		return nil, nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var posts []wpPost
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&posts); err != nil {
		c.record("error")
		return nil, nil, fmt.Errorf("%w: decoding posts: %v", ErrUpstream, err)
	}
	c.record("ok")
	return posts, resp.Header, nil
}

// ListPosts returns one page of published posts, newest first.
func (c *Client) ListPosts(ctx context.Context, page, perPage int) (*PostList, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	raw, header, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	list := &PostList{Page: page, TotalPages: 1, Posts: make([]Post, 0, len(raw))}
	if n, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil && n > 0 {
		list.TotalPages = n
	}
	for i := range raw {
		list.Posts = append(list.Posts, c.toPost(&raw[i]))
	}
	return list, nil
}

// GetPostBySlug returns the post with slug or ErrPostNotFound.
func (c *Client) GetPostBySlug(ctx context.Context, slug string) (*Post, error) {
	q := url.Values{}
	q.Set("slug", slug)

	raw, _, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrPostNotFound
	}
	p := c.toPost(&raw[0])
	return &p, nil
}
