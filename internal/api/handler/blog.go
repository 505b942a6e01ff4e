package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/web"
)

// PostSource lists and looks up blog posts.
type PostSource interface {
	ListPosts(ctx context.Context, page, perPage int) (*cms.PostList, error)
	GetPostBySlug(ctx context.Context, slug string) (*cms.Post, error)
}

// BlogHandler serves the public blog. CMS failures degrade to an empty
// state rather than an error.
type BlogHandler struct {
	posts    PostSource
	renderer Renderer
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(posts PostSource, renderer Renderer) *BlogHandler {
	return &BlogHandler{posts: posts, renderer: renderer}
}

// Index handles GET /blog.
func (h *BlogHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
			return
		}
		page = n
	}

	list, err := h.posts.ListPosts(r.Context(), page, cms.DefaultPerPage)
	if err != nil {
		slog.Warn("blog index unavailable", "page", page, "error", err)
		cache.NoStore(r.Context())
		h.renderer.Render(w, http.StatusOK, "blog_index", newView(r, "Stories", web.BlogIndexData{Unavailable: true}))
		return
	}
	if page > 1 && page > list.TotalPages {
		h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
		return
	}

	h.renderer.Render(w, http.StatusOK, "blog_index", newView(r, "Stories", web.BlogIndexData{List: list}))
}

// Post handles GET /blog/{slug}.
func (h *BlogHandler) Post(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := h.posts.GetPostBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, cms.ErrPostNotFound) {
			h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
			return
		}
		slog.Warn("blog post unavailable", "slug", slug, "error", err)
		h.renderer.Error(w, http.StatusBadGateway, newView(r, "", web.ErrorData{
			Heading: "Story unavailable",
			Message: "We could not load this story right now. Please try again shortly.",
		}))
		return
	}

	h.renderer.Render(w, http.StatusOK, "blog_post", newView(r, post.Title, post))
}
