package handler

import (
	"html/template"
	"net/http"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/api/validation"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/web"
)

// Renderer renders HTML pages.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, v web.View)
	Error(w http.ResponseWriter, status int, v web.View)
	Markdown(name string) template.HTML
}

func newView(r *http.Request, title string, data any) web.View {
	return web.View{
		Title: title,
		User:  middleware.GetUser(r.Context()),
		Draft: cms.IsDraft(r.Context()),
		Data:  data,
	}
}

func fieldErrorMap(errs []validation.FieldError) map[string]string {
	m := make(map[string]string, len(errs))
	for _, e := range errs {
		if _, seen := m[e.Field]; !seen {
			m[e.Field] = e.Message
		}
	}
	return m
}

// ErrorPage adapts a Renderer for middleware that needs to render errors.
func ErrorPage(renderer Renderer) middleware.ErrorPage {
	return func(w http.ResponseWriter, r *http.Request, status int) {
		renderer.Error(w, status, newView(r, "", nil))
	}
}

// SiteHandler serves the marketing pages.
type SiteHandler struct {
	renderer Renderer
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(renderer Renderer) *SiteHandler {
	return &SiteHandler{renderer: renderer}
}

// Home handles GET /.
func (h *SiteHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "home", newView(r, "", nil))
}

// About handles GET /about.
func (h *SiteHandler) About(w http.ResponseWriter, r *http.Request) {
	h.document(w, r, "About", "about")
}

// Safety handles GET /safety.
func (h *SiteHandler) Safety(w http.ResponseWriter, r *http.Request) {
	h.document(w, r, "Safety", "safety")
}

func (h *SiteHandler) document(w http.ResponseWriter, r *http.Request, title, name string) {
	doc := h.renderer.Markdown(name)
	if doc == "" {
		h.NotFound(w, r)
		return
	}
	h.renderer.Render(w, http.StatusOK, "document", newView(r, title, doc))
}

// NotFound renders the 404 page.
func (h *SiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
}
