// Package web renders the server-side HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/profile"
)

//go:embed templates static content
var assets embed.FS

// View is what every page template receives. Data holds the page's own
// values.
type View struct {
	Title string
	User  *identity.User
	Draft bool
	Data  any
}

// ErrorData fills the error page.
type ErrorData struct {
	Status  int
	Heading string
	Message string
}

// FormData carries a form's submitted values and its errors back to the
// page.
type FormData struct {
	Values  map[string]string
	Errors  map[string]string
	Message string
	Notice  string
}

// BlogIndexData fills the blog index. Unavailable means the CMS failed and
// the page shows an empty state.
type BlogIndexData struct {
	List        *cms.PostList
	Unavailable bool
}

// DashboardData fills the dashboard.
type DashboardData struct {
	Profile *profile.Profile
	Posts   []cms.Post
}

// ProfileData fills the profile and settings pages.
type ProfileData struct {
	Profile *profile.Profile
	Form    FormData
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	pages    map[string]*template.Template
	markdown map[string]template.HTML
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 January 2006")
	},
	"add": func(a, b int) int { return a + b },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

// New parses every page template and renders the Markdown content.
func New() (*Renderer, error) {
	r := &Renderer{
		pages:    make(map[string]*template.Template),
		markdown: make(map[string]template.HTML),
	}

	files, err := fs.Glob(assets, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing page templates: %w", err)
	}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New(name).Funcs(funcs).ParseFS(assets, "templates/layout.html", f)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.pages[name] = t
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	docs, err := fs.Glob(assets, "content/*.md")
	if err != nil {
		return nil, fmt.Errorf("listing content: %w", err)
	}
	for _, f := range docs {
		src, err := fs.ReadFile(assets, f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f, err)
		}
		// goldmark escapes raw HTML in the source, so the output is safe.
		r.markdown[strings.TrimSuffix(path.Base(f), ".md")] = template.HTML(buf.String())
	}

	return r, nil
}

// Markdown returns a rendered content document, or "" if it does not exist.
func (r *Renderer) Markdown(name string) template.HTML {
	return r.markdown[name]
}

// Render writes page with the given status. The page is executed into a
// buffer first so a template error still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, v View) {
	t, ok := r.pages[page]
	if !ok {
		slog.Error("unknown page template", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		slog.Error("failed to render page", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("failed to write page", "page", page, "error", err)
	}
}

var errorDefaults = map[int]ErrorData{
	http.StatusNotFound: {
		Heading: "Page not found",
		Message: "The page you were looking for has wandered off.",
	},
	http.StatusUnauthorized: {
		Heading: "Preview unavailable",
		Message: "This preview link is not valid.",
	},
	http.StatusBadGateway: {
		Heading: "Content unavailable",
		Message: "We could not load stories right now. Please try again shortly.",
	},
	http.StatusServiceUnavailable: {
		Heading: "Temporarily unavailable",
		Message: "This part of the site is not available right now.",
	},
	http.StatusInternalServerError: {
		Heading: "Something went wrong",
		Message: "An unexpected error occurred. Please try again.",
	},
}

// Error renders the fallback page for status. Heading and Message default
// per status when empty.
func (r *Renderer) Error(w http.ResponseWriter, status int, v View) {
	data, _ := v.Data.(ErrorData)
	def, ok := errorDefaults[status]
	if !ok {
		def = errorDefaults[http.StatusInternalServerError]
	}
	if data.Heading == "" {
		data.Heading = def.Heading
	}
	if data.Message == "" {
		data.Message = def.Message
	}
	data.Status = status
	v.Data = data
	if v.Title == "" {
		v.Title = data.Heading
	}
	r.Render(w, status, "error", v)
}

// Static serves the embedded assets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
