package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wanderher/wanderher/internal/api/handler"
	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/metrics"
	"github.com/wanderher/wanderher/internal/preview"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/session"
	"github.com/wanderher/wanderher/internal/web"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Version     string
	OpenAPISpec []byte

	Identity handler.IdentityChecker
	DBPinger handler.Pinger // nil when profiles are kept in memory
	Cache    cache.Store
	Pages    *cache.Pages // nil disables the page cache

	Sessions middleware.SessionRefresher
	Cookies  session.CookieOptions
	Flows    handler.AuthFlows
	Ensurer  handler.ProfileEnsurer
	Profiles profile.Repository
	Posts    handler.PostSource
	Preview  *preview.Manager
	Renderer *web.Renderer

	RevalidateSecret string

	Metrics *metrics.Metrics       // nil disables instrumentation
	Limiter *middleware.RateLimiter // nil disables rate limiting
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	errorPage := handler.ErrorPage(deps.Renderer)

	// RemoteAddr is left as the socket peer. Rewriting it from forwarding
	// headers would let a client pick its own rate limit key.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(errorPage))
	r.Use(chimiddleware.Logger)
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.Session(deps.Sessions))
	r.Use(deps.Preview.Middleware)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil {
			return h
		}
		return deps.Limiter.Middleware(h)
	}

	var recorder handler.RevalidationRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	healthHandler := handler.NewHealthHandler(deps.Identity, deps.DBPinger, deps.Cache, deps.Version)
	siteHandler := handler.NewSiteHandler(deps.Renderer)
	blogHandler := handler.NewBlogHandler(deps.Posts, deps.Renderer)
	authHandler := handler.NewAuthHandler(deps.Flows, deps.Renderer, deps.Cookies)
	accountHandler := handler.NewAccountHandler(deps.Ensurer, deps.Profiles, deps.Posts, deps.Cache, deps.Renderer, deps.Cookies)
	previewHandler := handler.NewPreviewHandler(deps.Preview, deps.Renderer)
	revalidateHandler := handler.NewRevalidateHandler(deps.RevalidateSecret, deps.Cache, recorder)

	r.Get("/health", healthHandler.ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.Handle("/static/*", web.Static())

	r.Route("/api", func(r chi.Router) {
		if len(deps.OpenAPISpec) > 0 {
			openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
			r.Get("/openapi.json", openapiHandler.ServeJSON)
			r.Get("/openapi.yaml", openapiHandler.ServeYAML)
		}
		r.Method(http.MethodPost, "/revalidate", limited(revalidateHandler.ServeHTTP))
		r.Method(http.MethodGet, "/preview", limited(previewHandler.Enable))
		r.Get("/preview/exit", previewHandler.Exit)
	})

	// Public pages may be served from the page cache.
	r.Group(func(r chi.Router) {
		if deps.Pages != nil {
			r.Use(deps.Pages.Middleware)
		}
		r.Get("/", siteHandler.Home)
		r.Get("/about", siteHandler.About)
		r.Get("/safety", siteHandler.Safety)
		r.Get("/blog", blogHandler.Index)
		r.Get("/blog/{slug}", blogHandler.Post)
		r.Get("/u/{username}", accountHandler.PublicProfile)
	})

	r.Get("/login", authHandler.LoginPage)
	r.Method(http.MethodPost, "/login", limited(authHandler.Login))
	r.Get("/signup", authHandler.SignupPage)
	r.Method(http.MethodPost, "/signup", limited(authHandler.Signup))
	r.Post("/logout", authHandler.Logout)

	r.Get("/dashboard", accountHandler.Dashboard)
	r.Get("/profile", accountHandler.Profile)
	r.Post("/profile", accountHandler.UpdateProfile)
	r.Get("/settings", accountHandler.Settings)
	r.Post("/settings", accountHandler.UpdateSettings)

	r.NotFound(siteHandler.NotFound)

	return r
}

// PageCacheBypass reports whether a request must skip the page cache:
// signed-in visitors see their own navigation and previews see drafts.
func PageCacheBypass(r *http.Request) bool {
	return middleware.GetUser(r.Context()) != nil || cms.IsDraft(r.Context())
}
