package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	specpkg "github.com/wanderher/wanderher/api"
	"github.com/wanderher/wanderher/internal/api"
	"github.com/wanderher/wanderher/internal/api/handler"
	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/authflow"
	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/config"
	"github.com/wanderher/wanderher/internal/database"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/metrics"
	"github.com/wanderher/wanderher/internal/preview"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/scheduler"
	"github.com/wanderher/wanderher/internal/session"
	"github.com/wanderher/wanderher/internal/telemetry"
	"github.com/wanderher/wanderher/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if cfg.CMSURLConflict {
		slog.Warn("conflicting CMS URL variables; using the preferred one",
			"preferred", config.CMSURLKey,
			"legacy", config.LegacyCMSURLKey,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		ServiceName:    "wanderher",
		ServiceVersion: cfg.Version,
	})
	if err != nil {
		slog.Warn("tracing setup failed; continuing without export", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	backend := initIdentity(cfg)

	profiles, db := initProfiles(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	store, closeStore := initCache(ctx, cfg)
	defer closeStore()
	store = cache.Instrument(store, m)

	if cfg.CMSURL == "" {
		slog.Warn("no CMS URL configured; blog pages will show their empty state")
	}
	cmsClient := cms.NewClient(cfg.CMSURL, cms.WithRequestRecorder(m))
	posts := cms.NewCachedClient(cmsClient, store, cfg.CMSCacheTTL)

	if cfg.PreviewSecret == "" {
		slog.Error("PREVIEW_SECRET is not set; preview mode is unavailable")
	}
	if cfg.RevalidateSecret == "" {
		slog.Error("REVALIDATE_SECRET is not set; the revalidation webhook is unavailable")
	}

	cookies := session.CookieOptions{Secure: cfg.CookieSecure}
	repairer := profile.NewRepairer(profiles, profile.WithRecorder(m))
	controller := authflow.NewController(backend, profiles, repairer, store, authflow.WithEventRecorder(m))

	renderer, err := web.New()
	if err != nil {
		slog.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(ctx)

	var dbPinger handler.Pinger
	if db != nil {
		dbPinger = db
	}

	router := api.NewRouter(api.RouterDeps{
		Version:          cfg.Version,
		OpenAPISpec:      specpkg.OpenAPISpec,
		Identity:         backend,
		DBPinger:         dbPinger,
		Cache:            store,
		Pages:            cache.NewPages(store, cfg.PageCacheTTL, cache.WithBypass(api.PageCacheBypass), cache.WithLookupRecorder(m)),
		Sessions:         session.NewRefresher(backend, cookies),
		Cookies:          cookies,
		Flows:            controller,
		Ensurer:          controller,
		Profiles:         profiles,
		Posts:            posts,
		Preview:          preview.NewManager(cfg.PreviewSecret, cfg.CookieSecure),
		Renderer:         renderer,
		RevalidateSecret: cfg.RevalidateSecret,
		Metrics:          m,
		Limiter:          limiter,
	})

	var sched *scheduler.Scheduler
	if cfg.PostsRefreshSchedule != "" {
		sched = scheduler.New(store, posts, cms.DefaultPerPage)
		if err := sched.Schedule(cfg.PostsRefreshSchedule); err != nil {
			slog.Error("invalid posts refresh schedule", "schedule", cfg.PostsRefreshSchedule, "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(router, "wanderher"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting WanderHer server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// initIdentity picks the identity backend. A hosted backend without its URL
// or key is disabled so the public site still serves.
func initIdentity(cfg *config.Config) identity.Backend {
	switch cfg.IdentityBackend {
	case config.IdentityMemory:
		slog.Warn("using in-memory identity backend; accounts are lost on restart")
		return identity.NewMemory(cfg.MemoryJWTSecret, cfg.BcryptCost)
	case config.IdentityHosted:
		if !cfg.IdentityConfigured() {
			slog.Error("IDENTITY_URL or IDENTITY_ANON_KEY is not set; sign-in is disabled")
			return identity.Disabled{}
		}
		return identity.NewHosted(cfg.IdentityURL, cfg.IdentityAnonKey, nil)
	default:
		slog.Error("unknown identity backend; sign-in is disabled", "backend", cfg.IdentityBackend)
		return identity.Disabled{}
	}
}

// initProfiles connects to Postgres when DATABASE_URL is set and falls back
// to an in-memory repository otherwise.
func initProfiles(ctx context.Context, cfg *config.Config) (profile.Repository, *database.DB) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set; profiles are kept in memory")
		return profile.NewMemoryRepository(), nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	return profile.NewRepository(db.Pool()), db
}

// initCache connects to Redis when REDIS_URL is set. A Redis outage at
// startup falls back to the in-process store.
func initCache(ctx context.Context, cfg *config.Config) (cache.Store, func()) {
	maxTTL := max(cfg.PageCacheTTL, cfg.CMSCacheTTL)
	shared := cache.WithSharedTags(cms.TagPosts)
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, shared)
		if err == nil {
			slog.Info("using redis cache")
			return rs, func() {
				if err := rs.Close(); err != nil {
					slog.Warn("failed to close redis client", "error", err)
				}
			}
		}
		slog.Error("redis unavailable; using in-process cache", "error", err)
	}
	return cache.NewMemoryStore(cfg.CacheMaxEntries, maxTTL, shared), func() {}
}
