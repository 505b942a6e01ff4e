package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/api/response"
)

const healthCheckTimeout = 2 * time.Second

// IdentityChecker checks the identity backend.
type IdentityChecker interface {
	Health(ctx context.Context) error
}

// Pinger checks a storage dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	identity IdentityChecker
	db       Pinger
	cache    Pinger
	version  string
}

// NewHealthHandler creates a new HealthHandler. db may be nil when profiles
// are kept in memory.
func NewHealthHandler(identity IdentityChecker, db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{
		identity: identity,
		db:       db,
		cache:    cache,
		version:  version,
	}
}

type dependencyStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Identity dependencyStatus  `json:"identity"`
	Database *dependencyStatus `json:"database,omitempty"`
	Cache    dependencyStatus  `json:"cache"`
}

func check(ctx context.Context, name string, fn func(context.Context) error) dependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("health check failed", "dependency", name, "error", err)
		return dependencyStatus{Connected: false}
	}
	return dependencyStatus{Connected: true}
}

// ServeHTTP handles the health check request. A failing dependency makes
// the status degraded; the endpoint itself always answers 200.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Identity: check(r.Context(), "identity", h.identity.Health),
		Cache:    check(r.Context(), "cache", h.cache.Ping),
	}
	if h.db != nil {
		db := check(r.Context(), "database", h.db.Ping)
		data.Database = &db
	}

	if !data.Identity.Connected || !data.Cache.Connected || (data.Database != nil && !data.Database.Connected) {
		data.Status = "degraded"
	}

	response.Success(w, http.StatusOK, data, requestID)
}
