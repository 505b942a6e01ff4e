package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/api/response"
	"github.com/wanderher/wanderher/internal/api/validation"
	"github.com/wanderher/wanderher/internal/cache"
)

// RevalidationRecorder counts webhook results.
type RevalidationRecorder interface {
	RecordRevalidation(result string)
}

// RevalidateHandler handles POST /api/revalidate, the CMS publish webhook.
type RevalidateHandler struct {
	secret   []byte
	store    cache.Store
	recorder RevalidationRecorder
	now      func() time.Time
}

// NewRevalidateHandler creates a RevalidateHandler. With an empty secret
// every request answers 503. rec may be nil.
func NewRevalidateHandler(secret string, store cache.Store, rec RevalidationRecorder) *RevalidateHandler {
	return &RevalidateHandler{
		secret:   []byte(secret),
		store:    store,
		recorder: rec,
		now:      time.Now,
	}
}

type revalidateResponse struct {
	Revalidated bool     `json:"revalidated"`
	Paths       []string `json:"paths"`
	Tags        []string `json:"tags"`
	Now         int64    `json:"now"`
}

func (h *RevalidateHandler) record(result string) {
	if h.recorder != nil {
		h.recorder.RecordRevalidation(result)
	}
}

// ServeHTTP validates the whole payload before touching the cache, so a bad
// request never invalidates anything.
func (h *RevalidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if len(h.secret) == 0 {
		h.record("not_configured")
		response.Err(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Revalidation is not configured", requestID)
		return
	}

	// The declared length may lie, so the read is capped as well.
	if r.ContentLength > validation.MaxRevalidateBodyBytes {
		h.tooLarge(w, requestID)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, validation.MaxRevalidateBodyBytes+1))
	if err != nil {
		h.record("invalid")
		response.Err(w, http.StatusBadRequest, "INVALID_BODY", "Request body could not be read", requestID)
		return
	}
	if len(body) > validation.MaxRevalidateBodyBytes {
		h.tooLarge(w, requestID)
		return
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		h.record("invalid")
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object", requestID)
		return
	}

	var given string
	rawSecret, ok := payload["secret"]
	if !ok || json.Unmarshal(rawSecret, &given) != nil || subtle.ConstantTimeCompare([]byte(given), h.secret) != 1 {
		h.record("unauthorized")
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid secret", requestID)
		return
	}

	paths, fieldErrors := validation.ValidateRevalidatePaths(payload["paths"])
	tags, tagErrors := validation.ValidateRevalidateTags(payload["tags"])
	fieldErrors = append(fieldErrors, tagErrors...)
	if len(fieldErrors) > 0 {
		h.record("invalid")
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	ctx := r.Context()
	for _, p := range paths {
		if err := h.store.InvalidatePath(ctx, p); err != nil {
			h.failed(w, requestID, "path", p, err)
			return
		}
	}
	for _, t := range tags {
		if err := h.store.InvalidateTag(ctx, t); err != nil {
			h.failed(w, requestID, "tag", t, err)
			return
		}
	}

	slog.Info("revalidated", "paths", paths, "tags", tags, "requestId", requestID)
	h.record("ok")

	response.Raw(w, http.StatusOK, revalidateResponse{
		Revalidated: true,
		Paths:       paths,
		Tags:        tags,
		Now:         h.now().UnixMilli(),
	})
}

func (h *RevalidateHandler) tooLarge(w http.ResponseWriter, requestID string) {
	h.record("too_large")
	response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body must be at most 10 KiB", requestID)
}

func (h *RevalidateHandler) failed(w http.ResponseWriter, requestID, kind, target string, err error) {
	slog.Error("revalidation failed", "kind", kind, "target", target, "error", err, "requestId", requestID)
	h.record("error")
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), requestID)
}
