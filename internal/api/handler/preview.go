package handler

import (
	"log/slog"
	"net/http"

	"github.com/wanderher/wanderher/internal/preview"
	"github.com/wanderher/wanderher/internal/redirect"
)

// PreviewHandler turns draft mode on and off.
type PreviewHandler struct {
	manager  *preview.Manager
	renderer Renderer
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(manager *preview.Manager, renderer Renderer) *PreviewHandler {
	return &PreviewHandler{manager: manager, renderer: renderer}
}

// Enable handles GET /api/preview?secret=...&slug=...
func (h *PreviewHandler) Enable(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Configured() {
		h.renderer.Error(w, http.StatusServiceUnavailable, newView(r, "", nil))
		return
	}

	q := r.URL.Query()
	if !h.manager.CheckSecret(q.Get("secret")) {
		slog.Warn("preview request with invalid secret", "remoteAddr", r.RemoteAddr)
		h.renderer.Error(w, http.StatusUnauthorized, newView(r, "", nil))
		return
	}

	if err := h.manager.Enable(w); err != nil {
		slog.Error("failed to enable preview", "error", err)
		h.renderer.Error(w, http.StatusInternalServerError, newView(r, "", nil))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, preview.RedirectTarget(q.Get("slug")), http.StatusTemporaryRedirect)
}

// Exit handles GET /api/preview/exit.
func (h *PreviewHandler) Exit(w http.ResponseWriter, r *http.Request) {
	h.manager.Disable(w)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, redirect.LocalOr(r.URL.Query().Get("redirectTo"), "/blog"), http.StatusTemporaryRedirect)
}
