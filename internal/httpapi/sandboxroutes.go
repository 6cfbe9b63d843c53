package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sandboxd/internal/auth"
	"sandboxd/internal/sandboxsvc"
)

type sandboxListItem struct {
	SandboxID string   `json:"sandbox_id"`
	Name      string   `json:"name"`
	CreatedAt string   `json:"created_at"`
	Packages  []string `json:"installed_packages"`
}

// handleListSandboxes returns the caller's sandboxes with a best-effort
// installed-package snapshot.
func (s *Server) handleListSandboxes(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	views, packages, err := s.svc.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list sandboxes")
		return
	}
	items := make([]sandboxListItem, 0, len(views))
	for _, v := range views {
		items = append(items, sandboxListItem{
			SandboxID: v.SandboxID,
			Name:      v.Name,
			CreatedAt: v.CreatedAt,
			Packages:  packages[v.SandboxID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sandboxes": items})
}

// handleDeleteSandbox tears down one of the caller's sandboxes: container
// and registry record both. A sandbox that exists but belongs to someone
// else reads as 404, same as one that never existed.
func (s *Server) handleDeleteSandbox(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sandboxID := chi.URLParam(r, "sandboxID")
	owned, err := s.svc.IsOwner(r.Context(), id.UserID, sandboxID)
	if err != nil || !owned {
		writeError(w, http.StatusNotFound, "sandbox not found")
		return
	}
	res, err := s.svc.Delete(r.Context(), sandboxID)
	if err != nil {
		if errors.Is(err, sandboxsvc.ErrSandboxNotFound) {
			writeError(w, http.StatusNotFound, "sandbox not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete sandbox")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "sandbox deleted",
		"removed_count": res.RemovedCount,
	})
}
