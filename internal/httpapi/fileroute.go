package httpapi

import (
	"fmt"
	"net/http"

	"sandboxd/internal/auth"
	"sandboxd/internal/sandboxsvc"
)

// handleDownload serves a file out of a sandbox: ownership-checked,
// inline Content-Disposition, guessed MIME type.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sandboxID := r.URL.Query().Get("sandbox_id")
	filePath := r.URL.Query().Get("file_path")
	if sandboxID == "" || filePath == "" {
		writeError(w, http.StatusBadRequest, "sandbox_id and file_path are required")
		return
	}

	id, _ := auth.FromContext(r.Context())
	ok, err := s.svc.IsOwner(r.Context(), id.UserID, sandboxID)
	if err != nil || !ok {
		writeError(w, http.StatusForbidden, "Access denied.")
		return
	}

	file, err := s.svc.Download(r.Context(), sandboxID, filePath)
	if err != nil {
		if err == sandboxsvc.ErrDownloadNotFound {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
