// Package httpapi wires the HTTP surface: health check, the auth gate's
// registration/login/rotate routes, the sandbox management routes, the
// file-download route, and the MCP tool-dispatch transport.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"sandboxd/internal/auth"
	"sandboxd/internal/config"
	"sandboxd/internal/logging"
	"sandboxd/internal/sandboxsvc"
	"sandboxd/internal/store"
)

type Server struct {
	gate      *auth.Gate
	db        *store.Store
	authCfg   config.AuthConfig
	svc       *sandboxsvc.Manager
	log       *logging.Logger
	getServer func(r *http.Request) *mcpsdk.Server
}

func New(gate *auth.Gate, db *store.Store, authCfg config.AuthConfig, svc *sandboxsvc.Manager, getServer func(r *http.Request) *mcpsdk.Server, log *logging.Logger) *Server {
	return &Server{gate: gate, db: db, authCfg: authCfg, svc: svc, getServer: getServer, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(s.requireAuth).Post("/rotate-api-key", s.handleRotateAPIKey)
	})

	r.Route("/api/users/me/sandboxes", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListSandboxes)
		r.Delete("/{sandboxID}", s.handleDeleteSandbox)
	})

	r.With(s.requireAuth).Get("/sandbox/file", s.handleDownload)

	mcpHandler := mcpsdk.NewStreamableHTTPHandler(s.getServer, &mcpsdk.StreamableHTTPOptions{JSONResponse: true})
	authedMCP := s.requireAuth(mcpHandler)
	r.Handle("/sse", authedMCP)
	r.Handle("/messages/", authedMCP)
	r.Handle("/messages/*", authedMCP)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
