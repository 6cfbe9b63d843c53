package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sandboxd/internal/auth"
	"sandboxd/internal/store"
)

const tokenTTL = 24 * time.Hour

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not hash password")
		return
	}
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not generate api key")
		return
	}

	u, err := s.db.CreateUser(r.Context(), req.Username, req.Email, hashed, apiKey)
	if err != nil {
		if err == store.ErrConflict {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: u.ID, APIKey: u.APIKey})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	APIKey string `json:"api_key"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.db.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil || !u.IsActive {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(u.HashedPassword, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.IssueToken(s.authCfg.JWTSecret, u.ID, tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, APIKey: u.APIKey})
}

type rotateAPIKeyResponse struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	newKey, err := auth.GenerateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not generate api key")
		return
	}
	if err := s.db.RotateAPIKey(r.Context(), id.UserID, newKey); err != nil {
		writeError(w, http.StatusInternalServerError, "could not rotate api key")
		return
	}
	writeJSON(w, http.StatusOK, rotateAPIKeyResponse{APIKey: newKey})
}
