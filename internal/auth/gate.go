package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sandboxd/internal/config"
	"sandboxd/internal/store"
)

// ErrUnauthorized is returned by Gate.Resolve when no credential resolves
// to an active user and auth is required.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the caller context injected by the auth gate.
type Identity struct {
	UserID   string
	Username string
	APIKey   string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Gate resolves caller identity from bearer token, API key header, or
// API key query param, in that order.
type Gate struct {
	Store *store.Store
	Cfg   config.AuthConfig
}

func (g *Gate) Resolve(r *http.Request) (Identity, error) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if userID, err := VerifyToken(g.Cfg.JWTSecret, tok); err == nil {
			if u, err := g.Store.GetUserByID(r.Context(), userID); err == nil && u.IsActive {
				return Identity{UserID: u.ID, Username: u.Username, APIKey: u.APIKey}, nil
			}
		}
	}

	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		if id, ok := g.resolveAPIKey(r, key); ok {
			return id, nil
		}
	}

	if key := strings.TrimSpace(r.URL.Query().Get("api_key")); key != "" {
		if id, ok := g.resolveAPIKey(r, key); ok {
			return id, nil
		}
	}

	if !g.Cfg.RequireAuth {
		return Identity{UserID: g.Cfg.DefaultUserID, Username: g.Cfg.DefaultUserID}, nil
	}

	return Identity{}, ErrUnauthorized
}

func (g *Gate) resolveAPIKey(r *http.Request, key string) (Identity, bool) {
	u, err := g.Store.GetUserByAPIKey(r.Context(), key)
	if err != nil || !u.IsActive {
		return Identity{}, false
	}
	return Identity{UserID: u.ID, Username: u.Username, APIKey: u.APIKey}, true
}
