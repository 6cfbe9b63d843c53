package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sandboxd/internal/auth"
)

func TestRequireAuthInjectsIdentityForValidAPIKey(t *testing.T) {
	s, db := newTestServer(t)
	u, err := db.CreateUser(context.Background(), "erin", "erin@example.com", "hash", "a-valid-key")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	var seen auth.Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = auth.FromContext(r.Context())
		w.WriteHeader(200)
	})

	req := httptest.NewRequest("GET", "/sandbox/file", nil)
	req.Header.Set("X-API-Key", "a-valid-key")
	rr := httptest.NewRecorder()
	s.requireAuth(next).ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !ok || seen.UserID != u.ID {
		t.Fatalf("expected identity for user %s, got %+v (ok=%v)", u.ID, seen, ok)
	}
}

func TestRequireAuthRejectsMissingCredentials(t *testing.T) {
	s, _ := newTestServer(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest("GET", "/sandbox/file", nil)
	rr := httptest.NewRecorder()
	s.requireAuth(next).ServeHTTP(rr, req)

	if rr.Code != 401 {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if called {
		t.Fatalf("expected wrapped handler not to run")
	}
}
