package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateUserRejectsCaseInsensitiveDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "Alice", "alice@example.com", "hash", "key-1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice", "alice2@example.com", "hash", "key-2"); err != ErrConflict {
		t.Fatalf("expected ErrConflict for case-insensitive duplicate, got %v", err)
	}
}

func TestGetUserByUsernameIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "Bob", "bob@example.com", "hash", "key-3")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	found, err := s.GetUserByUsername(ctx, "BOB")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected to find user by case-insensitive username")
	}
}

func TestRotateAPIKeyChangesLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "carol", "carol@example.com", "hash", "old-key")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.RotateAPIKey(ctx, u.ID, "new-key"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := s.GetUserByAPIKey(ctx, "old-key"); err != ErrNotFound {
		t.Fatalf("expected old key to be gone, got %v", err)
	}
	found, err := s.GetUserByAPIKey(ctx, "new-key")
	if err != nil {
		t.Fatalf("get by new key: %v", err)
	}
	if found.ID != u.ID {
		t.Fatalf("expected rotated key to resolve to same user")
	}
}

func TestSandboxAutoNameAndOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "dave", "dave@example.com", "hash", "key-4")
	other, _ := s.CreateUser(ctx, "erin", "erin@example.com", "hash", "key-5")

	sb1, err := s.CreateSandbox(ctx, owner.ID, "", "container-1")
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	if sb1.Name != "Sandbox 1" {
		t.Fatalf("expected auto name 'Sandbox 1', got %q", sb1.Name)
	}

	sb2, err := s.CreateSandbox(ctx, owner.ID, "", "container-2")
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	if sb2.Name != "Sandbox 2" {
		t.Fatalf("expected auto name 'Sandbox 2', got %q", sb2.Name)
	}

	ok, err := s.IsOwner(ctx, owner.ID, sb1.ID)
	if err != nil || !ok {
		t.Fatalf("expected owner check to pass, got ok=%v err=%v", ok, err)
	}
	ok, err = s.IsOwner(ctx, other.ID, sb1.ID)
	if err != nil {
		t.Fatalf("is owner: %v", err)
	}
	if ok {
		t.Fatalf("expected non-owner check to fail")
	}

	list, err := s.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sandboxes, got %d", len(list))
	}

	deleted, err := s.DeleteSandbox(ctx, sb1.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = s.DeleteSandbox(ctx, sb1.ID)
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if deleted {
		t.Fatalf("expected second delete of same id to report no row removed")
	}
}
