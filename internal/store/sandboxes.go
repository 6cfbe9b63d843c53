package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sandbox is a registry record. ContainerID is private to this package's
// callers (internal/sandboxsvc); it never crosses the tool or HTTP
// boundary.
type Sandbox struct {
	ID          string
	UserID      string
	Name        string
	CreatedAt   time.Time
	ContainerID string
}

// CreateSandbox generates a UUID v4 id and, when name is empty,
// auto-names the sandbox "Sandbox N" where N is the caller's current
// sandbox count + 1.
func (s *Store) CreateSandbox(ctx context.Context, userID, name, containerID string) (Sandbox, error) {
	if name == "" {
		n, err := s.CountByUser(ctx, userID)
		if err != nil {
			return Sandbox{}, err
		}
		name = fmt.Sprintf("Sandbox %d", n+1)
	}
	rec := Sandbox{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		ContainerID: containerID,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sandboxes (id, user_id, name, created_at, docker_container_id)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.Name, nowRFC3339(), rec.ContainerID)
	if err != nil {
		return Sandbox{}, err
	}
	return rec, nil
}

func scanSandbox(row interface{ Scan(...any) error }) (Sandbox, error) {
	var rec Sandbox
	var created string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &created, &rec.ContainerID); err != nil {
		if err == sql.ErrNoRows {
			return Sandbox{}, ErrNotFound
		}
		return Sandbox{}, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return rec, nil
}

const sandboxCols = `id, user_id, name, created_at, docker_container_id`

func (s *Store) GetSandbox(ctx context.Context, id string) (Sandbox, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sandboxCols+` FROM sandboxes WHERE id = ?`, id)
	return scanSandbox(row)
}

// ListByUser returns the user's records ordered by creation.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Sandbox, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sandboxCols+` FROM sandboxes WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sandbox
	for rows.Next() {
		rec, err := scanSandbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sandboxes WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// DeleteSandbox removes the registry record, returning whether a row was
// actually deleted.
func (s *Store) DeleteSandbox(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sandboxes WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsOwner is a constant-time-in-spirit ownership check: a single indexed
// lookup rather than scanning the user's whole sandbox list.
func (s *Store) IsOwner(ctx context.Context, userID, sandboxID string) (bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM sandboxes WHERE id = ?`, sandboxID).Scan(&owner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}
