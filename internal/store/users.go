package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is a row in the identity store.
type User struct {
	ID             string
	Username       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
	IsActive       bool
	APIKey         string
}

// CreateUser inserts a new user, returning ErrConflict on a case-insensitive
// username/email collision (the unique index enforces this).
func (s *Store) CreateUser(ctx context.Context, username, email, hashedPassword, apiKey string) (User, error) {
	u := User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
		APIKey:         apiKey,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, created_at, is_active, api_key)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, u.ID, u.Username, u.Email, u.HashedPassword, nowRFC3339(), u.APIKey)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var created string
	var active int
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &created, &active, &u.APIKey); err != nil {
		if err == sql.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	u.IsActive = active != 0
	return u, nil
}

const userCols = `id, username, email, hashed_password, created_at, is_active, api_key`

func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ? COLLATE NOCASE`, username)
	return scanUser(row)
}

func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE api_key = ?`, apiKey)
	return scanUser(row)
}

func (s *Store) RotateAPIKey(ctx context.Context, userID, newKey string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET api_key = ? WHERE id = ?`, newKey, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
