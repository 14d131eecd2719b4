package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scheduler/internal/adapters/storage"
	domain "scheduler/internal/domain/session"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new session store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a session by its ID.
// PRE: id is non-empty
// POST: Returns the session or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, access_token, email, created_at, expires_at FROM session WHERE id = ?", id)
	var entity domain.Session
	var createdStr, expiresStr string
	err := row.Scan(&entity.ID, &entity.AccessToken, &entity.Email, &createdStr, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	entity.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	entity.ExpiresAt, _ = time.Parse(timeLayout, expiresStr)
	return entity, nil
}

// Save persists a session.
// PRE: entity.ID is non-empty
// POST: Session is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, access_token, email, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET access_token=excluded.access_token, email=excluded.email, expires_at=excluded.expires_at`,
		entity.ID, entity.AccessToken, entity.Email,
		entity.CreatedAt.UTC().Format(timeLayout), entity.ExpiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session and, through the foreign key, its wizard state.
// Deleting a missing session is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
// PRE: none
// POST: returns the number of sessions removed
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM session WHERE expires_at <= ?", now.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
