package wizard

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scheduler/internal/adapters/storage"
	domain "scheduler/internal/domain/wizard"
)

// SQLiteStore implements Store using SQLite. Maps and the upload result are
// stored as JSON text columns.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new wizard state store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get loads the state for a session.
// PRE: sessionID is non-empty
// POST: Returns the row as stored or ErrNotFound; defaults are the caller's job
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (domain.State, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, step, selected_term_id, calendar_year, default_capacity,
			checked, counts, search, upload, updated_at
		FROM wizard_state WHERE session_id = ?`, sessionID)

	var st domain.State
	var step, checkedJSON, countsJSON, updatedStr string
	var uploadJSON sql.NullString
	err := row.Scan(&st.SessionID, &step, &st.SelectedTermID, &st.CalendarYear, &st.DefaultCapacity,
		&checkedJSON, &countsJSON, &st.Search, &uploadJSON, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.State{}, ErrNotFound
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("get wizard state: %w", err)
	}

	st.Step = domain.Step(step)
	if err := json.Unmarshal([]byte(checkedJSON), &st.Checked); err != nil {
		return domain.State{}, fmt.Errorf("decode checked courses: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &st.Counts); err != nil {
		return domain.State{}, fmt.Errorf("decode expected counts: %w", err)
	}
	if uploadJSON.Valid && uploadJSON.String != "" {
		var up domain.UploadResult
		if err := json.Unmarshal([]byte(uploadJSON.String), &up); err != nil {
			return domain.State{}, fmt.Errorf("decode upload result: %w", err)
		}
		st.Upload = &up
	}
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return st, nil
}

// Save persists the state (insert or update).
// PRE: value.SessionID references an existing session
// POST: the row mirrors value; UpdatedAt is stamped with the current time
func (s *SQLiteStore) Save(ctx context.Context, value domain.State) error {
	checked, err := json.Marshal(value.Checked)
	if err != nil {
		return fmt.Errorf("encode checked courses: %w", err)
	}
	counts, err := json.Marshal(value.Counts)
	if err != nil {
		return fmt.Errorf("encode expected counts: %w", err)
	}
	var upload sql.NullString
	if value.Upload != nil {
		b, err := json.Marshal(value.Upload)
		if err != nil {
			return fmt.Errorf("encode upload result: %w", err)
		}
		upload = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wizard_state (session_id, step, selected_term_id, calendar_year, default_capacity,
			checked, counts, search, upload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			step=excluded.step, selected_term_id=excluded.selected_term_id,
			calendar_year=excluded.calendar_year, default_capacity=excluded.default_capacity,
			checked=excluded.checked, counts=excluded.counts, search=excluded.search,
			upload=excluded.upload, updated_at=excluded.updated_at`,
		value.SessionID, string(value.Step), value.SelectedTermID, value.CalendarYear, value.DefaultCapacity,
		string(checked), string(counts), value.Search, upload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save wizard state: %w", err)
	}
	return nil
}

// Delete removes the state for a session. Deleting missing state is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM wizard_state WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete wizard state: %w", err)
	}
	return nil
}
