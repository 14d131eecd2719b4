package term

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the wire format used when creating terms.
const DateFormat = "2006-01-02"

// Domain errors
var (
	ErrEmptyName      = errors.New("term name cannot be empty")
	ErrInvalidDates   = errors.New("start date must be before end date")
	ErrEmptyStartDate = errors.New("start date cannot be zero")
	ErrEmptyEndDate   = errors.New("end date cannot be zero")
)

// Term is an academic period (e.g. a semester) that scopes sections and scheduling runs.
type Term struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

// Validate checks if the Term has valid data.
// PRE: Term struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Term) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.StartDate.IsZero() {
		return ErrEmptyStartDate
	}
	if t.EndDate.IsZero() {
		return ErrEmptyEndDate
	}
	if !t.StartDate.Before(t.EndDate) {
		return ErrInvalidDates
	}
	return nil
}

// Contains returns true if the given date falls within this term.
// PRE: date is a valid time
// INVARIANT: Term fields are not mutated
func (t *Term) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	start := t.StartDate.Truncate(24 * time.Hour)
	end := t.EndDate.Truncate(24 * time.Hour)
	return (d.Equal(start) || d.After(start)) && (d.Equal(end) || d.Before(end))
}

// DateRange formats the term's dates for display.
func (t *Term) DateRange() string {
	return t.StartDate.Format(DateFormat) + " – " + t.EndDate.Format(DateFormat)
}

// wireTerm mirrors the backend's JSON shape. The backend emits "_id";
// some endpoints emit "id".
type wireTerm struct {
	MongoID   string `json:"_id"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsActive  bool   `json:"isActive"`
}

// UnmarshalJSON accepts the backend representation of a term.
// PRE: data is a JSON object
// POST: ID is taken from "_id", falling back to "id"; dates accept RFC 3339 or YYYY-MM-DD
func (t *Term) UnmarshalJSON(data []byte) error {
	var w wireTerm
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, err := ParseDate(w.StartDate)
	if err != nil {
		return fmt.Errorf("term %q startDate: %w", w.Name, err)
	}
	end, err := ParseDate(w.EndDate)
	if err != nil {
		return fmt.Errorf("term %q endDate: %w", w.Name, err)
	}
	t.ID = w.MongoID
	if t.ID == "" {
		t.ID = w.ID
	}
	t.Name = w.Name
	t.StartDate = start
	t.EndDate = end
	t.IsActive = w.IsActive
	return nil
}

// MarshalJSON emits the backend representation.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTerm{
		MongoID:   t.ID,
		Name:      t.Name,
		StartDate: t.StartDate.Format(DateFormat),
		EndDate:   t.EndDate.Format(DateFormat),
		IsActive:  t.IsActive,
	})
}

// ParseDate parses either an RFC 3339 timestamp or a plain YYYY-MM-DD date.
// An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse(DateFormat, s)
}
