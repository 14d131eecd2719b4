package term_test

import (
	"encoding/json"
	"testing"
	"time"

	"scheduler/internal/domain/term"
)

// TestTerm_Validate tests validation of Term.
func TestTerm_Validate(t *testing.T) {
	start := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		term    term.Term
		wantErr error
	}{
		{"valid term", term.Term{ID: "1", Name: "Fall 2025", StartDate: start, EndDate: end}, nil},
		{"empty name", term.Term{ID: "2", Name: "  ", StartDate: start, EndDate: end}, term.ErrEmptyName},
		{"zero start date", term.Term{ID: "3", Name: "Fall", EndDate: end}, term.ErrEmptyStartDate},
		{"zero end date", term.Term{ID: "4", Name: "Fall", StartDate: start}, term.ErrEmptyEndDate},
		{"start after end", term.Term{ID: "5", Name: "Fall", StartDate: end, EndDate: start}, term.ErrInvalidDates},
		{"start equals end", term.Term{ID: "6", Name: "Fall", StartDate: start, EndDate: start}, term.ErrInvalidDates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.term.Validate(); err != tt.wantErr {
				t.Errorf("Term.Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestTerm_Contains tests the Contains method on Term.
func TestTerm_Contains(t *testing.T) {
	tm := term.Term{
		ID:        "1",
		Name:      "Fall 2025",
		StartDate: time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"before term", time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC), false},
		{"first day", time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), true},
		{"last day", time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), true},
		{"after term", time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tm.Contains(tt.date); got != tt.want {
				t.Errorf("Term.Contains(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

// TestTerm_UnmarshalJSON verifies both id spellings and both date formats are accepted.
func TestTerm_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"mongo id with timestamps", `{"_id":"t1","name":"Fall","startDate":"2025-09-15T00:00:00.000Z","endDate":"2026-01-16T00:00:00.000Z","isActive":true}`, "t1"},
		{"plain id with dates", `{"id":"t2","name":"Fall","startDate":"2025-09-15","endDate":"2026-01-16"}`, "t2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got term.Term
			if err := json.Unmarshal([]byte(tt.body), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.StartDate.Format(term.DateFormat) != "2025-09-15" {
				t.Errorf("StartDate = %v, want 2025-09-15", got.StartDate)
			}
		})
	}
}

// TestTerm_UnmarshalJSON_BadDate verifies a malformed date is reported.
func TestTerm_UnmarshalJSON_BadDate(t *testing.T) {
	var got term.Term
	err := json.Unmarshal([]byte(`{"_id":"t1","name":"Fall","startDate":"15/09/2025","endDate":"2026-01-16"}`), &got)
	if err == nil {
		t.Fatal("expected error for malformed startDate")
	}
}
