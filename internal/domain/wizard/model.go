package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"scheduler/internal/domain/course"
)

// Step is a position in the scheduling workflow.
type Step string

// Steps, in workflow order.
const (
	StepTerm     Step = "term"
	StepExcel    Step = "excel"
	StepSelect   Step = "select"
	StepCalendar Step = "calendar"
)

// Steps lists every step in order.
var Steps = []Step{StepTerm, StepExcel, StepSelect, StepCalendar}

var stepLabels = map[Step]string{
	StepTerm:     "Term Management",
	StepExcel:    "Excel Upload",
	StepSelect:   "Course Selection",
	StepCalendar: "Calendar",
}

// Year levels offered by the calendar filter.
const (
	MinYearLevel     = 1
	MaxYearLevel     = 4
	DefaultYearLevel = 1
)

// DefaultCapacity is the section capacity sent with bulk requests unless overridden.
const DefaultCapacity = 45

// Domain errors
var (
	ErrNoTermSelected   = errors.New("No term selected. Please go back and select a term.")
	ErrNothingSelected  = errors.New("Please select at least one course and enter expected student numbers.")
	ErrInvalidYearLevel = errors.New("Year level must be between 1 and 4.")
	ErrInvalidCapacity  = errors.New("Default capacity must be a positive whole number.")
)

// InvalidCountError reports a checked course whose expected-student count is unusable.
type InvalidCountError struct {
	CourseCode string
	Value      string
}

// Error implements the error interface.
func (e *InvalidCountError) Error() string {
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Sprintf("Enter the expected number of students for %s.", e.CourseCode)
	}
	return fmt.Sprintf("Expected students for %s must be a positive whole number (got %q).", e.CourseCode, e.Value)
}

// ParseStep converts a stored value to a Step. Missing or unknown values
// yield StepTerm.
func ParseStep(s string) Step {
	for _, st := range Steps {
		if string(st) == s {
			return st
		}
	}
	return StepTerm
}

// Index returns the zero-based position of the step.
func (s Step) Index() int {
	for i, st := range Steps {
		if st == s {
			return i
		}
	}
	return 0
}

// Label returns the human-readable step name.
func (s Step) Label() string {
	return stepLabels[s]
}

// UploadDetail explains why one spreadsheet row was skipped.
type UploadDetail struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// UploadResult is the backend's summary of a spreadsheet import.
type UploadResult struct {
	Created int            `json:"created"`
	Skipped int            `json:"skipped"`
	Details []UploadDetail `json:"details"`
}

// Summary renders the one-line result shown after an upload.
func (u UploadResult) Summary() string {
	return fmt.Sprintf("Created: %d, Skipped: %d", u.Created, u.Skipped)
}

// State is the per-session workflow state.
type State struct {
	SessionID       string
	Step            Step
	SelectedTermID  string
	CalendarYear    int
	DefaultCapacity int
	Checked         map[string]bool   // course ID -> checked
	Counts          map[string]string // course ID -> raw expected-students input
	Search          string
	Upload          *UploadResult
	UpdatedAt       time.Time
}

// NewState returns the initial state for a session.
// PRE: defaultCapacity > 0, otherwise DefaultCapacity is used
// POST: Step is StepTerm with empty selections
func NewState(sessionID string, defaultCapacity int) State {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	return State{
		SessionID:       sessionID,
		Step:            StepTerm,
		CalendarYear:    DefaultYearLevel,
		DefaultCapacity: defaultCapacity,
		Checked:         map[string]bool{},
		Counts:          map[string]string{},
	}
}

// Normalize repairs values loaded from storage.
// POST: Step is valid, CalendarYear in range, maps non-nil
func (s *State) Normalize(defaultCapacity int) {
	s.Step = ParseStep(string(s.Step))
	if s.CalendarYear < MinYearLevel || s.CalendarYear > MaxYearLevel {
		s.CalendarYear = DefaultYearLevel
	}
	if s.DefaultCapacity <= 0 {
		s.DefaultCapacity = defaultCapacity
		if s.DefaultCapacity <= 0 {
			s.DefaultCapacity = DefaultCapacity
		}
	}
	if s.Checked == nil {
		s.Checked = map[string]bool{}
	}
	if s.Counts == nil {
		s.Counts = map[string]string{}
	}
}

// SelectTerm records the chosen term.
func (s *State) SelectTerm(termID string) {
	s.SelectedTermID = strings.TrimSpace(termID)
}

// ClearTermIfSelected drops the selection when the given term was selected.
func (s *State) ClearTermIfSelected(termID string) {
	if s.SelectedTermID == termID {
		s.SelectedTermID = ""
	}
}

// AdvanceToExcel moves from term selection to upload.
// PRE: a term is selected
// POST: Step is StepExcel, or ErrNoTermSelected and the state is unchanged
func (s *State) AdvanceToExcel() error {
	if s.SelectedTermID == "" {
		return ErrNoTermSelected
	}
	s.Step = StepExcel
	return nil
}

// BackToTerm returns to the term step without other side effects.
func (s *State) BackToTerm() {
	s.Step = StepTerm
}

// CompleteUpload stores an upload result and moves to course selection.
func (s *State) CompleteUpload(termID string, result UploadResult) {
	s.SelectedTermID = termID
	s.Upload = &result
	s.Step = StepSelect
}

// CompleteSelection moves to the calendar after a successful bulk request.
func (s *State) CompleteSelection() {
	s.Step = StepCalendar
}

// SetCalendarYear changes the calendar's year filter.
// PRE: MinYearLevel <= year <= MaxYearLevel
func (s *State) SetCalendarYear(year int) error {
	if year < MinYearLevel || year > MaxYearLevel {
		return ErrInvalidYearLevel
	}
	s.CalendarYear = year
	return nil
}

// SetDefaultCapacity parses and stores the default capacity.
func (s *State) SetDefaultCapacity(raw string) error {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return ErrInvalidCapacity
	}
	s.DefaultCapacity = n
	return nil
}

// SetSelection replaces the checked set and counts from a submitted form.
// Counts for unchecked courses are discarded.
func (s *State) SetSelection(checked map[string]bool, counts map[string]string) {
	s.Checked = map[string]bool{}
	s.Counts = map[string]string{}
	for id, ok := range checked {
		if ok {
			s.Checked[id] = true
			s.Counts[id] = strings.TrimSpace(counts[id])
		}
	}
}

// Selected is a validated course choice.
type Selected struct {
	CourseID         string
	CourseCode       string
	ExpectedStudents int
}

// Selection validates the checked courses against the catalog.
// PRE: courses is the current catalog
// POST: returns choices ordered by course code; ErrNothingSelected when none are
// checked, *InvalidCountError for the first checked course with a bad count
// INVARIANT: state is not mutated
func (s *State) Selection(courses []course.Course) ([]Selected, error) {
	byID := course.ByID(courses)
	ids := make([]string, 0, len(s.Checked))
	for id, ok := range s.Checked {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := codeFor(byID, ids[i]), codeFor(byID, ids[j])
		if ci != cj {
			return ci < cj
		}
		return ids[i] < ids[j]
	})

	var out []Selected
	for _, id := range ids {
		code := codeFor(byID, id)
		raw := s.Counts[id]
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return nil, &InvalidCountError{CourseCode: code, Value: raw}
		}
		out = append(out, Selected{CourseID: id, CourseCode: code, ExpectedStudents: n})
	}
	if len(out) == 0 {
		return nil, ErrNothingSelected
	}
	return out, nil
}

func codeFor(byID map[string]course.Course, id string) string {
	if c, ok := byID[id]; ok && c.CourseCode != "" {
		return c.CourseCode
	}
	return id
}
