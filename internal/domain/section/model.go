package section

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scheduler/internal/domain/course"
)

// Lesson types
const (
	LessonLecture = "Lecture"
	LessonLab     = "Lab"
)

// Weekdays in canonical Mon..Sun order, as short display names.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Domain errors
var (
	ErrInvalidClock = errors.New("time must be zero-padded HH:MM")
	ErrInvalidDay   = errors.New("day must be a valid day of the week")
	ErrSlotOrder    = errors.New("slot start must be before end")
)

// TimeSlot is one meeting interval of a session, in HH:MM.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Minutes returns the slot bounds as minutes since midnight.
// PRE: none
// POST: returns ErrInvalidClock when either bound is not strict HH:MM
func (s TimeSlot) Minutes() (int, int, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("slot start %q: %w", s.Start, err)
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return 0, 0, fmt.Errorf("slot end %q: %w", s.End, err)
	}
	if start >= end {
		return 0, 0, ErrSlotOrder
	}
	return start, end, nil
}

// Session is a recurring meeting pattern of a section.
type Session struct {
	ID         string
	LessonType string
	Days       []string
	TimeSlots  []TimeSlot
	Classroom  string
}

// IsLab reports whether the session is a laboratory.
func (s *Session) IsLab() bool {
	return strings.EqualFold(s.LessonType, LessonLab)
}

// Section is one scheduled offering of a course within a term.
type Section struct {
	ID                 string
	TermID             string
	Course             *course.Course // nil when the backend could not resolve it
	SectionNumber      int
	Sessions           []Session
	MaxCapacity        int
	AssignedLecturers  []string
	AssignedAssistants []string
	YearLevel          int
}

// HasCourse reports whether the related course resolved.
func (s *Section) HasCourse() bool {
	return s.Course != nil
}

// HasSessions reports whether at least one session exists.
func (s *Section) HasSessions() bool {
	return len(s.Sessions) > 0
}

// EffectiveYearLevel returns the section's year level, falling back to its course's.
func (s *Section) EffectiveYearLevel() int {
	if s.Course != nil && s.Course.YearLevel != 0 {
		return s.Course.YearLevel
	}
	return s.YearLevel
}

// ParseClock parses a strict zero-padded HH:MM string into minutes since midnight.
// PRE: none
// POST: returns ErrInvalidClock for anything but 00:00..23:59 with exactly five characters
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClock
	}
	digits := [4]byte{s[0], s[1], s[3], s[4]}
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, ErrInvalidClock
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrInvalidClock
	}
	return h*60 + m, nil
}

// CanonicalDay maps a day name ("Mon", "monday", "MONDAY") to its short display
// name and its index in Mon..Sun order.
func CanonicalDay(day string) (string, int, error) {
	d := strings.ToLower(strings.TrimSpace(day))
	if len(d) < 3 {
		return "", 0, ErrInvalidDay
	}
	for i, full := range weekdayNames {
		if d == full || d == full[:3] {
			return Weekdays[i], i, nil
		}
	}
	return "", 0, ErrInvalidDay
}

// --- JSON decoding ---

type wireSession struct {
	MongoID    string          `json:"_id"`
	ID         string          `json:"id"`
	LessonType string          `json:"lessonType"`
	Days       []string        `json:"days"`
	TimeSlots  []TimeSlot      `json:"timeSlots"`
	Classroom  json.RawMessage `json:"classroom"`
}

type wireSection struct {
	MongoID            string            `json:"_id"`
	ID                 string            `json:"id"`
	Term               json.RawMessage   `json:"term"`
	Course             json.RawMessage   `json:"course"`
	SectionNumber      int               `json:"sectionNumber"`
	Sessions           []wireSession     `json:"sessions"`
	MaxCapacity        int               `json:"maxCapacity"`
	AssignedLecturers  []json.RawMessage `json:"assignedLecturers"`
	AssignedAssistants []json.RawMessage `json:"assignedAssistants"`
	YearLevel          int               `json:"yearLevel"`
}

// UnmarshalJSON accepts the backend representation of a section. References
// (term, course, classroom, staff) may arrive as ids or populated objects.
// PRE: data is a JSON object
// POST: Course is nil when the backend sent null or omitted it
func (s *Section) UnmarshalJSON(data []byte) error {
	var w wireSection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Section{
		ID:            firstNonEmpty(w.MongoID, w.ID),
		TermID:        refID(w.Term),
		SectionNumber: w.SectionNumber,
		MaxCapacity:   w.MaxCapacity,
		YearLevel:     w.YearLevel,
	}
	c, err := decodeCourse(w.Course)
	if err != nil {
		return fmt.Errorf("section %s course: %w", s.ID, err)
	}
	s.Course = c
	for _, ws := range w.Sessions {
		s.Sessions = append(s.Sessions, Session{
			ID:         firstNonEmpty(ws.MongoID, ws.ID),
			LessonType: ws.LessonType,
			Days:       ws.Days,
			TimeSlots:  ws.TimeSlots,
			Classroom:  refLabel(ws.Classroom),
		})
	}
	s.AssignedLecturers = refLabels(w.AssignedLecturers)
	s.AssignedAssistants = refLabels(w.AssignedAssistants)
	return nil
}

func decodeCourse(raw json.RawMessage) (*course.Course, error) {
	if isNull(raw) {
		return nil, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return &course.Course{ID: id}, nil
	}
	var c course.Course
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func isNull(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

// refID returns the id of a reference that is either a string or an object.
func refID(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.MongoID, obj.ID)
	}
	return ""
}

// refLabel prefers a human-readable name over an id.
func refLabel(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.Name, obj.Email, obj.MongoID)
	}
	return ""
}

func refLabels(raws []json.RawMessage) []string {
	var out []string
	for _, r := range raws {
		if l := refLabel(r); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
