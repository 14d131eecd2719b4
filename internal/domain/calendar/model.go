package calendar

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"scheduler/internal/domain/section"
)

// Placeholder shown when a section's course could not be described.
const NotAvailable = "N/A"

// MapEntry is the display projection of one section.
type MapEntry struct {
	SectionID     string
	CourseCode    string
	CourseName    string
	SectionNumber int
	Lecturers     []string
	Sessions      []section.Session
	YearLevel     int
}

// SectionMap is an insertion-ordered map of section ID to display projection.
// It is rebuilt from source on every render and never patched in place.
type SectionMap struct {
	keys    []string
	entries map[string]MapEntry
}

// BuildSectionMap projects fetched sections into a SectionMap.
// PRE: none
// POST: one entry per distinct section ID, in first-seen order; later duplicates replace earlier ones
// INVARIANT: input slice is not modified
func BuildSectionMap(sections []section.Section) SectionMap {
	m := SectionMap{entries: make(map[string]MapEntry, len(sections))}
	for _, s := range sections {
		code, name := NotAvailable, NotAvailable
		if s.Course != nil {
			if s.Course.CourseCode != "" {
				code = s.Course.CourseCode
			}
			if s.Course.Name != "" {
				name = s.Course.Name
			}
		}
		if _, seen := m.entries[s.ID]; !seen {
			m.keys = append(m.keys, s.ID)
		}
		m.entries[s.ID] = MapEntry{
			SectionID:     s.ID,
			CourseCode:    code,
			CourseName:    name,
			SectionNumber: s.SectionNumber,
			Lecturers:     append([]string(nil), s.AssignedLecturers...),
			Sessions:      append([]section.Session(nil), s.Sessions...),
			YearLevel:     s.EffectiveYearLevel(),
		}
	}
	return m
}

// Len returns the number of sections in the map.
func (m SectionMap) Len() int { return len(m.keys) }

// Entries returns the projections in insertion order.
func (m SectionMap) Entries() []MapEntry {
	out := make([]MapEntry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.entries[k])
	}
	return out
}

// Get returns the projection for a section ID.
func (m SectionMap) Get(id string) (MapEntry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Entry is one rendered block: a section meeting on one day in one slot.
type Entry struct {
	Day           string
	Start         string
	End           string
	CourseCode    string
	SectionNumber int
	LessonType    string
	Lecturers     []string
	Classroom     string
}

// IsLab reports whether the entry should carry the lab badge.
func (e Entry) IsLab() bool {
	return strings.EqualFold(e.LessonType, section.LessonLab)
}

// Color returns the course's display color.
func (e Entry) Color() Color {
	return CourseColor(e.CourseCode)
}

// Slot is a distinct (start, end) pair.
type Slot struct {
	Start    string
	End      string
	startMin int
	endMin   int
}

// Key identifies the slot within a day column.
func (s Slot) Key() string {
	return s.Start + "-" + s.End
}

// Label is the row header text.
func (s Slot) Label() string {
	return s.Start + " – " + s.End
}

// Row is one time-slot row with one cell per rendered day.
type Row struct {
	Slot  Slot
	Cells [][]Entry
}

// Grid is the day x time-slot layout of a SectionMap.
type Grid struct {
	Days    []string
	Slots   []Slot
	Cells   map[string]map[string][]Entry
	Skipped int // session occurrences dropped for an unknown day or malformed time
}

// Cell returns the entries for a day and slot; a cell may hold several entries.
func (g Grid) Cell(day string, slot Slot) []Entry {
	return g.Cells[day][slot.Key()]
}

// Rows returns the grid row by row, in slot order, with cells in day order.
func (g Grid) Rows() []Row {
	rows := make([]Row, 0, len(g.Slots))
	for _, slot := range g.Slots {
		r := Row{Slot: slot, Cells: make([][]Entry, len(g.Days))}
		for i, day := range g.Days {
			r.Cells[i] = g.Cell(day, slot)
		}
		rows = append(rows, r)
	}
	return rows
}

// IsEmpty reports whether nothing would be rendered.
func (g Grid) IsEmpty() bool {
	return len(g.Days) == 0
}

// Flatten expands every section's sessions x days x time slots into entries.
// Occurrences with an unknown day or a time that is not strict HH:MM are skipped
// and counted.
// PRE: none
// POST: entries follow section insertion order, then session, day and slot order
func Flatten(m SectionMap) ([]Entry, int) {
	var entries []Entry
	skipped := 0
	for _, me := range m.Entries() {
		for _, sess := range me.Sessions {
			for _, rawDay := range sess.Days {
				day, _, err := section.CanonicalDay(rawDay)
				if err != nil {
					skipped += len(sess.TimeSlots)
					continue
				}
				for _, ts := range sess.TimeSlots {
					if _, _, err := ts.Minutes(); err != nil {
						skipped++
						continue
					}
					entries = append(entries, Entry{
						Day:           day,
						Start:         ts.Start,
						End:           ts.End,
						CourseCode:    me.CourseCode,
						SectionNumber: me.SectionNumber,
						LessonType:    sess.LessonType,
						Lecturers:     me.Lecturers,
						Classroom:     sess.Classroom,
					})
				}
			}
		}
	}
	return entries, skipped
}

// BuildGrid lays a SectionMap out as days x time slots.
// PRE: none
// POST: Days are the distinct days with at least one entry, in Mon..Sun order;
// Slots are the distinct (start,end) pairs ascending by start then end
// INVARIANT: deterministic; no entry is merged or dropped beyond malformed input
func BuildGrid(m SectionMap) Grid {
	entries, skipped := Flatten(m)
	g := Grid{Cells: make(map[string]map[string][]Entry), Skipped: skipped}

	slotSeen := make(map[string]bool)
	daySeen := make(map[string]bool)
	for _, e := range entries {
		key := e.Start + "-" + e.End
		if !slotSeen[key] {
			slotSeen[key] = true
			start, _ := section.ParseClock(e.Start)
			end, _ := section.ParseClock(e.End)
			g.Slots = append(g.Slots, Slot{Start: e.Start, End: e.End, startMin: start, endMin: end})
		}
		daySeen[e.Day] = true
		if g.Cells[e.Day] == nil {
			g.Cells[e.Day] = make(map[string][]Entry)
		}
		g.Cells[e.Day][key] = append(g.Cells[e.Day][key], e)
	}
	sort.SliceStable(g.Slots, func(i, j int) bool {
		if g.Slots[i].startMin != g.Slots[j].startMin {
			return g.Slots[i].startMin < g.Slots[j].startMin
		}
		return g.Slots[i].endMin < g.Slots[j].endMin
	})
	for _, d := range section.Weekdays {
		if daySeen[d] {
			g.Days = append(g.Days, d)
		}
	}
	return g
}

// Course block colors.
const (
	colorSaturation = 65
	colorLightness  = 80
	lightThreshold  = 60

	DarkText  = "#1a1a1a"
	LightText = "#fff"
)

// Color is an HSL color derived from a course code.
type Color struct {
	Hue        int
	Saturation int
	Lightness  int
}

// CourseColor derives a stable color from a course code. The hash walks UTF-16
// code units with 32-bit wrap-around on the shift, so the same code always lands
// on the same hue.
func CourseColor(code string) Color {
	var hash int64
	for _, unit := range utf16.Encode([]rune(code)) {
		shifted := int64(int32(hash) << 5)
		hash = int64(unit) + (shifted - hash)
	}
	if hash < 0 {
		hash = -hash
	}
	return Color{Hue: int(hash % 360), Saturation: colorSaturation, Lightness: colorLightness}
}

// String renders the color as a CSS hsl() value.
func (c Color) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.Hue, c.Saturation, c.Lightness)
}

// IsLight reports whether dark text is needed for contrast.
func (c Color) IsLight() bool {
	return c.Lightness > lightThreshold
}

// TextColor returns the foreground color to use on this background.
func (c Color) TextColor() string {
	if c.IsLight() {
		return DarkText
	}
	return LightText
}
