package course

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultPriorityPrefix is the course-code prefix listed first in the catalog.
const DefaultPriorityPrefix = "SE"

// Course is a catalog entry. It is read-only from the console's perspective.
type Course struct {
	ID                  string
	CourseCode          string
	Name                string
	TheoreticalSessions int
	LaboratorySessions  int
	Description         string
	YearLevel           int // 0 when the backend did not provide one
	Department          string
	Prerequisites       []string
}

type wireCourse struct {
	MongoID             string            `json:"_id"`
	ID                  string            `json:"id"`
	CourseCode          string            `json:"courseCode"`
	Name                string            `json:"name"`
	TheoreticalSessions int               `json:"theoreticalSessions"`
	LaboratorySessions  int               `json:"laboratorySessions"`
	Description         string            `json:"description"`
	YearLevel           int               `json:"yearLevel"`
	Year                int               `json:"year"`
	Department          string            `json:"department"`
	Prerequisites       []json.RawMessage `json:"prerequisites"`
}

// UnmarshalJSON accepts the backend representation of a course.
// PRE: data is a JSON object
// POST: yearLevel falls back to "year"; prerequisites may be codes, ids or populated objects
func (c *Course) UnmarshalJSON(data []byte) error {
	var w wireCourse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ID = w.MongoID
	if c.ID == "" {
		c.ID = w.ID
	}
	c.CourseCode = w.CourseCode
	c.Name = w.Name
	c.TheoreticalSessions = w.TheoreticalSessions
	c.LaboratorySessions = w.LaboratorySessions
	c.Description = w.Description
	c.YearLevel = w.YearLevel
	if c.YearLevel == 0 {
		c.YearLevel = w.Year
	}
	c.Department = w.Department
	c.Prerequisites = nil
	for _, raw := range w.Prerequisites {
		if p := prerequisiteLabel(raw); p != "" {
			c.Prerequisites = append(c.Prerequisites, p)
		}
	}
	return nil
}

func prerequisiteLabel(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		CourseCode string `json:"courseCode"`
		MongoID    string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.CourseCode != "" {
			return obj.CourseCode
		}
		return obj.MongoID
	}
	return ""
}

// HasPrefix reports whether the course code starts with prefix.
func (c *Course) HasPrefix(prefix string) bool {
	return prefix != "" && strings.HasPrefix(c.CourseCode, prefix)
}

// SortCatalog returns a copy of courses in catalog order: codes starting with
// prefix first, then the rest, each group ascending by code.
// PRE: none
// POST: input slice is not modified; result has the same elements
// INVARIANT: order does not depend on input order
func SortCatalog(courses []Course, prefix string) []Course {
	out := make([]Course, len(courses))
	copy(out, courses)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].HasPrefix(prefix), out[j].HasPrefix(prefix)
		if pi != pj {
			return pi
		}
		if out[i].CourseCode != out[j].CourseCode {
			return out[i].CourseCode < out[j].CourseCode
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Filter keeps courses whose code or name contains query, case-insensitively.
// An empty query returns courses unchanged.
func Filter(courses []Course, query string) []Course {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return courses
	}
	var out []Course
	for _, c := range courses {
		if strings.Contains(strings.ToLower(c.CourseCode), q) || strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}

// ByID indexes courses by ID.
func ByID(courses []Course) map[string]Course {
	m := make(map[string]Course, len(courses))
	for _, c := range courses {
		m[c.ID] = c
	}
	return m
}
