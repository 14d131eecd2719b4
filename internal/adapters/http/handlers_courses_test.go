package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/course"
)

func testCourses() []course.Course {
	return []course.Course{
		{ID: "c1", CourseCode: "CS100", Name: "Programming"},
		{ID: "c2", CourseCode: "SE101", Name: "Intro to Software", Description: "Covers **testing**.\n<script>alert(1)</script>", Prerequisites: []string{"CS100", "MATH1"}},
	}
}

// TestHandleCourses verifies the catalog page and its search.
func TestHandleCourses(t *testing.T) {
	setupWeb(t, &fakeAPI{courses: testCourses()})
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleCourses(rec, withSession(httptest.NewRequest(http.MethodGet, "/courses", nil), sess))
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "Showing 1-2 of 2 matching (2 courses).") {
		t.Fatalf("status=%d body=%s", rec.Code, body)
	}
	// The priority prefix sorts SE courses first.
	if strings.Index(body, "SE101") > strings.Index(body, "CS100") {
		t.Error("SE101 should be listed before CS100")
	}

	rec = httptest.NewRecorder()
	handleCourses(rec, withSession(httptest.NewRequest(http.MethodGet, "/courses?q=cs1", nil), sess))
	if !strings.Contains(rec.Body.String(), "Showing 1-1 of 1 matching (2 courses).") {
		t.Errorf("search should match one course: %s", rec.Body.String())
	}
}

// TestHandleCourses_BackendDown verifies a transport failure is shown inline.
func TestHandleCourses_BackendDown(t *testing.T) {
	setupWeb(t, &fakeAPI{err: fmt.Errorf("%w: ListCourses: connection refused", backend.ErrTransport)})
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleCourses(rec, withSession(httptest.NewRequest(http.MethodGet, "/courses", nil), sess))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "backend unreachable") {
		t.Errorf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

// TestHandleCourseDetail verifies markdown rendering and the not-found page.
func TestHandleCourseDetail(t *testing.T) {
	setupWeb(t, &fakeAPI{courses: testCourses()})
	sess := loginSession(t)

	req := httptest.NewRequest(http.MethodGet, "/courses/SE101", nil)
	req.SetPathValue("code", "SE101")
	rec := httptest.NewRecorder()
	handleCourseDetail(rec, withSession(req, sess))

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{"<strong>testing</strong>", "CS100, MATH1"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML in the description must not be rendered")
	}

	req = httptest.NewRequest(http.MethodGet, "/courses/NOPE1", nil)
	req.SetPathValue("code", "NOPE1")
	rec = httptest.NewRecorder()
	handleCourseDetail(rec, withSession(req, sess))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Course not found") {
		t.Errorf("missing course: status=%d", rec.Code)
	}
}

// TestHandleCourseDetail_Unauthenticated verifies a rejected token signs the user out.
func TestHandleCourseDetail_Unauthenticated(t *testing.T) {
	setupWeb(t, &fakeAPI{err: errBackendUnauthorized})
	sess := loginSession(t)

	req := httptest.NewRequest(http.MethodGet, "/courses/SE101", nil)
	req.SetPathValue("code", "SE101")
	rec := httptest.NewRecorder()
	handleCourseDetail(rec, withSession(req, sess))

	assertRedirect(t, rec, "/login")
	if _, err := stores.SessionStore.GetByID(context.Background(), sess.ID); err == nil {
		t.Error("session should be deleted")
	}
}

// TestHandleAPISchedule verifies the stored run is passed through and errors map to statuses.
func TestHandleAPISchedule(t *testing.T) {
	tests := []struct {
		name          string
		fake          *fakeAPI
		anonymous     bool
		wantStatus    int
		wantBody      string
		wantSignedOut bool
	}{
		{
			name:       "passthrough",
			fake:       &fakeAPI{schedule: backend.Schedule{Raw: []byte(`{"termId":"t1","conflicts":[]}`)}},
			wantStatus: http.StatusOK,
			wantBody:   `{"termId":"t1","conflicts":[]}`,
		},
		{
			name:       "no run yet",
			fake:       &fakeAPI{},
			wantStatus: http.StatusOK,
			wantBody:   "null",
		},
		{
			name:       "anonymous",
			fake:       &fakeAPI{},
			anonymous:  true,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "not authenticated",
		},
		{
			name:          "token rejected",
			fake:          &fakeAPI{err: errBackendUnauthorized},
			wantStatus:    http.StatusUnauthorized,
			wantBody:      "not authenticated",
			wantSignedOut: true,
		},
		{
			name:       "backend 404",
			fake:       &fakeAPI{err: &backend.APIError{Status: http.StatusNotFound, Message: "Schedule not found"}},
			wantStatus: http.StatusNotFound,
			wantBody:   "Schedule not found",
		},
		{
			name:       "transport",
			fake:       &fakeAPI{err: fmt.Errorf("%w: GetSchedule: timeout", backend.ErrTransport)},
			wantStatus: http.StatusBadGateway,
			wantBody:   "backend unreachable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupWeb(t, tt.fake)
			sess := loginSession(t)

			req := httptest.NewRequest(http.MethodGet, "/api/schedule/t1", nil)
			req.SetPathValue("termID", "t1")
			if !tt.anonymous {
				req = withSession(req, sess)
			}
			rec := httptest.NewRecorder()
			handleAPISchedule(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			_, err := stores.SessionStore.GetByID(context.Background(), sess.ID)
			if signedOut := err != nil; signedOut != tt.wantSignedOut {
				t.Errorf("session deleted = %v, want %v", signedOut, tt.wantSignedOut)
			}
			if tt.wantSignedOut && !strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0") {
				t.Error("session cookie should be cleared")
			}
		})
	}
}
