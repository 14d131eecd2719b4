package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/application/orchestrators"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

func testTerms() []term.Term {
	return []term.Term{
		{ID: "t1", Name: "Fall 2026", StartDate: testNow, EndDate: testNow.AddDate(0, 4, 0)},
		{ID: "t2", Name: "Spring 2027", StartDate: testNow.AddDate(0, 5, 0), EndDate: testNow.AddDate(0, 9, 0)},
	}
}

// TestHandleDashboard_FirstLoadSelectsFirstTerm verifies the default selection is persisted.
// PRE: no wizard state stored
// POST: the term step renders with t1 selected and stored
func TestHandleDashboard_FirstLoadSelectsFirstTerm(t *testing.T) {
	setupWeb(t, &fakeAPI{terms: testTerms()})
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleDashboard(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"Term Management", "Fall 2026", "Spring 2027", `value="t1" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	st := loadState(t, sess.ID)
	if st == nil || st.SelectedTermID != "t1" || st.Step != wizard.StepTerm {
		t.Errorf("stored state = %+v, want term step with t1", st)
	}
}

// TestHandleDashboard_UnauthenticatedClearsSession verifies a 401 signs the user out.
func TestHandleDashboard_UnauthenticatedClearsSession(t *testing.T) {
	setupWeb(t, &fakeAPI{err: errBackendUnauthorized})
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleDashboard(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), sess))

	assertRedirect(t, rec, "/login")
	if _, err := stores.SessionStore.GetByID(context.Background(), sess.ID); err == nil {
		t.Error("session should be deleted after a 401")
	}
}

// TestHandleTermActions walks select, create, delete and next.
func TestHandleTermActions(t *testing.T) {
	fake := &fakeAPI{terms: testTerms()}
	setupWeb(t, fake)
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleTermSelect(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/select", url.Values{"termId": {"t2"}}), sess))
	assertRedirect(t, rec, "/dashboard")
	if st := loadState(t, sess.ID); st == nil || st.SelectedTermID != "t2" {
		t.Fatalf("state after select = %+v", st)
	}

	rec = httptest.NewRecorder()
	handleTermCreate(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/create", url.Values{
		"name": {"Summer"}, "startDate": {"2027-06-01"}, "endDate": {"2027-08-01"},
	}), sess))
	assertRedirect(t, rec, "/dashboard")
	if fake.called("CreateTerm") != 1 {
		t.Errorf("CreateTerm calls = %d, want 1", fake.called("CreateTerm"))
	}

	rec = httptest.NewRecorder()
	handleTermDelete(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/delete", url.Values{"termId": {"t2"}}), sess))
	assertRedirect(t, rec, "/dashboard")
	if st := loadState(t, sess.ID); st == nil || st.SelectedTermID != "" {
		t.Fatalf("deleting the selected term should clear it, state = %+v", st)
	}

	// Next without a selection stays on the step with an inline error.
	rec = httptest.NewRecorder()
	handleTermNext(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/next", url.Values{}), sess))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No term selected") {
		t.Fatalf("next without term: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handleTermNext(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/next", url.Values{"termId": {"t1"}}), sess))
	assertRedirect(t, rec, "/dashboard")
	if st := loadState(t, sess.ID); st == nil || st.Step != wizard.StepExcel || st.SelectedTermID != "t1" {
		t.Fatalf("state after next = %+v", st)
	}
}

// TestHandleTermCreate_ValidationKeepsForm verifies errors are inline and inputs sticky.
func TestHandleTermCreate_ValidationKeepsForm(t *testing.T) {
	fake := &fakeAPI{terms: testTerms()}
	setupWeb(t, fake)
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	handleTermCreate(rec, withSession(formRequest(http.MethodPost, "/dashboard/term/create", url.Values{
		"name": {"Backwards"}, "startDate": {"2027-08-01"}, "endDate": {"2027-06-01"},
	}), sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Start date must be before end date.") || !strings.Contains(body, `value="Backwards"`) {
		t.Errorf("body missing error or sticky value: %s", body)
	}
	if fake.called("CreateTerm") != 0 {
		t.Error("invalid input must not reach the backend")
	}
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, termID, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("termId", termID); err != nil {
		t.Fatal(err)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/dashboard/excel/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// TestHandleExcelUpload verifies preflight rejections and a successful upload.
func TestHandleExcelUpload(t *testing.T) {
	good := workbook(t, []any{"courseCode", "section"}, []any{"SE101", 1})
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
		uploaded bool
	}{
		{name: "no file", filename: "", want: orchestrators.MsgUploadNoFile},
		{name: "not xlsx", filename: "sections.csv", data: []byte("a,b\n1,2\n"), want: orchestrators.MsgUploadNotXLSX},
		{name: "corrupt", filename: "sections.xlsx", data: []byte("not a zip"), want: orchestrators.MsgUploadUnreadable},
		{name: "header only", filename: "sections.xlsx", data: workbook(t, []any{"courseCode"}), want: orchestrators.MsgUploadNoRows},
		{name: "valid", filename: "sections.xlsx", data: good, uploaded: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{terms: testTerms(), upload: wizard.UploadResult{Created: 3, Skipped: 1}}
			setupWeb(t, fake)
			sess := loginSession(t)
			st := wizard.NewState(sess.ID, 45)
			st.SelectTerm("t1")
			st.Step = wizard.StepExcel
			saveState(t, st)

			rec := httptest.NewRecorder()
			handleExcelUpload(rec, withSession(uploadRequest(t, "t1", tt.filename, tt.data), sess))

			if got := fake.called("UploadSections") == 1; got != tt.uploaded {
				t.Fatalf("uploaded = %v, want %v", got, tt.uploaded)
			}
			stored := loadState(t, sess.ID)
			if tt.uploaded {
				assertRedirect(t, rec, "/dashboard")
				if stored.Step != wizard.StepSelect || stored.Upload == nil || stored.Upload.Created != 3 {
					t.Errorf("state after upload = %+v", stored)
				}
				return
			}
			if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("status=%d, body missing %q", rec.Code, tt.want)
			}
			if stored.Step != wizard.StepExcel {
				t.Errorf("step = %s, want excel", stored.Step)
			}
		})
	}
}

// TestHandleExcelBack verifies the step returns to term without other changes.
func TestHandleExcelBack(t *testing.T) {
	setupWeb(t, &fakeAPI{terms: testTerms()})
	sess := loginSession(t)
	st := wizard.NewState(sess.ID, 45)
	st.SelectTerm("t2")
	st.Step = wizard.StepExcel
	saveState(t, st)

	rec := httptest.NewRecorder()
	handleExcelBack(rec, withSession(formRequest(http.MethodPost, "/dashboard/excel/back", nil), sess))

	assertRedirect(t, rec, "/dashboard")
	if got := loadState(t, sess.ID); got.Step != wizard.StepTerm || got.SelectedTermID != "t2" {
		t.Errorf("state = %+v", got)
	}
}

func selectState(t *testing.T, sessID string) {
	t.Helper()
	st := wizard.NewState(sessID, 45)
	st.SelectTerm("t1")
	st.Step = wizard.StepSelect
	saveState(t, st)
}

// TestHandleSelectSubmit_Validation verifies inline messages and no backend call.
func TestHandleSelectSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{
			name:   "nothing checked",
			values: url.Values{"code_c1": {"SE101"}, "count_c1": {"30"}},
			want:   "Please select at least one course and enter expected student numbers.",
		},
		{
			name:   "missing count",
			values: url.Values{"course": {"c1"}, "code_c1": {"SE101"}, "count_c1": {""}},
			want:   "Enter the expected number of students for SE101.",
		},
		{
			name:   "negative count",
			values: url.Values{"course": {"c1"}, "code_c1": {"SE101"}, "count_c1": {"-4"}},
			want:   "Expected students for SE101 must be a positive whole number",
		},
		{
			name:   "bad capacity",
			values: url.Values{"course": {"c1"}, "code_c1": {"SE101"}, "count_c1": {"30"}, "defaultCapacity": {"0"}},
			want:   "Default capacity must be a positive whole number.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{courses: []course.Course{{ID: "c1", CourseCode: "SE101", Name: "Intro"}}}
			setupWeb(t, fake)
			sess := loginSession(t)
			selectState(t, sess.ID)

			rec := httptest.NewRecorder()
			handleSelectSubmit(rec, withSession(formRequest(http.MethodPost, "/dashboard/select/submit", tt.values), sess))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if fake.called("BulkSchedule") != 0 {
				t.Error("validation failure must not call the backend")
			}
		})
	}
}

// TestHandleSelectSubmit_Success verifies the bulk request and the move to calendar.
func TestHandleSelectSubmit_Success(t *testing.T) {
	fake := &fakeAPI{}
	setupWeb(t, fake)
	sess := loginSession(t)
	selectState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleSelectSubmit(rec, withSession(formRequest(http.MethodPost, "/dashboard/select/submit", url.Values{
		"course":          {"c2", "c1"},
		"code_c1":         {"SE101"},
		"count_c1":        {"30"},
		"code_c2":         {"SE202"},
		"count_c2":        {"25"},
		"code_c3":         {"CS100"},
		"count_c3":        {"99"},
		"defaultCapacity": {"40"},
	}), sess))

	assertRedirect(t, rec, "/dashboard")
	req := fake.lastReq
	if req.TermID != "t1" || req.DefaultCapacity != 40 || len(req.Sections) != 2 {
		t.Fatalf("bulk request = %+v", req)
	}
	if req.Sections[0].CourseID != "c1" || req.Sections[0].ExpectedStudents != 30 || req.Sections[1].CourseID != "c2" {
		t.Errorf("sections = %+v, want c1(30) then c2", req.Sections)
	}
	if st := loadState(t, sess.ID); st.Step != wizard.StepCalendar {
		t.Errorf("step = %s, want calendar", st.Step)
	}
}

// TestHandleSelectSubmit_BackendError verifies a rejected bulk request stays on the step.
func TestHandleSelectSubmit_BackendError(t *testing.T) {
	fake := &fakeAPI{err: &backend.APIError{Status: 400, Message: `["sections must not be empty"]`}}
	setupWeb(t, fake)
	sess := loginSession(t)
	selectState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleSelectSubmit(rec, withSession(formRequest(http.MethodPost, "/dashboard/select/submit", url.Values{
		"course": {"c1"}, "code_c1": {"SE101"}, "count_c1": {"30"},
	}), sess))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sections must not be empty") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if st := loadState(t, sess.ID); st.Step != wizard.StepSelect {
		t.Errorf("step = %s, want select", st.Step)
	}
}

// TestHandleSelectSearch verifies the search is stored.
func TestHandleSelectSearch(t *testing.T) {
	setupWeb(t, &fakeAPI{})
	sess := loginSession(t)
	selectState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleSelectSearch(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard/select?q=+se2+", nil), sess))

	assertRedirect(t, rec, "/dashboard")
	if st := loadState(t, sess.ID); st.Search != "se2" {
		t.Errorf("Search = %q, want se2", st.Search)
	}
}

func calendarState(t *testing.T, sessID string) {
	t.Helper()
	st := wizard.NewState(sessID, 45)
	st.SelectTerm("t1")
	st.Step = wizard.StepCalendar
	saveState(t, st)
}

// TestHandleDashboard_Calendar verifies the grid renders colored blocks.
func TestHandleDashboard_Calendar(t *testing.T) {
	fake := &fakeAPI{sections: []section.Section{{
		ID:                "s1",
		Course:            &course.Course{ID: "c1", CourseCode: "SE101", Name: "Intro"},
		SectionNumber:     2,
		AssignedLecturers: []string{"Dr. A", "Dr. B"},
		Sessions: []section.Session{{
			LessonType: section.LessonLab,
			Days:       []string{"Tuesday"},
			TimeSlots:  []section.TimeSlot{{Start: "09:00", End: "10:30"}},
		}},
	}}}
	setupWeb(t, fake)
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleDashboard(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Tue", "09:00", "SE101", "Dr. A, Dr. B", "Lab", "hsl("} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

// TestHandleDashboard_CalendarEmptyCells verifies slots without a meeting show a placeholder.
func TestHandleDashboard_CalendarEmptyCells(t *testing.T) {
	fake := &fakeAPI{sections: []section.Section{{
		ID:            "s1",
		Course:        &course.Course{ID: "c1", CourseCode: "SE101", Name: "Intro"},
		SectionNumber: 1,
		Sessions: []section.Session{
			{LessonType: section.LessonLecture, Days: []string{"Monday"}, TimeSlots: []section.TimeSlot{{Start: "09:00", End: "10:00"}}},
			{LessonType: section.LessonLecture, Days: []string{"Tuesday"}, TimeSlots: []section.TimeSlot{{Start: "11:00", End: "12:00"}}},
		},
	}}}
	setupWeb(t, fake)
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleDashboard(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Count(body, `<div class="block"`) != 2 {
		t.Errorf("want 2 course blocks, got %d", strings.Count(body, `<div class="block"`))
	}
	if !strings.Contains(body, `<span class="muted empty">&mdash;</span>`) {
		t.Error("empty cells should show a placeholder")
	}
}

// TestHandleDashboard_UploadDetails verifies the upload summary and its collapsible detail list.
func TestHandleDashboard_UploadDetails(t *testing.T) {
	setupWeb(t, &fakeAPI{courses: testCourses()})
	sess := loginSession(t)
	st := wizard.NewState(sess.ID, 45)
	st.SelectTerm("t1")
	st.Step = wizard.StepSelect
	st.Upload = &wizard.UploadResult{
		Created: 12,
		Skipped: 2,
		Details: []wizard.UploadDetail{{Identifier: "ROW5", Reason: "duplicate"}},
	}
	saveState(t, st)

	rec := httptest.NewRecorder()
	handleDashboard(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Created: 12, Skipped: 2", "<summary>Details (1)</summary>", "<li><strong>ROW5</strong>: duplicate</li>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if n := strings.Count(body, "<li><strong>"); n != 1 {
		t.Errorf("detail lines = %d, want 1", n)
	}
}

// TestHandleCalendarYear verifies the year filter.
func TestHandleCalendarYear(t *testing.T) {
	setupWeb(t, &fakeAPI{})
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleCalendarYear(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard/calendar?year=3", nil), sess))
	assertRedirect(t, rec, "/dashboard")
	if st := loadState(t, sess.ID); st.CalendarYear != 3 {
		t.Errorf("CalendarYear = %d, want 3", st.CalendarYear)
	}

	rec = httptest.NewRecorder()
	handleCalendarYear(rec, withSession(httptest.NewRequest(http.MethodGet, "/dashboard/calendar?year=7", nil), sess))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Year level must be between 1 and 4.") {
		t.Errorf("out of range: status=%d", rec.Code)
	}
	if st := loadState(t, sess.ID); st.CalendarYear != 3 {
		t.Errorf("CalendarYear = %d, want unchanged 3", st.CalendarYear)
	}
}

// TestHandleStartOver verifies sections are deleted and the wizard resets.
func TestHandleStartOver(t *testing.T) {
	fake := &fakeAPI{terms: testTerms(), sections: []section.Section{{ID: "s1"}, {ID: "s2"}}}
	setupWeb(t, fake)
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleStartOver(rec, withSession(formRequest(http.MethodPost, "/dashboard/calendar/start-over", nil), sess))

	assertRedirect(t, rec, "/dashboard")
	if fake.called("DeleteSection") != 2 {
		t.Errorf("DeleteSection calls = %d, want 2", fake.called("DeleteSection"))
	}
	if loadState(t, sess.ID) != nil {
		t.Error("wizard state should be reset")
	}
	if _, err := stores.SessionStore.GetByID(context.Background(), sess.ID); err != nil {
		t.Errorf("session should survive start over: %v", err)
	}
}

// TestHandleStartOver_AbortsOnFailure verifies the first failure stops the loop.
func TestHandleStartOver_AbortsOnFailure(t *testing.T) {
	fake := &fakeAPI{
		sections:         []section.Section{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}},
		deleteSectionErr: map[string]error{"s2": &backend.APIError{Status: 500, Message: "Failed to delete section"}},
	}
	setupWeb(t, fake)
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleStartOver(rec, withSession(formRequest(http.MethodPost, "/dashboard/calendar/start-over", nil), sess))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Failed to delete section") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if fake.called("DeleteSection") != 2 {
		t.Errorf("DeleteSection calls = %d, want 2", fake.called("DeleteSection"))
	}
	if st := loadState(t, sess.ID); st == nil || st.Step != wizard.StepCalendar {
		t.Errorf("state should be untouched, got %+v", st)
	}
}

// TestHandleGenerateSchedule verifies the conflict count notice.
func TestHandleGenerateSchedule(t *testing.T) {
	fake := &fakeAPI{schedule: backend.Schedule{Raw: []byte(`{"conflicts":[1,2]}`), Conflicts: 2}}
	setupWeb(t, fake)
	sess := loginSession(t)
	calendarState(t, sess.ID)

	rec := httptest.NewRecorder()
	handleGenerateSchedule(rec, withSession(formRequest(http.MethodPost, "/dashboard/calendar/generate", nil), sess))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Schedule generated with 2 conflicts.") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

// TestFailAction_StorageErrorIsInternal verifies unexpected errors are not shown to the user.
func TestFailAction_StorageErrorIsInternal(t *testing.T) {
	setupWeb(t, &fakeAPI{})
	sess := loginSession(t)

	rec := httptest.NewRecorder()
	failAction(rec, withSession(httptest.NewRequest(http.MethodPost, "/dashboard/term/next", nil), sess), sess, errors.New("database is locked"), flash{})

	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestScheduleNotice(t *testing.T) {
	tests := map[int]string{
		0: "Schedule generated with no conflicts.",
		1: "Schedule generated with 1 conflict.",
		5: "Schedule generated with 5 conflicts.",
	}
	for n, want := range tests {
		if got := scheduleNotice(n); got != want {
			t.Errorf("scheduleNotice(%d) = %q, want %q", n, got, want)
		}
	}
}
