package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/adapters/http/middleware"
	"scheduler/internal/application/orchestrators"
	"scheduler/internal/application/projections"
	"scheduler/internal/domain/session"
)

// flash carries one-shot messages and sticky form values into a dashboard render.
type flash struct {
	Error  string
	Notice string
	Form   map[string]string
}

// dashboardPage is the template data for dashboard.html.
type dashboardPage struct {
	projections.DashboardResult
	Error          string
	Notice         string
	Form           map[string]string
	MaxUploadBytes int
}

func wizardDeps() orchestrators.WizardDeps {
	return orchestrators.WizardDeps{Store: stores.WizardStore, DefaultCapacity: settings.DefaultCapacity}
}

// currentSession returns the session placed in the context by the auth
// middleware. Routes behind RequireAuth always have one.
func currentSession(r *http.Request) session.Session {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	return sess
}

// renderDashboard renders the current wizard step with any messages.
func renderDashboard(w http.ResponseWriter, r *http.Request, sess session.Session, f flash) {
	ctx := r.Context()
	st, err := orchestrators.LoadWizardState(ctx, sess.ID, wizardDeps())
	if err != nil {
		internalError(w, err)
		return
	}

	res, err := projections.QueryGetDashboard(ctx, projections.GetDashboardQuery{
		Token:          sess.AccessToken,
		State:          st,
		PriorityPrefix: settings.PriorityPrefix,
	}, projections.GetDashboardDeps{Backend: api})
	if err != nil {
		if backend.IsUnauthenticated(err) {
			expireSession(w, r, sess)
			return
		}
		internalError(w, err)
		return
	}
	if res.DefaultedTerm {
		if _, err := orchestrators.ExecuteSelectTerm(ctx, sess.ID, res.State.SelectedTermID, wizardDeps()); err != nil {
			internalError(w, err)
			return
		}
	}

	if f.Form == nil {
		f.Form = map[string]string{}
	}
	renderTemplate(w, r, "dashboard.html", dashboardPage{
		DashboardResult: res,
		Error:           f.Error,
		Notice:          f.Notice,
		Form:            f.Form,
		MaxUploadBytes:  orchestrators.MaxUploadBytes,
	})
}

// failAction reports a failed dashboard action. Messages meant for the user are
// shown inline on the current step, a rejected token signs the user out, and
// anything else is an internal error.
func failAction(w http.ResponseWriter, r *http.Request, sess session.Session, err error, f flash) {
	switch {
	case backend.IsUnauthenticated(err):
		expireSession(w, r, sess)
	case isDisplayable(err):
		f.Error = err.Error()
		renderDashboard(w, r, sess, f)
	default:
		internalError(w, err)
	}
}

func backToDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleDashboard handles GET /dashboard
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	renderDashboard(w, r, currentSession(r), flash{})
}

// handleTermSelect handles POST /dashboard/term/select
func handleTermSelect(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if _, err := orchestrators.ExecuteSelectTerm(r.Context(), sess.ID, r.FormValue("termId"), wizardDeps()); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleTermCreate handles POST /dashboard/term/create
func handleTermCreate(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	input := orchestrators.CreateTermInput{
		Token:     sess.AccessToken,
		Name:      r.FormValue("name"),
		StartDate: r.FormValue("startDate"),
		EndDate:   r.FormValue("endDate"),
	}
	if _, err := orchestrators.ExecuteCreateTerm(r.Context(), input, orchestrators.CreateTermDeps{Backend: api}); err != nil {
		failAction(w, r, sess, err, flash{Form: map[string]string{
			"name":      input.Name,
			"startDate": input.StartDate,
			"endDate":   input.EndDate,
		}})
		return
	}
	backToDashboard(w, r)
}

// handleTermDelete handles POST /dashboard/term/delete
func handleTermDelete(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	deps := orchestrators.DeleteTermDeps{Backend: api, Wizard: wizardDeps()}
	if _, err := orchestrators.ExecuteDeleteTerm(r.Context(), sess.ID, sess.AccessToken, r.FormValue("termId"), deps); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleTermNext handles POST /dashboard/term/next
func handleTermNext(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if termID := strings.TrimSpace(r.FormValue("termId")); termID != "" {
		if _, err := orchestrators.ExecuteSelectTerm(r.Context(), sess.ID, termID, wizardDeps()); err != nil {
			failAction(w, r, sess, err, flash{})
			return
		}
	}
	if _, err := orchestrators.ExecuteAdvanceToExcel(r.Context(), sess.ID, wizardDeps()); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleExcelUpload handles POST /dashboard/excel/upload
func handleExcelUpload(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	r.Body = http.MaxBytesReader(w, r.Body, orchestrators.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(orchestrators.MaxUploadBytes); err != nil {
		msg := orchestrators.MsgUploadNoFile
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = orchestrators.MsgUploadTooLarge
		}
		failAction(w, r, sess, &orchestrators.ValidationError{Message: msg}, flash{})
		return
	}

	input := orchestrators.UploadSectionsInput{
		SessionID: sess.ID,
		Token:     sess.AccessToken,
		TermID:    r.FormValue("termId"),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, orchestrators.MaxUploadBytes+1))
		if err != nil {
			failAction(w, r, sess, &orchestrators.ValidationError{Message: orchestrators.MsgUploadUnreadable}, flash{})
			return
		}
		input.Filename = header.Filename
		input.Data = data
	case !errors.Is(err, http.ErrMissingFile):
		failAction(w, r, sess, &orchestrators.ValidationError{Message: orchestrators.MsgUploadNoFile}, flash{})
		return
	}

	deps := orchestrators.UploadSectionsDeps{Backend: api, Wizard: wizardDeps()}
	if _, err := orchestrators.ExecuteUploadSections(r.Context(), input, deps); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleExcelBack handles POST /dashboard/excel/back
func handleExcelBack(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if _, err := orchestrators.ExecuteBackToTerm(r.Context(), sess.ID, wizardDeps()); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleSelectSearch handles GET /dashboard/select?q=
func handleSelectSearch(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if _, err := orchestrators.ExecuteSetCourseSearch(r.Context(), sess.ID, r.URL.Query().Get("q"), wizardDeps()); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleSelectSubmit handles POST /dashboard/select/submit
func handleSelectSubmit(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	input := selectionFromForm(r)
	input.SessionID = sess.ID
	input.Token = sess.AccessToken

	deps := orchestrators.SubmitSelectionDeps{Backend: api, Wizard: wizardDeps()}
	if _, err := orchestrators.ExecuteSubmitSelection(r.Context(), input, deps); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// selectionFromForm reads the course table. Every row posts code_<id> and
// count_<id>; checked rows also post course=<id>.
func selectionFromForm(r *http.Request) orchestrators.SubmitSelectionInput {
	in := orchestrators.SubmitSelectionInput{
		Checked:         map[string]bool{},
		Counts:          map[string]string{},
		Codes:           map[string]string{},
		DefaultCapacity: r.PostFormValue("defaultCapacity"),
	}
	for key, vals := range r.PostForm {
		id, ok := strings.CutPrefix(key, "code_")
		if !ok || id == "" || len(vals) == 0 {
			continue
		}
		in.Codes[id] = vals[0]
		in.Counts[id] = r.PostFormValue("count_" + id)
	}
	for _, id := range r.PostForm["course"] {
		if id = strings.TrimSpace(id); id != "" {
			in.Checked[id] = true
		}
	}
	return in
}

// handleCalendarYear handles GET /dashboard/calendar?year=
func handleCalendarYear(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if _, err := orchestrators.ExecuteSetCalendarYear(r.Context(), sess.ID, r.URL.Query().Get("year"), wizardDeps()); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleStartOver handles POST /dashboard/calendar/start-over
func handleStartOver(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	deps := orchestrators.StartOverDeps{Backend: api, Wizard: wizardDeps()}
	if _, err := orchestrators.ExecuteStartOver(r.Context(), sess.ID, sess.AccessToken, deps); err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	backToDashboard(w, r)
}

// handleGenerateSchedule handles POST /dashboard/calendar/generate
func handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	deps := orchestrators.GenerateScheduleDeps{Backend: api, Wizard: wizardDeps()}
	run, err := orchestrators.ExecuteGenerateSchedule(r.Context(), sess.ID, sess.AccessToken, deps)
	if err != nil {
		failAction(w, r, sess, err, flash{})
		return
	}
	renderDashboard(w, r, sess, flash{Notice: scheduleNotice(run.Conflicts)})
}

func scheduleNotice(conflicts int) string {
	switch conflicts {
	case 0:
		return "Schedule generated with no conflicts."
	case 1:
		return "Schedule generated with 1 conflict."
	default:
		return fmt.Sprintf("Schedule generated with %d conflicts.", conflicts)
	}
}
