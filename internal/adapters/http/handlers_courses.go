package web

import (
	"errors"
	"log/slog"
	"net/http"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/application/listutil"
	"scheduler/internal/application/projections"
	"scheduler/internal/domain/course"
)

// handleCourses handles GET /courses
func handleCourses(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	list := listutil.ParseListParams(r.URL.Query(), projections.CatalogSortColumns)
	search := list.Search
	res, err := projections.QueryGetCourseCatalog(r.Context(), projections.GetCourseCatalogQuery{
		Token:          sess.AccessToken,
		Search:         search,
		PriorityPrefix: settings.PriorityPrefix,
		List:           list,
	}, projections.GetCourseCatalogDeps{Backend: api})
	switch {
	case backend.IsUnauthenticated(err):
		expireSession(w, r, sess)
		return
	case err != nil && !isDisplayable(err):
		internalError(w, err)
		return
	}

	data := map[string]any{"Catalog": res, "Search": search, "Error": ""}
	if err != nil {
		data["Error"] = err.Error()
	}
	renderTemplate(w, r, "courses.html", data)
}

// handleCourseDetail handles GET /courses/{code}
func handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	code := r.PathValue("code")
	c, err := projections.QueryGetCourseDetail(r.Context(), sess.AccessToken, code, projections.GetCourseDetailDeps{Backend: api})
	if err == nil {
		renderTemplate(w, r, "course.html", map[string]any{"Course": c, "Error": ""})
		return
	}
	if backend.IsUnauthenticated(err) {
		expireSession(w, r, sess)
		return
	}
	if !isDisplayable(err) {
		internalError(w, err)
		return
	}

	status := http.StatusBadGateway
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		status = http.StatusNotFound
	}
	slog.Info("course_event", "event", "detail_failed", "code", code, "status", status)
	renderTemplateStatus(w, r, status, "course.html", map[string]any{
		"Course": course.Course{CourseCode: code},
		"Error":  err.Error(),
	})
}

// handleAPISchedule handles GET /api/schedule/{termID}
func handleAPISchedule(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	run, err := projections.QueryGetSchedule(r.Context(), sess.AccessToken, r.PathValue("termID"), projections.GetScheduleDeps{Backend: api})
	if err != nil {
		var apiErr *backend.APIError
		switch {
		case backend.IsUnauthenticated(err):
			dropSession(w, r, sess)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		case errors.As(err, &apiErr):
			writeJSON(w, apiErr.Status, map[string]string{"message": apiErr.Message})
		case errors.Is(err, backend.ErrTransport):
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": err.Error()})
		default:
			internalError(w, err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if len(run.Raw) == 0 {
		_, _ = w.Write([]byte("null"))
		return
	}
	_, _ = w.Write(run.Raw)
}
