package web

import (
	"io/fs"
	"net/http"

	"scheduler/internal/adapters/http/middleware"
)

func registerRoutes(mux *http.ServeMux) {
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /login", handleLogin)
	mux.HandleFunc("POST /login", handleLogin)
	mux.HandleFunc("POST /logout", handleLogout)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", metricsHandler())

	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.RequireAuth(h))
	}

	authed("GET /dashboard", handleDashboard)
	authed("POST /dashboard/term/select", handleTermSelect)
	authed("POST /dashboard/term/create", handleTermCreate)
	authed("POST /dashboard/term/delete", handleTermDelete)
	authed("POST /dashboard/term/next", handleTermNext)
	authed("POST /dashboard/excel/upload", handleExcelUpload)
	authed("POST /dashboard/excel/back", handleExcelBack)
	authed("GET /dashboard/select", handleSelectSearch)
	authed("POST /dashboard/select/submit", handleSelectSubmit)
	authed("GET /dashboard/calendar", handleCalendarYear)
	authed("POST /dashboard/calendar/start-over", handleStartOver)
	authed("POST /dashboard/calendar/generate", handleGenerateSchedule)
	authed("GET /courses", handleCourses)
	authed("GET /courses/{code}", handleCourseDetail)

	mux.HandleFunc("GET /api/schedule/{termID}", handleAPISchedule)
}
