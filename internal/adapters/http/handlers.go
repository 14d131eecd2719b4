package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/adapters/http/middleware"
	"scheduler/internal/application/listutil"
	"scheduler/internal/application/orchestrators"
	"scheduler/internal/domain/calendar"
	"scheduler/internal/domain/session"
)

// timeNow is a variable for testability.
var timeNow = time.Now

//go:embed templates/*.html static/*
var assets embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// courseStyle is the inline style of a course block. It is typed as CSS
// because html/template rejects the parentheses of hsl() in plain strings.
func courseStyle(code string) template.CSS {
	c := calendar.CourseColor(code)
	return template.CSS("background-color: " + c.String() + "; color: " + c.TextColor())
}

// catalogURL links to a page of the course catalog.
func catalogURL(p listutil.ListParams, page int) template.URL {
	if q := p.Query(page); q != "" {
		return template.URL("/courses?" + q)
	}
	return "/courses"
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	sess, loggedIn := middleware.GetSessionFromContext(r.Context())

	funcMap := template.FuncMap{
		"currentEmail":   func() string { return sess.Email },
		"isLoggedIn":     func() bool { return loggedIn },
		"csrfToken":      func() string { return csrf.Token(r) },
		"csrfField":      func() template.HTML { return csrf.TemplateField(r) },
		"renderMarkdown": renderMarkdown,
		"courseStyle":    courseStyle,
		"join":           strings.Join,
		"add":            func(a, b int) int { return a + b },
		"catalogURL":     catalogURL,
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(assets, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, fmt.Errorf("parse template %s: %w", templateName, err))
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		slog.Error("render_failed", "template", templateName, "error", err)
		http.Error(w, "Render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

// requireSession returns the caller's session for JSON endpoints, answering
// 401 when there is none.
func requireSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		slog.Warn("auth_denied", "path", r.URL.Path, "reason", "no session")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return session.Session{}, false
	}
	return sess, true
}

// expireSession forgets a session the backend no longer accepts and sends the
// browser to the login page.
func expireSession(w http.ResponseWriter, r *http.Request, sess session.Session) {
	dropSession(w, r, sess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// dropSession deletes sess with its wizard state and clears the cookie.
// Callers still write the response.
func dropSession(w http.ResponseWriter, r *http.Request, sess session.Session) {
	slog.Info("auth_event", "event", "session_rejected", "email", sess.Email, "path", r.URL.Path)
	if err := orchestrators.ExecuteLogout(r.Context(), sess.ID, logoutDeps()); err != nil {
		slog.Error("session_cleanup_failed", "error", err)
	}
	middleware.ClearSessionCookie(w)
}

// isDisplayable reports whether err carries a message meant for the user.
// Validation and backend failures qualify; storage failures do not.
func isDisplayable(err error) bool {
	var apiErr *backend.APIError
	return orchestrators.IsValidationError(err) ||
		errors.As(err, &apiErr) ||
		errors.Is(err, backend.ErrTransport)
}

func logoutDeps() orchestrators.LogoutDeps {
	return orchestrators.LogoutDeps{SessionStore: stores.SessionStore, WizardStore: stores.WizardStore}
}

// handleRoot sends visitors to the dashboard or the login page.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleLogin handles GET (form) and POST (authenticate) for /login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		renderTemplate(w, r, "login.html", map[string]any{"Email": "", "Error": ""})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	input := orchestrators.LoginInput{
		Email:    r.FormValue("Email"),
		Password: r.FormValue("Password"),
	}
	deps := orchestrators.LoginDeps{
		Backend:      api,
		SessionStore: stores.SessionStore,
		Now:          timeNow,
	}

	sess, err := orchestrators.ExecuteLogin(r.Context(), input, deps)
	if err != nil {
		var loginErr *orchestrators.LoginError
		if !errors.As(err, &loginErr) {
			internalError(w, err)
			return
		}
		// A failed attempt signs out whoever was signed in on this browser.
		if cookie, cerr := r.Cookie(middleware.SessionCookieName); cerr == nil {
			if err := orchestrators.ExecuteLogout(r.Context(), cookie.Value, logoutDeps()); err != nil {
				internalError(w, err)
				return
			}
			middleware.ClearSessionCookie(w)
			r = r.WithContext(middleware.ContextWithoutSession(r.Context()))
		}
		renderTemplate(w, r, "login.html", map[string]any{
			"Email": input.Email,
			"Error": loginErr.Message,
		})
		return
	}

	middleware.SetSessionCookie(w, sess, timeNow())
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout handles POST /logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := orchestrators.ExecuteLogout(r.Context(), cookie.Value, logoutDeps()); err != nil {
			internalError(w, err)
			return
		}
		slog.Info("auth_event", "event", "logout")
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleHealth handles GET /healthz
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if stores != nil && stores.DB != nil {
		if err := stores.DB.PingContext(r.Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if perfCollector == nil {
			http.NotFound(w, r)
			return
		}
		perfCollector.Handler().ServeHTTP(w, r)
	})
}
