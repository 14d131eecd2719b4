package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sessionStore "scheduler/internal/adapters/storage/session"
	"scheduler/internal/domain/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName names the cookie holding the session ID.
const SessionCookieName = "scheduler_session"

// SecureCookies marks session cookies Secure. Set in production.
var SecureCookies bool

// SessionLookup resolves a session ID to a stored session.
type SessionLookup interface {
	GetByID(ctx context.Context, id string) (session.Session, error)
}

// Auth returns middleware that loads the session named by the cookie and puts
// it in the request context. It does NOT block unauthenticated requests; use
// RequireAuth for that.
// Expired or tokenless sessions are ignored, so the request is anonymous.
func Auth(sessions SessionLookup, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				sess, err := sessions.GetByID(r.Context(), cookie.Value)
				switch {
				case err == nil && sess.Authenticated(now()):
					r = r.WithContext(ContextWithSession(r.Context(), sess))
				case err != nil && !errors.Is(err, sessionStore.ErrNotFound):
					slog.Error("session_lookup_failed", "error", err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns middleware that blocks unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(session.Session)
	return sess, ok
}

// ContextWithSession returns a context with the given session set.
func ContextWithSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// ContextWithoutSession returns a context in which no session is visible.
func ContextWithoutSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionContextKey, nil)
}

// SetSessionCookie sets the session cookie on the response. The cookie lives
// as long as the session does.
func SetSessionCookie(w http.ResponseWriter, sess session.Session, now time.Time) {
	maxAge := int(sess.ExpiresAt.Sub(now).Seconds())
	if sess.ExpiresAt.IsZero() || maxAge <= 0 {
		maxAge = int(session.DefaultLifetime.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
