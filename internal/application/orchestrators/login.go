package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/session"
)

// AuthBackend is the backend surface needed by Login.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// SessionStoreForLogin defines the store interface needed by Login.
type SessionStoreForLogin interface {
	Save(ctx context.Context, s session.Session) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Backend      AuthBackend
	SessionStore SessionStoreForLogin
	Now          func() time.Time
}

// Login failure messages shown on the form.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgLoginFailed        = "Login failed"
)

var loginLabels = map[string]string{"Email": "Email", "Password": "Password"}

// LoginError is a failed login with the message to show the administrator.
type LoginError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *LoginError) Error() string { return e.Message }

// Unwrap exposes the underlying cause.
func (e *LoginError) Unwrap() error { return e.Err }

// ExecuteLogin authenticates against the backend and persists a session.
// PRE: none; input is validated here
// POST: on success a session holding the bearer token is stored and returned;
// on failure no session exists and the error is a *LoginError
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := checkStruct(input, loginLabels); err != nil {
		return session.Session{}, &LoginError{Message: err.Error(), Err: err}
	}

	token, err := deps.Backend.Login(ctx, input.Email, input.Password)
	if err != nil {
		msg := loginFailureMessage(err)
		slog.Info("auth_event", "event", "login_failed", "email", input.Email, "reason", msg)
		return session.Session{}, &LoginError{Message: msg, Err: err}
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	sess, err := session.New(token, input.Email, now())
	if err != nil {
		return session.Session{}, &LoginError{Message: MsgLoginFailed, Err: err}
	}
	if err := deps.SessionStore.Save(ctx, sess); err != nil {
		return session.Session{}, err
	}

	slog.Info("auth_event", "event", "login_success", "email", input.Email, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// loginFailureMessage maps a backend failure to the text shown on the form.
func loginFailureMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrNoAccessToken):
		return backend.ErrNoAccessToken.Error()
	case errors.As(err, &apiErr):
		if strings.Contains(apiErr.Message, "Invalid credentials") {
			return MsgInvalidCredentials
		}
		if apiErr.Message == "" {
			return MsgLoginFailed
		}
		return apiErr.Message
	default:
		return MsgLoginFailed
	}
}
