package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors returned by the client.
var (
	// ErrUnauthenticated means no token was available or the backend answered 401.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrTransport wraps network failures and undecodable responses.
	ErrTransport = errors.New("backend unreachable")
	// ErrNoAccessToken is returned when a login succeeds without a token.
	ErrNoAccessToken = errors.New("No access token returned")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op      string
	Status  int
	Message string
}

// Error returns the backend's message, which is what the console displays.
func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrUnauthenticated) match a 401 response.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Status == http.StatusUnauthorized
}

// errorBody is the shape of a backend error response.
type errorBody struct {
	Message json.RawMessage `json:"message"`
}

// messageFrom extracts a display message from an error response body.
// A string message is used as-is; an array or object message is JSON-encoded;
// anything else yields fallback.
func messageFrom(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Message) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(eb.Message, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	trimmed := strings.TrimSpace(string(eb.Message))
	if trimmed == "null" || trimmed == "" {
		return fallback
	}
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var compact bytes.Buffer
		if err := json.Compact(&compact, []byte(trimmed)); err == nil {
			return compact.String()
		}
		return trimmed
	}
	return fallback
}

// transportError wraps a low-level failure for op.
func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
