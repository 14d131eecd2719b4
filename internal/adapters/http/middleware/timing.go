package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scheduler/internal/adapters/http/perf"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
const DefaultSlowRequestMs = 200

// RequestIDHeader carries the correlation ID in and out of the console.
const RequestIDHeader = "X-Request-ID"

const requestIDContextKey contextKey = "request_id"

// maxRequestIDLen is the longest inbound X-Request-ID accepted as-is.
const maxRequestIDLen = 64

// slowRequestThreshold reads SCHEDULER_SLOW_REQUEST_MS once per process.
var slowRequestThreshold = sync.OnceValue(func() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("SCHEDULER_SLOW_REQUEST_MS"))
	if err != nil || ms <= 0 {
		ms = DefaultSlowRequestMs
	}
	return time.Duration(ms) * time.Millisecond
})

// RequestID returns the correlation ID stored by Timing, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// ContextWithRequestID stores a correlation ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// inboundRequestID reuses the caller's X-Request-ID when it looks sane and
// mints a UUID otherwise.
func inboundRequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}

// statusWriter records the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Timing returns middleware that tags each request with a correlation ID and
// logs how long it took. Requests under /static/ pass straight through.
// Requests slower than the threshold log at WARN, the rest at DEBUG.
// A non-nil collector also receives one observation per request.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := slowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := inboundRequestID(r)
			w.Header().Set(RequestIDHeader, reqID)
			r = r.WithContext(ContextWithRequestID(r.Context(), reqID))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() { observeRequest(r, reqID, sw.status, start, threshold, collector) }()
			next.ServeHTTP(sw, r)
		})
	}
}

// observeRequest logs one finished request and records it on collector.
// It runs deferred so panicking handlers are still measured.
func observeRequest(r *http.Request, reqID string, status int, start time.Time, threshold time.Duration, collector *perf.Collector) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	level, msg := slog.LevelDebug, "request"
	if elapsed >= threshold {
		level, msg = slog.LevelWarn, "slow_request"
	}
	slog.Log(r.Context(), level, msg,
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration_ms", durationMs,
	)

	if collector != nil {
		collector.Record(perf.Entry{
			Kind:       perf.KindRequest,
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: status,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}
