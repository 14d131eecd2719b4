package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/adapters/http/middleware"
	"scheduler/internal/adapters/http/perf"
	sessionStore "scheduler/internal/adapters/storage/session"
	wizardStore "scheduler/internal/adapters/storage/wizard"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

// Backend is the scheduling backend surface the console calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	ListTerms(ctx context.Context, token string) ([]term.Term, error)
	CreateTerm(ctx context.Context, token string, t term.Term) (term.Term, error)
	DeleteTerm(ctx context.Context, token, id string) error
	ListCourses(ctx context.Context, token string) ([]course.Course, error)
	GetCourse(ctx context.Context, token, code string) (course.Course, error)
	ListSections(ctx context.Context, token string) ([]section.Section, error)
	ListSectionsByTermAndYear(ctx context.Context, token, termID string, yearLevel int) ([]section.Section, error)
	DeleteSection(ctx context.Context, token, id string) error
	BulkSchedule(ctx context.Context, token string, req backend.BulkRequest) (backend.BulkResult, error)
	UploadSections(ctx context.Context, token, termID, filename string, r io.Reader) (wizard.UploadResult, error)
	GenerateSchedule(ctx context.Context, token, termID string) (backend.Schedule, error)
	GetSchedule(ctx context.Context, token, termID string) (backend.Schedule, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Stores holds all storage dependencies.
type Stores struct {
	SessionStore sessionStore.Store
	WizardStore  wizardStore.Store
	DB           Pinger // optional; nil skips the database check in /healthz
}

// Settings holds the console's tunables.
type Settings struct {
	DefaultCapacity int
	PriorityPrefix  string
}

// loadCSRFKey reads the CSRF secret from SCHEDULER_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("SCHEDULER_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("SCHEDULER_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if isProduction() {
		log.Fatal("SCHEDULER_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	slog.Warn("csrf_key_generated", "detail", "using a random CSRF key; open forms break on restart. Set SCHEDULER_CSRF_KEY for production.")
	return key
}

func isProduction() bool {
	return os.Getenv("SCHEDULER_ENV") == "production"
}

func trustedOrigins() []string {
	raw := os.Getenv("SCHEDULER_TRUSTED_ORIGINS")
	if raw == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global backend client (set by NewMux)
var api Backend

// Global settings (set by NewMux)
var settings = Settings{DefaultCapacity: wizard.DefaultCapacity, PriorityPrefix: course.DefaultPriorityPrefix}

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// NewMux wires HTTP handlers for the console.
func NewMux(s *Stores, b Backend, collector *perf.Collector, cfg Settings) http.Handler {
	stores = s
	api = b
	perfCollector = collector
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = wizard.DefaultCapacity
	}
	settings = cfg
	middleware.SecureCookies = isProduction()

	mux := http.NewServeMux()
	registerRoutes(mux)

	csrfKey := loadCSRFKey()

	// Rate limiter: configurable requests per second per IP
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Outermost first: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(middleware.CSRFConfig{
			Key:            csrfKey,
			Secure:         isProduction(),
			TrustedOrigins: trustedOrigins(),
		}),
		middleware.Auth(s.SessionStore, func() time.Time { return timeNow() }),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}

// SweepExpiredSessions deletes expired sessions every interval until ctx is done.
func SweepExpiredSessions(ctx context.Context, store sessionStore.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx, timeNow())
			if err != nil {
				slog.Error("session_sweep_failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("session_sweep", "deleted", n)
			}
		}
	}
}
