package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"scheduler/internal/adapters/backend"
	web "scheduler/internal/adapters/http"
	"scheduler/internal/adapters/http/middleware"
	"scheduler/internal/adapters/http/perf"
	"scheduler/internal/adapters/storage"
	sessionStore "scheduler/internal/adapters/storage/session"
	wizardStore "scheduler/internal/adapters/storage/wizard"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/wizard"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}
	env := envOrDefault("SCHEDULER_ENV", "development")
	setupLogging(env, envOrDefault("SCHEDULER_LOG_LEVEL", "info"))

	// WAL mode, foreign keys and busy timeout on every pooled connection
	dbPath := envOrDefault("SCHEDULER_DB_PATH", "scheduler.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector()
	timedDB := storage.NewTimedDB(db, collector)

	stores := &web.Stores{
		SessionStore: sessionStore.NewSQLiteStore(timedDB),
		WizardStore:  wizardStore.NewSQLiteStore(timedDB),
		DB:           timedDB,
	}

	client := backend.New(backend.Config{
		BaseURL:   envOrDefault("SCHEDULER_BACKEND_URL", "http://localhost:3000"),
		Timeout:   envDuration("SCHEDULER_BACKEND_TIMEOUT", backend.DefaultTimeout),
		Collector: collector,
		RequestID: middleware.RequestID,
	})

	settings := web.Settings{
		DefaultCapacity: envInt("SCHEDULER_DEFAULT_CAPACITY", wizard.DefaultCapacity),
		PriorityPrefix:  envOrDefault("SCHEDULER_PRIORITY_PREFIX", course.DefaultPriorityPrefix),
	}
	handler := web.NewMux(stores, client, collector, settings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go web.SweepExpiredSessions(ctx, stores.SessionStore, 10*time.Minute)

	addr := envOrDefault("SCHEDULER_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	slog.Info("server_starting", "version", version, "addr", addr, "env", env, "schema", storage.LatestSchemaVersion())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	slog.Info("server_stopped")
}

func setupLogging(env, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if env == "production" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
