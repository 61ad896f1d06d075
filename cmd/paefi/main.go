// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/creasdigital/paefi-go/internal/cache"
	"github.com/creasdigital/paefi-go/internal/config"
	"github.com/creasdigital/paefi-go/internal/handler/api"
	"github.com/creasdigital/paefi-go/internal/logging"
	"github.com/creasdigital/paefi-go/internal/middleware"
	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/scheduler"
	"github.com/creasdigital/paefi-go/internal/service"
	"github.com/creasdigital/paefi-go/internal/session"
	"github.com/creasdigital/paefi-go/internal/store"
	"github.com/creasdigital/paefi-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "PAEFI - Case Management Backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_SESSION_SECRET        Key for cross-site request protection (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_DB_PATH               SQLite database path (default: ./data/paefi.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_REDIS_URL             Redis URL for the dashboard cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAEFI_AUDIT_RETENTION_DAYS  Audit log retention in days (default: 730)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("paefi %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	// Run migrations
	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the audit event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	eventLogHandler := logging.NewEventLogHandler(textHandler, db)
	logger = slog.New(eventLogHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Seed default data
	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	if err := store.SeedDemo(ctx, db, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding demo cases: %w", err)
	}

	// Initialize session manager
	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Initialize dashboard cache
	dashCache := cache.New(cache.Config{
		RedisURL: cfg.RedisURL,
		Prefix:   cfg.CachePrefix,
		TTL:      time.Duration(cfg.CacheTTL) * time.Second,
	})
	defer func() { _ = dashCache.Close() }()
	if cfg.UseRedisCache() {
		slog.Info("dashboard cache initialized", "backend", "redis", "url", cfg.RedisURL)
	} else {
		slog.Info("dashboard cache initialized", "backend", "memory")
	}

	// Initialize services
	auditService := service.NewAuditService(db)
	dashboardService := service.NewDashboardService(db, dashCache)

	// Initialize and start scheduler for audit log retention
	retention := time.Duration(cfg.AuditRetentionDays) * 24 * time.Hour
	sched := scheduler.New(auditService, retention, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Login brute-force protection
	loginProtection := middleware.NewLoginProtection()

	apiHandler := api.NewHandler(db, sessionManager, loginProtection, auditService, dashboardService)

	// Router setup
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(sessionManager.LoadAndSave)

	// Cross-site request protection, keyed by the session secret. In
	// development a frontend dev server on another port is trusted.
	var trustedOrigins []string
	if cfg.IsDevelopment() {
		trustedOrigins = []string{cfg.ServerAddr(), fmt.Sprintf("127.0.0.1:%d", cfg.ServerPort)}
	}
	r.Use(middleware.CSRF([]byte(cfg.SessionSecret), trustedOrigins))
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	r.Use(middleware.LoadUser(sessionManager, db))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(loginProtection.Middleware()).Post("/login", apiHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/logout", apiHandler.Logout)
				r.Get("/me", apiHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Route("/casos", func(r chi.Router) {
				r.Get("/", apiHandler.ListCases)
				r.Get("/export", apiHandler.ExportCases)
				r.With(middleware.RequireCapability(model.Role.CanWriteCases)).Post("/", apiHandler.CreateCase)
				r.Get("/{id}", apiHandler.GetCase)
				r.With(middleware.RequireCapability(model.Role.CanWriteCases)).Put("/{id}", apiHandler.UpdateCase)
				r.With(middleware.RequireCapability(model.Role.CanMutateStatus)).Put("/{id}/status", apiHandler.UpdateStatus)
				r.With(middleware.RequireCapability(model.Role.CanDelete)).Delete("/{id}", apiHandler.DeleteCase)
			})

			r.Get("/dashboard", apiHandler.Dashboard)
			r.Get("/dashboard/meses", apiHandler.Months)
		})
	})
	slog.Info("REST API v1 mounted at /api/v1")

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			"addr", cfg.ServerAddr(),
			"env", cfg.Env,
			"version", versionInfo.Version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
