// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the Inkpress server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"inkpress/internal/cache"
	"inkpress/internal/config"
	"inkpress/internal/database"
	"inkpress/internal/handlers"
	"inkpress/internal/posts"
	"inkpress/internal/ratelimit"
	"inkpress/internal/render"
	"inkpress/internal/router"
	"inkpress/internal/session"
	"inkpress/internal/storage"
	"inkpress/internal/store"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON everywhere else.
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"rate_limit_backend", cfg.RateLimitBackend,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey: sessions, page cache, shared rate limits.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	sessionStore := session.NewStore(valkeyClient, cfg.SecureCookies(), cfg.SessionTTL)
	pageCache := cache.NewPageCache(valkeyClient, cfg.PageCacheTTL)

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	categoryStore := store.NewCategoryStore(db)
	postStore := store.NewPostStore(db)

	// Uploads go to S3 when configured, otherwise to the local directory.
	backend, uploadDir, err := newStorage(cfg)
	if err != nil {
		slog.Error("failed to initialize upload storage", "error", err)
		os.Exit(1)
	}

	limiter, err := newLimiter(cfg, valkeyClient)
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	postService := posts.NewService(postStore, pageCache)

	h := router.Handlers{
		Auth:       handlers.NewAuth(renderer, sessionStore, userStore),
		Users:      handlers.NewUsers(userStore, sessionStore),
		Posts:      handlers.NewPosts(postService),
		Categories: handlers.NewCategories(categoryStore, pageCache),
		Upload:     handlers.NewUpload(backend),
		Dashboard:  handlers.NewDashboard(renderer, postService, categoryStore, userStore, postStore, settingRows(cfg, uploadDir)),
		Public:     handlers.NewPublic(renderer, postService, categoryStore, pageCache),
	}

	r := router.New(h, router.Options{
		Sessions:      sessionStore,
		Limiter:       limiter,
		PageCache:     pageCache,
		SecureCookies: cfg.SecureCookies(),
		UploadDir:     uploadDir,
		UploadPrefix:  cfg.UploadURLPrefix,
	})

	// WriteTimeout leaves room for 10 MB uploads and thumbnail generation.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// newStorage picks the upload backend. The returned directory is empty
// when uploads live in S3.
func newStorage(cfg *config.Config) (storage.Backend, string, error) {
	s3Backend, err := storage.NewS3(storage.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
		Prefix:    "uploads",
	})
	if err != nil {
		return nil, "", err
	}
	if s3Backend != nil {
		slog.Info("s3 storage configured", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return s3Backend, "", nil
	}

	local, err := storage.NewLocal(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return nil, "", err
	}
	slog.Info("local upload storage", "dir", local.Dir())
	return local, local.Dir(), nil
}

// newLimiter builds the post API rate limiter over the configured counter
// store.
func newLimiter(cfg *config.Config, client *redis.Client) (*ratelimit.Limiter, error) {
	var counters ratelimit.CounterStore
	switch cfg.RateLimitBackend {
	case config.RateLimitValkey:
		counters = ratelimit.NewRedisStore(client)
	default:
		mem, err := ratelimit.NewMemoryStore(cfg.RateLimitCapacity)
		if err != nil {
			return nil, err
		}
		counters = mem
	}
	return ratelimit.New(counters, cfg.RateLimitRequests, cfg.RateLimitWindow), nil
}

// settingRows is the read-only configuration shown on the settings page.
func settingRows(cfg *config.Config, uploadDir string) []handlers.SettingRow {
	uploads := "S3 bucket " + cfg.S3Bucket
	if uploadDir != "" {
		uploads = "Local directory " + uploadDir
	}
	return []handlers.SettingRow{
		{Name: "Environment", Value: cfg.Env},
		{Name: "Listen address", Value: cfg.Addr()},
		{Name: "Database", Value: fmt.Sprintf("%s@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)},
		{Name: "Valkey", Value: cfg.ValkeyHost + ":" + cfg.ValkeyPort},
		{Name: "Session lifetime", Value: cfg.SessionTTL.String()},
		{Name: "Page cache TTL", Value: cfg.PageCacheTTL.String()},
		{Name: "Uploads", Value: uploads},
		{Name: "Rate limit", Value: fmt.Sprintf("%d requests / %s (%s)", cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBackend)},
	}
}
