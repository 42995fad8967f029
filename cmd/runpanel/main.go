package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/runpanel/internal/adapter/driven/github"
	"github.com/ericfisherdev/runpanel/internal/adapter/driven/idtoken"
	"github.com/ericfisherdev/runpanel/internal/adapter/driven/oauth"
	sqliteadapter "github.com/ericfisherdev/runpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/runpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/runpanel/internal/application"
	"github.com/ericfisherdev/runpanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load .env if present, then configuration (fail fast on missing required env vars).
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_concurrency", cfg.MaxConcurrency,
		"session_encryption", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	sessionStore, err := sqliteadapter.NewSessionRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	codec := idtoken.NewCodec(cfg.IDTokenKey)
	exchanger := oauth.NewExchanger(cfg.ClientID, cfg.ClientSecret)
	githubFactory := githubadapter.NewClientFactory()

	// 6. Create services.
	sessionSvc := application.NewSessionService(codec, sessionStore, exchanger, githubFactory, nil)
	aggregationSvc := application.NewAggregationService(githubFactory, cfg.MaxConcurrency, nil)

	// 7. Create HTTP handler with middleware.
	apiHandler := httphandler.NewHandler(sessionSvc, aggregationSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	// Aggregation fans out to the GitHub API, so the write timeout is generous.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("runpanel started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 9. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
