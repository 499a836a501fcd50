package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/rpdevelops/data-ingestion-api/internal/blob"
	"github.com/rpdevelops/data-ingestion-api/internal/config"
	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/logging"
	"github.com/rpdevelops/data-ingestion-api/internal/queue"
	"github.com/rpdevelops/data-ingestion-api/internal/store"
	"github.com/rpdevelops/data-ingestion-api/internal/web"
	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

func main() {
	// Load .env if present (Overload overwrites existing env vars).
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	if err := store.Migrate(ctx, cfg.Database); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	st, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("connected to database")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		slog.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	blobs := blob.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket)
	jobQueue := queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.Queue.URL)

	auth, err := middleware.NewCognitoAuth(ctx, cfg.Auth)
	if err != nil {
		slog.Error("failed to initialize token verification", "error", err)
		os.Exit(1)
	}

	coordinator := ingest.NewCoordinator(st, blobs, jobQueue, cfg.Upload.MaxFileSize)
	server := web.NewServer(cfg, coordinator, st, auth)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Addr())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
