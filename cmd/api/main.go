package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warrantyvault/backend/api/routes"
	"github.com/warrantyvault/backend/internal/extraction"
	"github.com/warrantyvault/backend/internal/owners"
	"github.com/warrantyvault/backend/internal/uploads"
	"github.com/warrantyvault/backend/internal/warranties"
	"github.com/warrantyvault/backend/pkg/anthropic"
	"github.com/warrantyvault/backend/pkg/config"
	"github.com/warrantyvault/backend/pkg/db"
	"github.com/warrantyvault/backend/pkg/logger"
	"github.com/warrantyvault/backend/pkg/metrics"
	"github.com/warrantyvault/backend/pkg/migrate"
	"github.com/warrantyvault/backend/pkg/redis"
	"github.com/warrantyvault/backend/pkg/storage/gcs"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap cloud storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing cloud storage client", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeline := metrics.NewPipelineMetrics(registry)

	warrantyRepo := warranties.NewRepository(dbClient.DB())

	ownerService, err := owners.NewService(owners.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create owner service", err)
		os.Exit(1)
	}

	warrantyService, err := warranties.NewService(
		warrantyRepo,
		gcsClient,
		logg,
		cfg.GCS.BucketName,
		cfg.GCS.DownloadURLExpiry,
		cfg.Warranty.DefaultDurationDays,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create warranty service", err)
		os.Exit(1)
	}

	extractionService, err := extraction.NewService(
		anthropic.NewClient(cfg.Anthropic.APIKey),
		logg,
		pipeline,
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		cfg.Extraction.Timeout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create extraction service", err)
		os.Exit(1)
	}

	uploadService, err := uploads.NewService(
		warrantyRepo,
		gcsClient,
		extractionService,
		logg,
		pipeline,
		uploads.Config{
			Bucket:              cfg.GCS.BucketName,
			MaxUploadBytes:      cfg.Upload.MaxUploadBytes(),
			SignedURLTTL:        cfg.Extraction.SignedURLTTL,
			DefaultDurationDays: cfg.Warranty.DefaultDurationDays,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create upload service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			registry,
			ownerService,
			warrantyService,
			uploadService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithFields(ctx, map[string]any{"signal": sig.String()}), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
