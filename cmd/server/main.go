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

	"notico/internal/config"
	"notico/internal/domain/dispatch"
	"notico/internal/infra/alimtalk"
	"notico/internal/infra/email"
	"notico/internal/infra/queue"
	"notico/internal/infra/retry"
	"notico/internal/infra/store"
	"notico/internal/infra/telegram"
	"notico/internal/router"
	"notico/internal/service"

	"github.com/go-playground/validator/v10"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	providerTimeout := time.Duration(cfg.Provider.TimeoutSec) * time.Second
	retryCfg := retry.Config{Attempts: cfg.Provider.RetryAttempts}

	// Template blob store (S3-compatible)
	s3Cfg := store.S3Config{
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		PathStyle: cfg.Storage.PathStyle,
	}
	templateStore := store.NewS3TemplateStore(s3Cfg)
	slog.Info("template store initialized", "bucket", cfg.Storage.Bucket, "configured", s3Cfg.Configured())

	// Provider clients
	emailClient := email.NewClient(cfg.Email.APIKey, providerTimeout, retryCfg)
	telegramClient := telegram.NewClient(cfg.Telegram.BotToken, providerTimeout, retryCfg)
	alimtalkClient := alimtalk.NewClient(alimtalk.Config{
		Domain:     cfg.Alimtalk.Domain,
		APIVersion: cfg.Alimtalk.APIVersion,
		AppKey:     cfg.Alimtalk.AppKey,
		SecretKey:  cfg.Alimtalk.SecretKey,
		SenderKey:  cfg.Alimtalk.SenderKey,
	}, providerTimeout, retryCfg)

	// Service registry
	registry, err := service.NewRegistry(service.Dependencies{
		TemplateStore:      templateStore,
		TemplateStoreReady: s3Cfg.Configured(),
		Validate:           validator.New(validator.WithRequiredStructEnabled()),
		Logger:             logger,
		EmailSender:        emailClient,
		TelegramSender:     telegramClient,
		AlimtalkClient:     alimtalkClient,
		SendConcurrency:    cfg.Provider.SendConcurrency,
	})
	if err != nil {
		slog.Error("failed to build service registry", "error", err)
		os.Exit(1)
	}
	slog.Info("service registry initialized",
		"template_services", registry.TemplateServices(false),
		"send_services", registry.SendServices(false),
	)

	// Delivery log store
	logStore, err := store.NewSupabaseLogStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize delivery log store", "error", err)
		os.Exit(1)
	}
	slog.Info("delivery log store initialized")

	// Asynq client (for enqueuing dispatch jobs)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)

	// Handler
	dispatchHandler := dispatch.NewHandler(registry, enqueuer, logStore)

	// Router
	r := router.New(cfg, dispatchHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
