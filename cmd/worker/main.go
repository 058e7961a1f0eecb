package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notico/internal/config"
	"notico/internal/domain/dispatch"
	"notico/internal/infra/alimtalk"
	"notico/internal/infra/email"
	"notico/internal/infra/queue"
	"notico/internal/infra/ratelimit"
	"notico/internal/infra/retry"
	"notico/internal/infra/store"
	"notico/internal/infra/telegram"
	"notico/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
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

	slog.Info("worker configuration loaded")

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

	// Delivery log store
	logStore, err := store.NewSupabaseLogStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize delivery log store", "error", err)
		os.Exit(1)
	}

	// Recipient rate limiter
	recipientLimiter := ratelimit.NewRedisRecipientLimiter(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.RecipientRateLimit.MaxPerHour,
	)
	defer recipientLimiter.Close()
	slog.Info("recipient rate limiter initialized", "max_per_hour", cfg.RecipientRateLimit.MaxPerHour)

	// Dispatcher
	dispatcher := dispatch.NewDispatcher(registry, recipientLimiter, logStore)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(dispatch.TaskTypeDispatch, func(ctx context.Context, task *asynq.Task) error {
		// Handle never errors: failures become a structured error result
		// and the job is consumed either way.
		dispatcher.Handle(ctx, task.Payload())
		return nil
	})

	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
