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

	"onlinestore/internal/config"
	"onlinestore/internal/database"
	"onlinestore/internal/events"
	"onlinestore/internal/handler"
	"onlinestore/internal/metrics"
	"onlinestore/internal/mw"
	"onlinestore/internal/repository"
	"onlinestore/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		cancel()
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	err = database.InitSchema(ctx, db)
	cancel()
	if err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	if cfg.WebhookSecret == "" {
		slog.Warn("webhook signature verification disabled, any caller can report payment outcomes")
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("failed to close event publisher", "error", err)
		}
	}()

	// Services
	repo := repository.NewPostgresRepository(db)
	basketSvc := service.NewBasketService(repo)
	orderSvc := service.NewOrderService(repo, publisher)
	paymentSvc := service.NewPaymentService(repo, service.NewYooKassaClient(cfg.Processor), publisher)
	webhookSvc := service.NewWebhookService(repo, publisher, cfg.WebhookSecret)

	// Router
	r := handler.NewRouter(handler.Deps{
		Basket:         basketSvc,
		Orders:         orderSvc,
		Payments:       paymentSvc,
		Webhooks:       webhookSvc,
		Metrics:        metrics.New(),
		WebhookLimiter: mw.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookBurst),
		DB:             repo,
		JWTSecret:      cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Processor.Timeout + 10*time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
