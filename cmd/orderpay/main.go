package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/config"
	"github.com/quickkart/orderpay/internal/infrastructure/gateway"
	"github.com/quickkart/orderpay/internal/infrastructure/persistence/postgres"
	"github.com/quickkart/orderpay/internal/interfaces/rest/handlers"
	"github.com/quickkart/orderpay/internal/interfaces/rest/middleware"
	"github.com/quickkart/orderpay/internal/inventory"
	"github.com/quickkart/orderpay/internal/window"
	"github.com/quickkart/orderpay/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting order payment service",
		"port", cfg.Server.Port,
		"payment_window", cfg.Payment.Window,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := postgres.NewOrderRepository(db)
	attemptRepo := postgres.NewAttemptRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)

	clock := application.SystemClock{}
	windowMgr := window.NewManager(clock)
	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)
	releaser := inventory.NewReleaser(reservationRepo, clock, logger)

	releaseWorker := worker.NewReleaseWorker(releaser, 256, 2*time.Second, 5, logger)

	lifecycle := services.NewLifecycleService(orderRepo, releaser, releaseWorker, cfg.Payment.ApplyBudget, logger)
	orderService := services.NewOrderService(orderRepo, reservationRepo, lifecycle, windowMgr, cfg.Payment.Window, clock, logger)
	sessionService := services.NewSessionService(orderRepo, attemptRepo, gatewayClient, lifecycle, windowMgr, clock, logger)
	verifyService := services.NewVerifyService(orderRepo, attemptRepo, lifecycle, windowMgr, cfg.Gateway.KeySecret, clock, logger)

	h := handlers.NewHandlers(
		orderService,
		sessionService,
		verifyService,
		cfg.Gateway.WebhookSecret,
		logger,
	)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := http.Handler(mux)
	handler = middleware.RateLimit(rate.Limit(20), 40)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)
	handler = middleware.Metrics()(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expirationWorker := worker.NewExpirationWorker(
		orderRepo,
		lifecycle,
		clock,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	reconcileWorker := worker.NewReconcileWorker(
		orderRepo,
		reservationRepo,
		releaser,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expirationWorker.Start(workerCtx)
	go releaseWorker.Start(workerCtx)
	go reconcileWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
