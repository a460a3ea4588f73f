package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/edusales-crm/edusales-crm/internal/app"
	"github.com/edusales-crm/edusales-crm/internal/dc"
	"github.com/edusales-crm/edusales-crm/internal/observability"
	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/platform/cache"
	"github.com/edusales-crm/edusales-crm/internal/platform/db"
	"github.com/edusales-crm/edusales-crm/internal/sales"
	"github.com/edusales-crm/edusales-crm/internal/shared"
	"github.com/edusales-crm/edusales-crm/internal/users"
	"github.com/edusales-crm/edusales-crm/internal/warehouse"
	"github.com/edusales-crm/edusales-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo)
	salesHandler := sales.NewHandler(logger, salesService)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, logger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo, auditLogger)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService)

	var dcCache *dc.Cache
	if redisClient != nil {
		dcCache = dc.NewCache(redisClient, cfg.StatsCacheTTL)
	}
	dcRepo := dc.NewRepository(pool)
	dcService := dc.NewService(dc.ServiceParams{
		Repo:    dcRepo,
		Deals:   ordersService,
		Sales:   salesService,
		Stock:   warehouseService,
		Idem:    idempotencyStore,
		Audit:   auditLogger,
		Metrics: metrics,
		Cache:   dcCache,
		Logger:  logger,
	})
	dcHandler := dc.NewHandler(logger, dcService)

	// Deals auto-raise a challan when created with an assignee; the
	// setter breaks the otherwise circular construction order.
	ordersService.SetDCRaiser(dcService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		Actors:           usersService,
		UsersHandler:     usersHandler,
		OrdersHandler:    ordersHandler,
		SalesHandler:     salesHandler,
		WarehouseHandler: warehouseHandler,
		DCHandler:        dcHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
