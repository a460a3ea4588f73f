package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/edusales-crm/edusales-crm/internal/app"
	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/platform/db"
	"github.com/edusales-crm/edusales-crm/internal/shared"
	"github.com/edusales-crm/edusales-crm/internal/users"
	"github.com/edusales-crm/edusales-crm/internal/warehouse"
	"github.com/edusales-crm/edusales-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	auditLogger := shared.NewAuditLogger(pool)

	usersService := users.NewService(users.NewRepository(pool))
	ordersService := orders.NewService(orders.NewRepository(pool), logger)
	warehouseService := warehouse.NewService(warehouse.NewRepository(pool), auditLogger)

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

	mailer := jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	refreshTask, err := jobs.NewWarehouseStatusRefreshTask(time.Now())
	if err != nil {
		logger.Error("build warehouse refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	scanTask, err := jobs.NewFollowupScanTask(time.Time{})
	if err != nil {
		logger.Error("build follow-up scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(mailer, logger)},
			{Type: jobs.TaskWarehouseStatusRefresh, Handler: jobs.NewWarehouseStatusRefreshHandler(warehouseService, logger)},
			{Type: jobs.TaskFollowupScan, Handler: jobs.NewFollowupScanHandler(ordersService, usersService, jobClient, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 7 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
