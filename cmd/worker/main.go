package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/wardbook/wardbook/internal/accounts"
	"github.com/wardbook/wardbook/internal/app"
	"github.com/wardbook/wardbook/internal/authz"
	jobmetrics "github.com/wardbook/wardbook/internal/jobs"
	"github.com/wardbook/wardbook/internal/patients"
	"github.com/wardbook/wardbook/internal/platform/cache"
	"github.com/wardbook/wardbook/internal/platform/db"
	"github.com/wardbook/wardbook/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	accountsRepo := accounts.NewRepository(pool)
	patientsRepo := patients.NewRepository(pool)
	directory := patients.NewDirectory(patientsRepo)

	rules := authz.NewRules()
	decisionCache := authz.NewCache(redisClient, authz.NewCacheMetrics(nil), logger)
	resolver := authz.NewResolver(rules, decisionCache, accountsRepo, directory, logger)
	synchronizer := authz.NewSynchronizer(accountsRepo, logger)
	accountsService := accounts.NewService(accountsRepo, resolver, synchronizer, logger)
	metrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBundleResync, Handler: jobs.NewBundleResyncHandler(accountsService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewBundleResyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
