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

	"github.com/wardbook/wardbook/internal/accounts"
	"github.com/wardbook/wardbook/internal/app"
	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/observability"
	"github.com/wardbook/wardbook/internal/patients"
	"github.com/wardbook/wardbook/internal/platform/cache"
	"github.com/wardbook/wardbook/internal/platform/db"
	"github.com/wardbook/wardbook/internal/records"
	"github.com/wardbook/wardbook/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	accountsRepo := accounts.NewRepository(pool)
	patientsRepo := patients.NewRepository(pool)
	recordsRepo := records.NewRepository(pool)
	directory := patients.NewDirectory(patientsRepo)

	rules := authz.NewRules()
	decisionCache := authz.NewCache(redisClient, authz.NewCacheMetrics(metrics.Registerer()), logger)
	resolver := authz.NewResolver(rules, decisionCache, accountsRepo, directory, logger)
	synchronizer := authz.NewSynchronizer(accountsRepo, logger)
	mw := authz.Middleware{Resolver: resolver, Logger: logger}

	accountsService := accounts.NewService(accountsRepo, resolver, synchronizer, logger)
	patientsService := patients.NewService(patientsRepo, resolver, logger)
	recordsService := records.NewService(recordsRepo, resolver, directory, logger)

	accountsHandler := accounts.NewHandler(logger, accountsService, mw)
	patientsHandler := patients.NewHandler(logger, patientsService, mw)
	recordsHandler := records.NewHandler(logger, recordsService, mw)
	reportHandler := authz.NewReportHandler(logger, resolver, mw)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Actors:          accountsService,
		AccountsHandler: accountsHandler,
		PatientsHandler: patientsHandler,
		RecordsHandler:  recordsHandler,
		ReportHandler:   reportHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
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
