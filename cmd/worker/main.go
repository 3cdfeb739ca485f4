// Command worker runs scheduled maintenance: it sweeps staged artifacts left
// behind by interrupted requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/config"
	"github.com/dharsanguruparan/ReportDrop/internal/logging"
	"github.com/dharsanguruparan/ReportDrop/internal/queue"
	"github.com/dharsanguruparan/ReportDrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer logger.Sync()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	task, err := queue.NewSweepTask(cfg.SweepMaxAge)
	if err != nil {
		logger.Fatal("build sweep task", zap.Error(err))
	}
	every := "@every " + cfg.SweepInterval.String()
	if _, err := scheduler.Register(every, task); err != nil {
		logger.Fatal("register sweep", zap.String("every", every), zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}
	defer scheduler.Shutdown()

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Logger:      logger.Named("asynq").Sugar(),
	})
	cat := catalog.New(cfg.TemplateDir, nil)
	// The worker serves no HTTP, so sweep counts go to the log only.
	processor := worker.NewProcessor(cat.Dirs(), nil, logger.Named("worker"))
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started",
		zap.String("sweep_every", cfg.SweepInterval.String()),
		zap.Duration("max_age", cfg.SweepMaxAge))
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
