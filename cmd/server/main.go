// Command server runs the ReportDrop HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/app"
	"github.com/dharsanguruparan/ReportDrop/internal/config"
	"github.com/dharsanguruparan/ReportDrop/internal/logging"
	"github.com/dharsanguruparan/ReportDrop/internal/server"
	"github.com/dharsanguruparan/ReportDrop/internal/signing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init app", zap.Error(err))
	}
	defer a.Close()

	deps := server.Deps{
		Pipeline: a.Pipeline,
		Catalog:  a.Catalog,
		Runs:     a.Ledger,
		Signer:   signing.NewSigner(cfg.SigningSecret),
		Metrics:  a.Metrics,
		Logger:   logger.Named("http"),
	}
	// A nil *archive.Storage must not become a non-nil interface.
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	srv := server.New(cfg, deps)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
