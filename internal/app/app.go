// Package app assembles the report pipeline and its backing services from
// configuration. The HTTP server and the CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/archive"
	"github.com/dharsanguruparan/ReportDrop/internal/assets"
	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/config"
	"github.com/dharsanguruparan/ReportDrop/internal/database"
	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
	"github.com/dharsanguruparan/ReportDrop/internal/pipeline"
	"github.com/dharsanguruparan/ReportDrop/internal/render"
	"github.com/dharsanguruparan/ReportDrop/internal/repository"
	"github.com/dharsanguruparan/ReportDrop/internal/storage"
)

// Ledger is the full run ledger surface used across the process.
type Ledger interface {
	pipeline.Ledger
	Get(ctx context.Context, token string) (*model.Run, error)
	MarkArchived(ctx context.Context, token, key string, pages int) error
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Pipeline *pipeline.Pipeline
	Ledger   Ledger
	// Archive is nil unless archiving is enabled.
	Archive *archive.Storage

	closers []func()
}

// New connects the configured backends. Background workers started here stop
// when ctx is cancelled; Close releases connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New("reportdrop"),
		Catalog: catalog.New(cfg.TemplateDir, nil),
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store := a.assetStore(ctx)
	enricher := assets.NewEnricher(store, logger.Named("assets"), func(lookup string) {
		a.Metrics.AssetFailuresTotal.WithLabelValues(lookup).Inc()
	})

	ledger, err := a.ledger(ctx)
	if err != nil {
		return nil, err
	}
	a.Ledger = ledger

	renderer, err := a.renderer()
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Catalog:  a.Catalog,
		Enricher: enricher,
		Renderer: renderer,
		Ledger:   ledger,
		Metrics:  a.Metrics,
		Logger:   logger.Named("pipeline"),
	}
	if cfg.ArchiveEnabled {
		st, err := archive.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		a.Archive = st
		uploader := archive.NewUploader(st, ledger, cfg.ArchiveWorkers, logger.Named("archive"), a.Metrics)
		uploader.Start(ctx)
		deps.Archiver = uploader
	}

	p, err := pipeline.New(pipeline.Config{
		BaseURL:        cfg.PublicBaseURL,
		QRDelayPerItem: cfg.QRDelayPerItem,
	}, deps)
	if err != nil {
		return nil, err
	}
	a.Pipeline = p
	ok = true
	return a, nil
}

// Close releases backend connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// assetStore falls back to an empty in-memory store when Redis is not
// configured or not reachable; reports then render without stored assets.
func (a *App) assetStore(ctx context.Context) assets.Store {
	if a.Config.RedisAddr == "" {
		return assets.NewMemoryStore()
	}
	rs, err := assets.NewRedisStore(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.AssetKeyPrefix)
	if err != nil {
		a.Logger.Warn("asset store unavailable, rendering without stored assets", zap.String("addr", a.Config.RedisAddr), zap.Error(err))
		return assets.NewMemoryStore()
	}
	a.closers = append(a.closers, func() { _ = rs.Close() })
	return rs
}

func (a *App) ledger(ctx context.Context) (Ledger, error) {
	if a.Config.DatabaseURL == "" {
		return storage.NewMemoryStore(0), nil
	}
	pool, err := database.Connect(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repository.NewRunRepository(pool), nil
}

func (a *App) renderer() (render.Renderer, error) {
	switch a.Config.Renderer {
	case "chromedp":
		r := render.NewChromedp(render.ChromedpConfig{
			RemoteURL: a.Config.ChromeURL,
			NoSandbox: true,
			Timeout:   a.Config.RenderTimeout,
			Logger:    a.Logger.Named("chromedp"),
		})
		a.closers = append(a.closers, func() { _ = r.Close() })
		return r, nil
	default:
		r, err := render.NewWkhtmltopdf(render.WkhtmltopdfConfig{
			BinaryPath: a.Config.WkhtmltopdfPath,
			Timeout:    a.Config.RenderTimeout,
			Logger:     a.Logger.Named("wkhtmltopdf"),
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
