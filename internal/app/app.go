// Package app manages the application lifecycle: it wires the stores,
// caches, blob storage and notifier, then runs the configured mode until
// shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byronedwards-dev/arbscope/internal/arb"
	"github.com/byronedwards-dev/arbscope/internal/config"
	"github.com/byronedwards-dev/arbscope/internal/feed"
	"github.com/byronedwards-dev/arbscope/internal/fees"
	"github.com/byronedwards-dev/arbscope/internal/service"
	"github.com/byronedwards-dev/arbscope/internal/track"
	"github.com/byronedwards-dev/arbscope/internal/volume"
)

// App is the root application object. It owns the configuration, logger and
// cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, starts the configured mode, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "engine":
		return a.engineMode(ctx, deps)
	case "archive":
		return a.archiveMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// engineMode runs the feed listener and the sweep engine side by side.
func (a *App) engineMode(ctx context.Context, deps *Dependencies) error {
	feeProvider := fees.NewProvider(deps.FeeStore, a.logger)
	if err := feeProvider.Reload(ctx); err != nil {
		// Start anyway; detection falls back to conservative rates until the
		// first successful reload.
		a.logger.Warn("initial fee load failed", slog.String("error", err.Error()))
	}

	tracker := track.New(deps.OpportunityStore, a.logger)

	engine := service.NewEngine(service.EngineConfig{
		StaleTimeout: a.cfg.Engine.StaleTimeout(),
		Parallelism:  a.cfg.Engine.Parallelism,
		VolumeWindow: a.cfg.Volume.WindowBuckets,
	}, service.EngineDeps{
		Thresholds: arb.Thresholds{
			MinGrossSpread:         a.cfg.Engine.MinGrossSpread,
			MinNetSpread:           a.cfg.Engine.MinNetSpread,
			ThinMinDeployUSD:       a.cfg.Engine.ThinMinDeployUSD,
			ExecutableMinDeployUSD: a.cfg.Engine.ExecutableMinDeployUSD,
		},
		SpikeConfig: volume.SpikeConfig{
			Multiplier:         a.cfg.Volume.SpikeMultiplier,
			MinVolumeUSD:       a.cfg.Volume.MinVolumeUSD,
			MinBaselineBuckets: volume.DefaultSpikeConfig().MinBaselineBuckets,
		},
		Fees:     feeProvider,
		Tracker:  tracker,
		Store:    deps.OpportunityStore,
		Volumes:  deps.VolumeStore,
		Bus:      deps.SignalBus,
		Cache:    deps.OpportunityCache,
		Audit:    deps.AuditStore,
		Notifier: deps.Notifier,
		Logger:   a.logger,
	})

	listener := feed.NewListener(a.cfg.Feed.WsURL, deps.SignalBus, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return listener.Run(gctx) })
	return g.Wait()
}

// archiveMode performs a one-shot export of closed opportunities older than
// the retention window, then prunes stale volume history.
func (a *App) archiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires s3 to be enabled")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetainDays)
	path, count, err := deps.Archiver.ArchiveClosedOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive opportunities: %w", err)
	}
	a.logger.InfoContext(ctx, "opportunities archived",
		slog.String("path", path),
		slog.Int("count", count),
	)

	volCutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Volume.RetainDays)
	volPath, volCount, err := deps.Archiver.ArchiveVolumeHistory(ctx, volCutoff)
	if err != nil {
		return fmt.Errorf("app: archive volume history: %w", err)
	}
	a.logger.InfoContext(ctx, "volume history archived",
		slog.String("path", volPath),
		slog.Int("count", volCount),
	)

	// Prune only after the archive upload succeeded.
	pruned, err := deps.VolumeStore.DeleteBefore(ctx, volCutoff)
	if err != nil {
		return fmt.Errorf("app: prune volume history: %w", err)
	}
	a.logger.InfoContext(ctx, "volume history pruned", slog.Int64("buckets", pruned))
	return nil
}

// Close tears down resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
