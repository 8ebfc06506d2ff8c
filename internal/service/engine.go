// Package service contains the sweep engine: the orchestration boundary
// between the bus-delivered ingestion batches and the pure detection code.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byronedwards-dev/arbscope/internal/arb"
	"github.com/byronedwards-dev/arbscope/internal/domain"
	"github.com/byronedwards-dev/arbscope/internal/feed"
	"github.com/byronedwards-dev/arbscope/internal/fees"
	"github.com/byronedwards-dev/arbscope/internal/notify"
	"github.com/byronedwards-dev/arbscope/internal/track"
	"github.com/byronedwards-dev/arbscope/internal/volume"
)

// arbEventStream is the durable stream carrying detection events for
// downstream consumers.
const arbEventStream = "arb_events"

// EngineConfig holds sweep orchestration parameters.
type EngineConfig struct {
	// StaleTimeout is the reaper window; opportunities not re-observed for
	// this long are closed after a sweep.
	StaleTimeout time.Duration
	// Parallelism caps concurrent detector invocations. Detection shares no
	// mutable state across markets, so this is purely a resource bound.
	Parallelism int
	// VolumeWindow is how many hourly buckets feed the spike baseline.
	VolumeWindow int
}

// SweepInput is one sync cycle's worth of ingestion output: single-market
// snapshots, matched cross-venue pairs, and grouped multi-outcome events.
type SweepInput struct {
	Snapshots []domain.PriceSnapshot `json:"snapshots"`
	Pairs     []domain.MarketPair    `json:"pairs"`
	Events    []domain.EventGroup    `json:"events"`
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Detected int   // opportunities found by the detectors
	Tracked  int   // successfully upserted
	Failed   int   // markets whose persistence failed (detection continued)
	Spikes   int   // volume spike alerts raised
	Closed   int64 // stale opportunities closed by the reaper
}

// Engine runs detection sweeps: reload fees, detect in parallel across
// markets, feed the tracker serially, reap stale rows, refresh the open-set
// cache, and emit events/alerts.
type Engine struct {
	underround *arb.Underround
	cross      *arb.CrossPlatform
	multi      *arb.MultiOutcome
	spikes     *volume.SpikeDetector

	fees    *fees.Provider
	tracker *track.Tracker
	store   domain.OpportunityStore
	volumes domain.VolumeStore

	// Optional collaborators; nil disables the corresponding side effect.
	bus      domain.SignalBus
	cache    domain.OpportunityCache
	audit    domain.AuditStore
	notifier *notify.Notifier

	cfg    EngineConfig
	logger *slog.Logger
}

// EngineDeps bundles the engine's collaborators.
type EngineDeps struct {
	Thresholds  arb.Thresholds
	SpikeConfig volume.SpikeConfig
	Fees        *fees.Provider
	Tracker     *track.Tracker
	Store       domain.OpportunityStore
	Volumes     domain.VolumeStore
	Bus         domain.SignalBus
	Cache       domain.OpportunityCache
	Audit       domain.AuditStore
	Notifier    *notify.Notifier
	Logger      *slog.Logger
}

// NewEngine creates an Engine and its detectors.
func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = track.DefaultStaleTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	if cfg.VolumeWindow <= 0 {
		cfg.VolumeWindow = 24
	}
	logger := deps.Logger.With(slog.String("component", "engine"))
	return &Engine{
		underround: arb.NewUnderround(deps.Thresholds, deps.Fees, deps.Logger),
		cross:      arb.NewCrossPlatform(deps.Thresholds, deps.Fees, deps.Logger),
		multi:      arb.NewMultiOutcome(deps.Thresholds, deps.Fees, deps.Logger),
		spikes:     volume.NewSpikeDetector(deps.SpikeConfig, deps.Logger),
		fees:       deps.Fees,
		tracker:    deps.Tracker,
		store:      deps.Store,
		volumes:    deps.Volumes,
		bus:        deps.Bus,
		cache:      deps.Cache,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run subscribes to the sync-batch channel and sweeps each batch as it
// arrives. It blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ch, err := e.bus.Subscribe(ctx, feed.BatchChannel)
	if err != nil {
		return fmt.Errorf("engine: subscribe %s: %w", feed.BatchChannel, err)
	}
	e.logger.Info("engine started")
	defer e.logger.Info("engine stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var in SweepInput
			if err := json.Unmarshal(data, &in); err != nil {
				e.logger.Warn("dropping undecodable batch", slog.String("error", err.Error()))
				continue
			}
			res, err := e.RunSweep(ctx, in)
			if err != nil {
				e.logger.Error("sweep failed", slog.String("error", err.Error()))
				continue
			}
			e.logger.Info("sweep complete",
				slog.Int("detected", res.Detected),
				slog.Int("tracked", res.Tracked),
				slog.Int("failed", res.Failed),
				slog.Int("spikes", res.Spikes),
				slog.Int64("closed", res.Closed),
			)
		}
	}
}

// RunSweep processes one sync cycle. Detection runs in parallel across
// markets; tracker upserts run serially afterwards so a per-identity race
// within the batch is impossible. A persistence failure on one market is
// recorded and the sweep continues; results already processed are not lost.
func (e *Engine) RunSweep(ctx context.Context, in SweepInput) (SweepResult, error) {
	var res SweepResult

	// Fees must be fresh per batch; on reload failure the previous schedule
	// keeps the sweep going rather than stalling detection.
	if err := e.fees.Reload(ctx); err != nil {
		e.logger.Warn("fee reload failed, using cached schedule", slog.String("error", err.Error()))
	}

	var mu sync.Mutex
	var detected []domain.ArbOpportunity

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)

	for _, snap := range in.Snapshots {
		snap := snap
		g.Go(func() error {
			if opp := e.underround.Detect(snap); opp != nil {
				mu.Lock()
				detected = append(detected, *opp)
				mu.Unlock()
			}
			if n := e.observeVolume(gctx, snap); n {
				mu.Lock()
				res.Spikes++
				mu.Unlock()
			}
			return nil
		})
	}
	for _, pair := range in.Pairs {
		pair := pair
		g.Go(func() error {
			if opp := e.cross.Detect(pair); opp != nil {
				mu.Lock()
				detected = append(detected, *opp)
				mu.Unlock()
			}
			return nil
		})
	}
	for _, group := range in.Events {
		group := group
		g.Go(func() error {
			if opp := e.multi.Detect(group); opp != nil {
				mu.Lock()
				detected = append(detected, *opp)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("engine: detection: %w", err)
	}
	res.Detected = len(detected)

	for _, opp := range detected {
		id, err := e.tracker.Track(ctx, opp)
		if err != nil {
			res.Failed++
			e.logger.Warn("track failed",
				slog.String("type", string(opp.Type)),
				slog.String("identity", opp.Identity),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Tracked++
		e.emitDetection(ctx, id, opp)
	}

	closed, err := e.tracker.CloseStale(ctx, e.cfg.StaleTimeout)
	if err != nil {
		return res, fmt.Errorf("engine: reaper: %w", err)
	}
	res.Closed = closed

	e.refreshOpenSet(ctx)

	if e.audit != nil {
		if err := e.audit.Log(ctx, "sweep_complete", map[string]any{
			"detected": res.Detected,
			"tracked":  res.Tracked,
			"failed":   res.Failed,
			"spikes":   res.Spikes,
			"closed":   res.Closed,
		}); err != nil {
			e.logger.Warn("audit log failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// observeVolume records the snapshot's hourly bucket and checks the market
// for a spike. Returns true when an alert was raised.
func (e *Engine) observeVolume(ctx context.Context, snap domain.PriceSnapshot) bool {
	if e.volumes == nil || snap.Volume24h <= 0 {
		return false
	}
	bucket := domain.VolumeBucket{
		MarketID:    snap.MarketID,
		BucketStart: snap.ObservedAt.UTC().Truncate(time.Hour),
		VolumeUSD:   snap.Volume24h,
	}
	if err := e.volumes.Record(ctx, bucket); err != nil {
		e.logger.Warn("record volume failed",
			slog.String("market_id", snap.MarketID),
			slog.String("error", err.Error()),
		)
		return false
	}

	buckets, err := e.volumes.ListRecent(ctx, snap.MarketID, e.cfg.VolumeWindow)
	if err != nil {
		e.logger.Warn("list volume failed",
			slog.String("market_id", snap.MarketID),
			slog.String("error", err.Error()),
		)
		return false
	}

	spike := e.spikes.Detect(snap.MarketID, buckets)
	if spike == nil {
		return false
	}
	if e.notifier != nil {
		msg := fmt.Sprintf("%s: $%.0f vs baseline $%.0f (%.1fx, z=%.2f)",
			snap.Title, spike.CurrentVolume, spike.BaselineMean, spike.Multiple, spike.ZScore)
		if err := e.notifier.Notify(ctx, notify.EventVolumeSpike, "Volume spike", msg); err != nil {
			e.logger.Warn("spike alert failed", slog.String("error", err.Error()))
		}
	}
	return true
}

// emitDetection publishes the tracked opportunity to the durable event
// stream and alerts operators on executable quality. Both are best-effort.
func (e *Engine) emitDetection(ctx context.Context, id string, opp domain.ArbOpportunity) {
	if e.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":          "arb_detected",
			"opp_id":         id,
			"type":           opp.Type,
			"identity":       opp.Identity,
			"quality":        opp.Quality,
			"net_spread_pct": opp.NetSpreadPct,
			"deployable_usd": opp.MaxDeployableUSD,
		})
		if err := e.bus.StreamAppend(ctx, arbEventStream, evt); err != nil {
			e.logger.Warn("stream append failed", slog.String("error", err.Error()))
		}
	}

	if e.notifier != nil && opp.Quality == domain.QualityExecutable {
		msg := fmt.Sprintf("%s %s: net %.2f%%, up to $%.0f deployable",
			opp.Type, opp.Identity, opp.NetSpreadPct, opp.MaxDeployableUSD)
		if err := e.notifier.Notify(ctx, notify.EventExecutableArb, "Executable arbitrage", msg); err != nil {
			e.logger.Warn("arb alert failed", slog.String("error", err.Error()))
		}
	}
}

// refreshOpenSet republishes the ranked open set to the cache for the
// reporting service.
func (e *Engine) refreshOpenSet(ctx context.Context) {
	if e.cache == nil {
		return
	}
	open, err := e.store.List(ctx, domain.OpportunityFilter{Status: domain.StatusOpen})
	if err != nil {
		e.logger.Warn("list open failed", slog.String("error", err.Error()))
		return
	}
	if err := e.cache.SetOpen(ctx, open); err != nil {
		e.logger.Warn("cache refresh failed", slog.String("error", err.Error()))
	}
}
