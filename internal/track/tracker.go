// Package track maintains opportunity lifetimes: the upsert-by-identity
// bookkeeping that turns repeated detections of the same market condition
// into one continuously extended record, and the staleness reaper that
// closes records no longer being re-observed.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// DefaultStaleTimeout is how long an open opportunity may go without
// re-observation before the reaper closes it.
const DefaultStaleTimeout = 10 * time.Minute

// Tracker upserts detected opportunities by (type, identity). The same
// underlying market condition maps to exactly one open row, extended on
// every re-observation, so persistence duration is meaningful.
type Tracker struct {
	store  domain.OpportunityStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Tracker using the wall clock.
func New(store domain.OpportunityStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger.With(slog.String("component", "tracker")),
		now:    time.Now,
	}
}

// WithClock overrides the tracker's clock. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Track records one observation of an opportunity and returns the row id.
// First observation inserts a fresh row; later observations of the same
// (type, identity) update the open row in place: spreads, capital, quality
// and details are refreshed, LastSeenAt is bumped, SnapshotCount is
// incremented, and DurationSeconds is recomputed from the original
// DetectedAt.
func (t *Tracker) Track(ctx context.Context, opp domain.ArbOpportunity) (string, error) {
	now := t.now().UTC()

	existing, err := t.store.GetOpen(ctx, opp.Type, opp.Identity)
	switch {
	case err == nil:
		return t.extend(ctx, existing, opp, now)
	case errors.Is(err, domain.ErrNotFound):
		// fall through to insert
	default:
		return "", fmt.Errorf("track: lookup open %s/%s: %w", opp.Type, opp.Identity, err)
	}

	opp.ID = uuid.NewString()
	opp.DetectedAt = now
	opp.LastSeenAt = now
	opp.SnapshotCount = 1
	opp.DurationSeconds = 0
	opp.ResolvedAt = nil

	err = t.store.Insert(ctx, opp)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a race with an overlapping cycle; the unique index caught it.
		// Re-read and extend the winner's row instead.
		existing, gerr := t.store.GetOpen(ctx, opp.Type, opp.Identity)
		if gerr != nil {
			return "", fmt.Errorf("track: reread after conflict %s/%s: %w", opp.Type, opp.Identity, gerr)
		}
		return t.extend(ctx, existing, opp, now)
	}
	if err != nil {
		return "", fmt.Errorf("track: insert %s/%s: %w", opp.Type, opp.Identity, err)
	}

	t.logger.InfoContext(ctx, "opportunity opened",
		slog.String("opp_id", opp.ID),
		slog.String("type", string(opp.Type)),
		slog.String("identity", opp.Identity),
		slog.Float64("net_spread_pct", opp.NetSpreadPct),
		slog.String("quality", string(opp.Quality)),
	)
	return opp.ID, nil
}

// extend refreshes an open row with the latest observation.
func (t *Tracker) extend(ctx context.Context, existing, obs domain.ArbOpportunity, now time.Time) (string, error) {
	existing.Quality = obs.Quality
	existing.GrossSpreadPct = obs.GrossSpreadPct
	existing.TotalFeesPct = obs.TotalFeesPct
	existing.NetSpreadPct = obs.NetSpreadPct
	existing.MaxDeployableUSD = obs.MaxDeployableUSD
	existing.WeightedProfitUSD = obs.WeightedProfitUSD
	existing.Details = obs.Details
	existing.LastSeenAt = now
	existing.SnapshotCount++
	existing.DurationSeconds = int64(now.Sub(existing.DetectedAt).Seconds())

	if err := t.store.Update(ctx, existing); err != nil {
		return "", fmt.Errorf("track: update %s: %w", existing.ID, err)
	}

	t.logger.DebugContext(ctx, "opportunity extended",
		slog.String("opp_id", existing.ID),
		slog.Int("snapshot_count", existing.SnapshotCount),
		slog.Int64("duration_s", existing.DurationSeconds),
	)
	return existing.ID, nil
}

// CloseStale resolves every open row not re-observed within the timeout and
// returns how many it closed. A disappeared spread has no explicit signal;
// absence of re-detection for the timeout window is the closing signal.
// DurationSeconds stays frozen at the last observation.
func (t *Tracker) CloseStale(ctx context.Context, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}
	cutoff := t.now().UTC().Add(-timeout)

	n, err := t.store.CloseStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("track: close stale: %w", err)
	}
	if n > 0 {
		t.logger.InfoContext(ctx, "stale opportunities closed",
			slog.Int64("count", n),
			slog.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
	return n, nil
}
