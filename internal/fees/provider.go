// Package fees caches the per-venue fee schedules in memory for the
// detection hot path. The cache is read-only during a sweep and refreshed
// between sweeps via an explicit Reload; nothing loads at import time.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// FallbackFee is the conservative per-leg rate assumed for venues without a
// configured schedule. Detection must never fail on an unknown venue; it
// just prices it pessimistically at 2%.
const FallbackFee = 0.02

// Provider serves current fee rates from an in-memory copy of the fee
// store. Safe for concurrent reads during a detection batch.
type Provider struct {
	store  domain.FeeStore
	logger *slog.Logger

	mu      sync.RWMutex
	byVenue map[domain.Venue]domain.PlatformFees
}

// NewProvider creates a Provider with an empty cache. Call Reload before the
// first sweep; until then every venue gets the fallback rate.
func NewProvider(store domain.FeeStore, logger *slog.Logger) *Provider {
	return &Provider{
		store:   store,
		logger:  logger.With(slog.String("component", "fee_provider")),
		byVenue: map[domain.Venue]domain.PlatformFees{},
	}
}

// Reload replaces the cached schedules with the current store contents.
// Callers run it before each detection batch so an administrative fee change
// takes effect on the next sweep.
func (p *Provider) Reload(ctx context.Context) error {
	all, err := p.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("fees: reload: %w", err)
	}

	fresh := make(map[domain.Venue]domain.PlatformFees, len(all))
	for _, f := range all {
		fresh[f.Venue] = f
	}

	p.mu.Lock()
	p.byVenue = fresh
	p.mu.Unlock()

	p.logger.Debug("fee schedules reloaded", slog.Int("venues", len(fresh)))
	return nil
}

// Fee returns the trade+settlement fraction for one leg on the venue. The
// maker flag selects the maker rate; detection uses taker. Unknown venues
// fall back to FallbackFee, logged for operator visibility.
func (p *Provider) Fee(venue domain.Venue, maker bool) float64 {
	p.mu.RLock()
	f, ok := p.byVenue[venue]
	p.mu.RUnlock()
	if !ok {
		p.logger.Warn("no fee schedule for venue, using fallback",
			slog.String("venue", string(venue)),
			slog.Float64("fallback", FallbackFee),
		)
		return FallbackFee
	}
	return f.Total(maker)
}

// CombinedFee sums both venues' taker-leg fees, the round-trip cost of a
// cross-platform position.
func (p *Provider) CombinedFee(a, b domain.Venue) float64 {
	return p.Fee(a, false) + p.Fee(b, false)
}
