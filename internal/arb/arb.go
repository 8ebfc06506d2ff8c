// Package arb implements the fee-adjusted arbitrage detectors and the
// shared quality classifier. Detection is pure computation: a detector takes
// already-normalized snapshots and either returns a scored opportunity or
// nil. Bad input data and below-threshold spreads both yield nil, never an
// error, so one bad market can never halt a sweep.
package arb

import (
	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// FeeSource supplies current per-venue fee fractions. Satisfied by
// fees.Provider; tests supply a fixed-rate stub.
type FeeSource interface {
	// Fee returns the trade+settlement fraction for one leg on the venue.
	Fee(venue domain.Venue, maker bool) float64
	// CombinedFee returns the summed per-leg fee across two venues.
	CombinedFee(a, b domain.Venue) float64
}

// Thresholds holds the tunable classification cutoffs. The defaults are
// load-bearing for compatibility with historical rows; override only with a
// matching data migration.
type Thresholds struct {
	// MinGrossSpread is the cheap pre-fee gate applied by the underround
	// detector before any fee math.
	MinGrossSpread float64
	// MinNetSpread is the floor below which a spread is not an opportunity.
	MinNetSpread float64
	// ThinMinDeployUSD and ExecutableMinDeployUSD split the quality tiers by
	// deployable capital.
	ThinMinDeployUSD       float64
	ExecutableMinDeployUSD float64
}

// DefaultThresholds returns the production cutoffs: 0.5% gross, 2% net,
// $100 thin, $1000 executable.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinGrossSpread:         0.005,
		MinNetSpread:           0.02,
		ThinMinDeployUSD:       100,
		ExecutableMinDeployUSD: 1000,
	}
}

// Classify maps a net spread fraction and deployable capital to a quality
// tier. The second return is false when the spread is below MinNetSpread,
// i.e. not an opportunity at all.
func (t Thresholds) Classify(netSpread, maxDeployableUSD float64) (domain.Quality, bool) {
	if netSpread < t.MinNetSpread {
		return "", false
	}
	switch {
	case maxDeployableUSD >= t.ExecutableMinDeployUSD:
		return domain.QualityExecutable, true
	case maxDeployableUSD >= t.ThinMinDeployUSD:
		return domain.QualityThin, true
	default:
		return domain.QualityTheoretical, true
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
