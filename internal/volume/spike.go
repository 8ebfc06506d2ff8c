// Package volume flags markets whose latest hourly traded volume is a
// multiple above their rolling baseline. Statistically independent of the
// arbitrage detectors; it only shares the snapshot history.
package volume

import (
	"log/slog"
	"math"
	"time"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// SpikeConfig holds the spike trigger parameters.
type SpikeConfig struct {
	// Multiplier is the current/baseline-mean ratio that trips the alert.
	Multiplier float64
	// MinVolumeUSD suppresses alerts on illiquid markets whose baseline is
	// near zero.
	MinVolumeUSD float64
	// MinBaselineBuckets is the minimum history (excluding the current
	// bucket) required before the baseline is trusted.
	MinBaselineBuckets int
}

// DefaultSpikeConfig returns the production trigger: 2x baseline, $500
// floor, 3 baseline buckets.
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{
		Multiplier:         2.0,
		MinVolumeUSD:       500,
		MinBaselineBuckets: 3,
	}
}

// SpikeDetector compares the most recent volume bucket against the mean and
// sample standard deviation of the preceding buckets.
type SpikeDetector struct {
	cfg    SpikeConfig
	logger *slog.Logger
}

// NewSpikeDetector creates a SpikeDetector.
func NewSpikeDetector(cfg SpikeConfig, logger *slog.Logger) *SpikeDetector {
	return &SpikeDetector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "volume_spike")),
	}
}

// Detect evaluates the market's bucket history, oldest first, and returns an
// alert when the latest bucket trips the trigger, or nil otherwise. The
// z-score is computed for display and ranking only; the trigger is the
// multiple plus the absolute floor.
func (d *SpikeDetector) Detect(marketID string, buckets []domain.VolumeBucket) *domain.VolumeSpike {
	if len(buckets) < d.cfg.MinBaselineBuckets+1 {
		return nil
	}

	baseline := buckets[:len(buckets)-1]
	current := buckets[len(buckets)-1].VolumeUSD

	mean, stddev := meanStddev(baseline)
	if mean <= 0 {
		return nil
	}

	multiple := current / mean
	if multiple < d.cfg.Multiplier || current < d.cfg.MinVolumeUSD {
		return nil
	}

	z := 0.0
	if stddev > 0 {
		z = (current - mean) / stddev
	}

	spike := &domain.VolumeSpike{
		MarketID:       marketID,
		CurrentVolume:  current,
		BaselineMean:   mean,
		BaselineStddev: stddev,
		Multiple:       multiple,
		ZScore:         z,
		BucketCount:    len(baseline),
		DetectedAt:     time.Now().UTC(),
	}

	d.logger.Info("volume spike detected",
		slog.String("market_id", marketID),
		slog.Float64("current_usd", current),
		slog.Float64("baseline_mean", mean),
		slog.Float64("multiple", multiple),
	)
	return spike
}

// meanStddev returns the mean and sample standard deviation of the bucket
// volumes. Stddev is 0 when fewer than two buckets are given.
func meanStddev(buckets []domain.VolumeBucket) (float64, float64) {
	n := float64(len(buckets))
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, b := range buckets {
		sum += b.VolumeUSD
	}
	mean := sum / n
	if n < 2 {
		return mean, 0
	}

	var ss float64
	for _, b := range buckets {
		diff := b.VolumeUSD - mean
		ss += diff * diff
	}
	return mean, math.Sqrt(ss / (n - 1))
}
