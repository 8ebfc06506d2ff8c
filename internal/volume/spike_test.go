package volume

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

func newTestDetector(cfg SpikeConfig) *SpikeDetector {
	return NewSpikeDetector(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func bucketsFor(volumes ...float64) []domain.VolumeBucket {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.VolumeBucket, len(volumes))
	for i, v := range volumes {
		out[i] = domain.VolumeBucket{
			MarketID:    "mkt-1",
			BucketStart: start.Add(time.Duration(i) * time.Hour),
			VolumeUSD:   v,
		}
	}
	return out
}

func TestSpike_Triggers(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// Baseline mean 1000, current 2600 = 2.6x.
	spike := d.Detect("mkt-1", bucketsFor(900, 1000, 1100, 2600))
	require.NotNil(t, spike)
	assert.Equal(t, "mkt-1", spike.MarketID)
	assert.InDelta(t, 2600, spike.CurrentVolume, 1e-9)
	assert.InDelta(t, 1000, spike.BaselineMean, 1e-9)
	assert.InDelta(t, 2.6, spike.Multiple, 1e-9)
	assert.Equal(t, 3, spike.BucketCount)

	// Sample stddev of {900, 1000, 1100} is 100; z = (2600-1000)/100.
	assert.InDelta(t, 100, spike.BaselineStddev, 1e-9)
	assert.InDelta(t, 16, spike.ZScore, 1e-9)
}

func TestSpike_BelowMultiplierIsQuiet(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// 1.9x baseline does not trip a 2.0x trigger.
	assert.Nil(t, d.Detect("mkt-1", bucketsFor(1000, 1000, 1000, 1900)))
}

func TestSpike_MinVolumeFloorSuppressesIlliquid(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// 10x the baseline, but $100 current volume is under the $500 floor.
	assert.Nil(t, d.Detect("mkt-1", bucketsFor(10, 10, 10, 100)))
}

func TestSpike_InsufficientHistory(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// Three buckets total is only two of baseline; need three plus current.
	assert.Nil(t, d.Detect("mkt-1", bucketsFor(1000, 1000, 5000)))
	assert.Nil(t, d.Detect("mkt-1", nil))
}

func TestSpike_ZeroBaselineMeanIsQuiet(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// A dead market waking up has no meaningful multiple.
	assert.Nil(t, d.Detect("mkt-1", bucketsFor(0, 0, 0, 5000)))
}

func TestSpike_FlatBaselineZScoreZero(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	spike := d.Detect("mkt-1", bucketsFor(1000, 1000, 1000, 3000))
	require.NotNil(t, spike)
	assert.Zero(t, spike.BaselineStddev)
	assert.Zero(t, spike.ZScore, "flat baseline must not divide by zero")
	assert.InDelta(t, 3.0, spike.Multiple, 1e-9)
}

func TestSpike_ExactMultiplierBoundary(t *testing.T) {
	d := newTestDetector(DefaultSpikeConfig())

	// Exactly 2.0x at exactly the volume floor still triggers.
	cfg := DefaultSpikeConfig()
	cfg.MinVolumeUSD = 2000
	d = newTestDetector(cfg)
	spike := d.Detect("mkt-1", bucketsFor(1000, 1000, 1000, 2000))
	require.NotNil(t, spike)
	assert.InDelta(t, 2.0, spike.Multiple, 1e-9)
}

func TestMeanStddev(t *testing.T) {
	mean, stddev := meanStddev(bucketsFor(2, 4, 4, 4, 5, 5, 7, 9))
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, math.Sqrt(32.0/7.0), stddev, 1e-9)

	mean, stddev = meanStddev(bucketsFor(42))
	assert.InDelta(t, 42, mean, 1e-9)
	assert.Zero(t, stddev, "single sample has no spread")

	mean, stddev = meanStddev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}
