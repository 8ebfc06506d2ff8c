package arb

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// flatFees is a FeeSource stub charging the same taker rate on every venue.
type flatFees struct {
	rate float64
}

func (f flatFees) Fee(domain.Venue, bool) float64        { return f.rate }
func (f flatFees) CombinedFee(a, b domain.Venue) float64 { return 2 * f.rate }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func underroundSnap(yesBid, noBid, yesSize, noSize float64) domain.PriceSnapshot {
	return domain.PriceSnapshot{
		MarketID:   "mkt-1",
		Venue:      domain.VenuePolymarket,
		Title:      "Will it rain tomorrow?",
		YesBid:     yesBid,
		NoBid:      noBid,
		YesBidSize: yesSize,
		NoBidSize:  noSize,
	}
}

func TestUnderround_DetectsExecutable(t *testing.T) {
	// yesBid+noBid = 0.94: gross 6%, fees 2x2% = 4%, net 2% exactly meets
	// the floor; min(sizes) = 1500 makes it executable.
	d := NewUnderround(DefaultThresholds(), flatFees{rate: 0.02}, testLogger())

	opp := d.Detect(underroundSnap(0.47, 0.47, 2000, 1500))
	require.NotNil(t, opp)

	assert.Equal(t, domain.ArbUnderround, opp.Type)
	assert.Equal(t, "mkt-1", opp.Identity)
	assert.InDelta(t, 6.0, opp.GrossSpreadPct, 1e-9)
	assert.InDelta(t, 4.0, opp.TotalFeesPct, 1e-9)
	assert.InDelta(t, 2.0, opp.NetSpreadPct, 1e-9)
	assert.InDelta(t, 1500, opp.MaxDeployableUSD, 1e-9)
	assert.Equal(t, domain.QualityExecutable, opp.Quality)
	assert.InDelta(t, 0.02*1500, opp.WeightedProfitUSD, 1e-6)

	require.NoError(t, opp.Details.Validate())
	require.NotNil(t, opp.Details.Underround)
	assert.InDelta(t, 0.94, opp.Details.Underround.PriceSum, 1e-9)
}

func TestUnderround_NetSpreadFormula(t *testing.T) {
	// netSpreadPct must equal (1 - yesBid - noBid - 2*fee) * 100 for any
	// valid pair that clears the thresholds.
	fee := 0.01
	d := NewUnderround(DefaultThresholds(), flatFees{rate: fee}, testLogger())

	cases := [][2]float64{
		{0.40, 0.50}, {0.30, 0.60}, {0.45, 0.45}, {0.10, 0.80},
	}
	for _, c := range cases {
		yesBid, noBid := c[0], c[1]
		opp := d.Detect(underroundSnap(yesBid, noBid, 5000, 5000))
		require.NotNil(t, opp, "yesBid=%v noBid=%v", yesBid, noBid)
		want := (1 - yesBid - noBid - 2*fee) * 100
		assert.InDelta(t, want, opp.NetSpreadPct, 1e-9)
	}
}

func TestUnderround_BelowGrossThreshold(t *testing.T) {
	d := NewUnderround(DefaultThresholds(), flatFees{rate: 0.0}, testLogger())

	// Sum of 0.996 leaves gross 0.4%, under the 0.5% floor.
	assert.Nil(t, d.Detect(underroundSnap(0.498, 0.498, 5000, 5000)))
	// Overround markets are never opportunities.
	assert.Nil(t, d.Detect(underroundSnap(0.55, 0.50, 5000, 5000)))
}

func TestUnderround_BelowNetThreshold(t *testing.T) {
	// Gross 3% clears the gross gate but 4% of fees pushes net negative.
	d := NewUnderround(DefaultThresholds(), flatFees{rate: 0.02}, testLogger())
	assert.Nil(t, d.Detect(underroundSnap(0.48, 0.49, 5000, 5000)))
}

func TestUnderround_InvalidPrices(t *testing.T) {
	d := NewUnderround(DefaultThresholds(), flatFees{rate: 0.0}, testLogger())

	for _, c := range []struct {
		name          string
		yesBid, noBid float64
	}{
		{"zero yes", 0, 0.4},
		{"one no", 0.4, 1},
		{"negative", -0.1, 0.4},
		{"above one", 1.2, 0.4},
		{"nan", math.NaN(), 0.4},
		{"inf", 0.4, math.Inf(1)},
	} {
		t.Run(c.name, func(t *testing.T) {
			assert.Nil(t, d.Detect(underroundSnap(c.yesBid, c.noBid, 5000, 5000)))
		})
	}
}

func TestUnderround_DeployableIsSmallerLeg(t *testing.T) {
	d := NewUnderround(DefaultThresholds(), flatFees{rate: 0.0}, testLogger())

	opp := d.Detect(underroundSnap(0.40, 0.50, 300, 800))
	require.NotNil(t, opp)
	assert.InDelta(t, 300, opp.MaxDeployableUSD, 1e-9)
	assert.Equal(t, domain.QualityThin, opp.Quality)
}
