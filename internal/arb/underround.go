package arb

import (
	"fmt"
	"log/slog"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// Underround detects the buy-both-sides opportunity on a single market:
// when yes_bid + no_bid < 1, buying both legs locks in the difference minus
// one taker fee per leg.
type Underround struct {
	th     Thresholds
	fees   FeeSource
	logger *slog.Logger
}

// NewUnderround creates the single-market detector.
func NewUnderround(th Thresholds, fees FeeSource, logger *slog.Logger) *Underround {
	return &Underround{
		th:     th,
		fees:   fees,
		logger: logger.With(slog.String("component", "underround_detector")),
	}
}

// Detect evaluates one snapshot and returns the opportunity, or nil when the
// prices are unusable or the spread does not clear the thresholds.
func (u *Underround) Detect(snap domain.PriceSnapshot) *domain.ArbOpportunity {
	if !domain.ValidProb(snap.YesBid) || !domain.ValidProb(snap.NoBid) {
		return nil
	}

	sum := snap.YesBid + snap.NoBid
	gross := 1 - sum
	if gross < u.th.MinGrossSpread {
		return nil
	}

	// Both legs pay a taker fee.
	totalFees := 2 * u.fees.Fee(snap.Venue, false)
	net := gross - totalFees

	// Both legs must fill, so capital is capped by the thinner side.
	deployable := minFloat(snap.YesBidSize, snap.NoBidSize)

	quality, ok := u.th.Classify(net, deployable)
	if !ok {
		return nil
	}

	opp := &domain.ArbOpportunity{
		Type:              domain.ArbUnderround,
		Quality:           quality,
		Identity:          snap.MarketID,
		GrossSpreadPct:    gross * 100,
		TotalFeesPct:      totalFees * 100,
		NetSpreadPct:      net * 100,
		MaxDeployableUSD:  deployable,
		WeightedProfitUSD: net * deployable,
		Details: domain.ArbDetails{
			Kind: domain.ArbUnderround,
			Underround: &domain.UnderroundDetails{
				Venue:      snap.Venue,
				MarketID:   snap.MarketID,
				Title:      snap.Title,
				YesBid:     snap.YesBid,
				NoBid:      snap.NoBid,
				PriceSum:   sum,
				YesBidSize: snap.YesBidSize,
				NoBidSize:  snap.NoBidSize,
				Strategy: fmt.Sprintf("buy YES @ %.3f and NO @ %.3f on %s",
					snap.YesBid, snap.NoBid, snap.Venue),
			},
		},
	}

	u.logger.Debug("underround detected",
		slog.String("market_id", snap.MarketID),
		slog.Float64("net_spread_pct", opp.NetSpreadPct),
		slog.Float64("deployable_usd", deployable),
		slog.String("quality", string(quality)),
	)
	return opp
}
