package arb

import (
	"fmt"
	"log/slog"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// CrossPlatform detects opportunities spanning a matched Polymarket/Kalshi
// pair. Both directions are priced independently: either venue could carry
// the cheap leg.
type CrossPlatform struct {
	th     Thresholds
	fees   FeeSource
	logger *slog.Logger
}

// NewCrossPlatform creates the matched-pair detector.
func NewCrossPlatform(th Thresholds, fees FeeSource, logger *slog.Logger) *CrossPlatform {
	return &CrossPlatform{
		th:     th,
		fees:   fees,
		logger: logger.With(slog.String("component", "cross_platform_detector")),
	}
}

// Detect evaluates both directional strategies over the pair and returns the
// better one, or nil when prices are unusable or neither direction clears
// the net-spread floor. Exact net-spread ties go to the poly-YES direction
// so repeated runs over the same inputs are deterministic.
func (c *CrossPlatform) Detect(pair domain.MarketPair) *domain.ArbOpportunity {
	poly, kalshi := pair.Poly, pair.Kalshi
	if !domain.ValidProb(poly.YesBid) || !domain.ValidProb(poly.NoBid) ||
		!domain.ValidProb(kalshi.YesBid) || !domain.ValidProb(kalshi.NoBid) {
		return nil
	}

	// One taker fee per leg, one leg per venue; identical for both
	// directions.
	totalFees := c.fees.CombinedFee(poly.Venue, kalshi.Venue)

	// Direction A: buy YES on Polymarket, NO on Kalshi.
	grossA := 1 - poly.YesBid - kalshi.NoBid
	netA := grossA - totalFees
	deployA := minFloat(poly.YesBidSize, kalshi.NoBidSize)

	// Direction B: buy NO on Polymarket, YES on Kalshi.
	grossB := 1 - poly.NoBid - kalshi.YesBid
	netB := grossB - totalFees
	deployB := minFloat(poly.NoBidSize, kalshi.YesBidSize)

	direction := domain.DirectionPolyYesKalshiNo
	gross, net, deployable := grossA, netA, deployA
	strategy := fmt.Sprintf("buy YES @ %.3f on polymarket, buy NO @ %.3f on kalshi",
		poly.YesBid, kalshi.NoBid)
	if netB > netA {
		direction = domain.DirectionPolyNoKalshiYes
		gross, net, deployable = grossB, netB, deployB
		strategy = fmt.Sprintf("buy NO @ %.3f on polymarket, buy YES @ %.3f on kalshi",
			poly.NoBid, kalshi.YesBid)
	}

	quality, ok := c.th.Classify(net, deployable)
	if !ok {
		return nil
	}

	opp := &domain.ArbOpportunity{
		Type:              domain.ArbCrossPlatform,
		Quality:           quality,
		Identity:          pair.PairID,
		GrossSpreadPct:    gross * 100,
		TotalFeesPct:      totalFees * 100,
		NetSpreadPct:      net * 100,
		MaxDeployableUSD:  deployable,
		WeightedProfitUSD: net * deployable,
		Details: domain.ArbDetails{
			Kind: domain.ArbCrossPlatform,
			CrossPlatform: &domain.CrossPlatformDetails{
				PairID:    pair.PairID,
				Direction: direction,
				Poly:      legQuote(poly),
				Kalshi:    legQuote(kalshi),
				Strategy:  strategy,
			},
		},
	}

	c.logger.Debug("cross-platform arb detected",
		slog.String("pair_id", pair.PairID),
		slog.String("direction", string(direction)),
		slog.Float64("net_spread_pct", opp.NetSpreadPct),
		slog.String("quality", string(quality)),
	)
	return opp
}

func legQuote(s domain.PriceSnapshot) domain.LegQuote {
	return domain.LegQuote{
		MarketID:   s.MarketID,
		Title:      s.Title,
		YesBid:     s.YesBid,
		YesAsk:     s.YesAsk,
		NoBid:      s.NoBid,
		NoAsk:      s.NoAsk,
		YesBidSize: s.YesBidSize,
		NoBidSize:  s.NoBidSize,
	}
}
