package arb

import (
	"fmt"
	"log/slog"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// minOutcomes is the smallest event size worth evaluating; two-outcome
// events are the underround detector's territory.
const minOutcomes = 3

// MultiOutcome detects opportunities across N mutually exclusive outcomes of
// one event: buying YES on every outcome pays exactly $1 whichever outcome
// occurs, so a total cost below $1 minus fees is free money.
type MultiOutcome struct {
	th     Thresholds
	fees   FeeSource
	logger *slog.Logger
}

// NewMultiOutcome creates the event-group detector.
func NewMultiOutcome(th Thresholds, fees FeeSource, logger *slog.Logger) *MultiOutcome {
	return &MultiOutcome{
		th:     th,
		fees:   fees,
		logger: logger.With(slog.String("component", "multi_outcome_detector")),
	}
}

// Detect evaluates an already-grouped event and returns the opportunity, or
// nil when there are fewer than three priceable outcomes or the spread does
// not clear the thresholds.
func (m *MultiOutcome) Detect(group domain.EventGroup) *domain.ArbOpportunity {
	if len(group.Outcomes) < minOutcomes {
		return nil
	}

	var totalCost float64
	deployable := 0.0
	for i, o := range group.Outcomes {
		if !domain.ValidProb(o.YesAsk) {
			return nil
		}
		totalCost += o.YesAsk
		if i == 0 || o.AskSize < deployable {
			deployable = o.AskSize
		}
	}

	gross := 1 - totalCost
	// Fee is charged on the total capital deployed, not per leg.
	totalFees := m.fees.Fee(group.Venue, false) * totalCost
	net := gross - totalFees

	quality, ok := m.th.Classify(net, deployable)
	if !ok {
		return nil
	}

	opp := &domain.ArbOpportunity{
		Type:              domain.ArbMultiOutcome,
		Quality:           quality,
		Identity:          group.GroupID,
		GrossSpreadPct:    gross * 100,
		TotalFeesPct:      totalFees * 100,
		NetSpreadPct:      net * 100,
		MaxDeployableUSD:  deployable,
		WeightedProfitUSD: net * deployable,
		Details: domain.ArbDetails{
			Kind: domain.ArbMultiOutcome,
			MultiOutcome: &domain.MultiOutcomeDetails{
				GroupID:      group.GroupID,
				EventName:    group.Name,
				Venue:        group.Venue,
				OutcomeCount: len(group.Outcomes),
				TotalCost:    totalCost,
				Outcomes:     group.Outcomes,
				Strategy: fmt.Sprintf("buy YES on all %d outcomes for %.3f total on %s",
					len(group.Outcomes), totalCost, group.Venue),
			},
		},
	}

	m.logger.Debug("multi-outcome arb detected",
		slog.String("group_id", group.GroupID),
		slog.Int("outcomes", len(group.Outcomes)),
		slog.Float64("net_spread_pct", opp.NetSpreadPct),
		slog.String("quality", string(quality)),
	)
	return opp
}
