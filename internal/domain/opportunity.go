package domain

import (
	"fmt"
	"time"
)

// ArbType discriminates the three opportunity shapes the engine detects.
type ArbType string

const (
	ArbUnderround    ArbType = "underround"
	ArbCrossPlatform ArbType = "cross_platform"
	ArbMultiOutcome  ArbType = "multi_outcome"
)

// Quality is the discrete tier assigned by the classifier based on net
// spread and deployable capital.
type Quality string

const (
	QualityTheoretical Quality = "theoretical"
	QualityThin        Quality = "thin"
	QualityExecutable  Quality = "executable"
)

// Rank orders qualities: theoretical < thin < executable. Unknown values
// rank below theoretical.
func (q Quality) Rank() int {
	switch q {
	case QualityTheoretical:
		return 1
	case QualityThin:
		return 2
	case QualityExecutable:
		return 3
	default:
		return 0
	}
}

// ArbDirection names the winning cross-platform strategy.
type ArbDirection string

const (
	// DirectionPolyYesKalshiNo buys YES on Polymarket and NO on Kalshi.
	DirectionPolyYesKalshiNo ArbDirection = "poly_yes_kalshi_no"
	// DirectionPolyNoKalshiYes buys NO on Polymarket and YES on Kalshi.
	DirectionPolyNoKalshiYes ArbDirection = "poly_no_kalshi_yes"
)

// ArbOpportunity is the persisted record of one live or historically closed
// arbitrage opportunity. At most one open record (ResolvedAt == nil) exists
// per (Type, Identity) pair; the tracker extends that record on every
// re-observation instead of inserting a duplicate.
type ArbOpportunity struct {
	ID       string
	Type     ArbType
	Quality  Quality
	Identity string // market id, pair id, or event-group id depending on Type

	GrossSpreadPct    float64
	TotalFeesPct      float64
	NetSpreadPct      float64
	MaxDeployableUSD  float64
	WeightedProfitUSD float64

	Details ArbDetails

	DetectedAt      time.Time // set once on first observation
	LastSeenAt      time.Time // bumped on every re-observation
	SnapshotCount   int
	DurationSeconds int64 // LastSeenAt - DetectedAt, frozen when closed
	ResolvedAt      *time.Time
}

// Open reports whether the opportunity is still live.
func (o ArbOpportunity) Open() bool { return o.ResolvedAt == nil }

// ArbDetails is a tagged union of the type-specific payloads. Exactly one
// variant, matching Kind, must be set; Validate enforces this at every
// decode from storage.
type ArbDetails struct {
	Kind          ArbType               `json:"kind"`
	Underround    *UnderroundDetails    `json:"underround,omitempty"`
	CrossPlatform *CrossPlatformDetails `json:"cross_platform,omitempty"`
	MultiOutcome  *MultiOutcomeDetails  `json:"multi_outcome,omitempty"`
}

// Validate checks that the set variant matches Kind and no stray variant is
// populated.
func (d ArbDetails) Validate() error {
	var want, stray int
	switch d.Kind {
	case ArbUnderround:
		if d.Underround != nil {
			want = 1
		}
		if d.CrossPlatform != nil || d.MultiOutcome != nil {
			stray = 1
		}
	case ArbCrossPlatform:
		if d.CrossPlatform != nil {
			want = 1
		}
		if d.Underround != nil || d.MultiOutcome != nil {
			stray = 1
		}
	case ArbMultiOutcome:
		if d.MultiOutcome != nil {
			want = 1
		}
		if d.Underround != nil || d.CrossPlatform != nil {
			stray = 1
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDetails, string(d.Kind))
	}
	if want == 0 {
		return fmt.Errorf("%w: missing %s variant", ErrInvalidDetails, string(d.Kind))
	}
	if stray != 0 {
		return fmt.Errorf("%w: extra variant set for kind %s", ErrInvalidDetails, string(d.Kind))
	}
	return nil
}

// UnderroundDetails records the prices behind a buy-both-sides opportunity
// on a single market.
type UnderroundDetails struct {
	Venue      Venue   `json:"venue"`
	MarketID   string  `json:"market_id"`
	Title      string  `json:"title"`
	YesBid     float64 `json:"yes_bid"`
	NoBid      float64 `json:"no_bid"`
	PriceSum   float64 `json:"price_sum"`
	YesBidSize float64 `json:"yes_bid_size"`
	NoBidSize  float64 `json:"no_bid_size"`
	Strategy   string  `json:"strategy"`
}

// LegQuote is the raw bid/ask observed on one venue's market at detection
// time, kept for audit and dashboard display.
type LegQuote struct {
	MarketID   string  `json:"market_id"`
	Title      string  `json:"title"`
	YesBid     float64 `json:"yes_bid"`
	YesAsk     float64 `json:"yes_ask"`
	NoBid      float64 `json:"no_bid"`
	NoAsk      float64 `json:"no_ask"`
	YesBidSize float64 `json:"yes_bid_size"`
	NoBidSize  float64 `json:"no_bid_size"`
}

// CrossPlatformDetails records both legs of a matched-pair opportunity.
type CrossPlatformDetails struct {
	PairID    string       `json:"pair_id"`
	Direction ArbDirection `json:"direction"`
	Poly      LegQuote     `json:"poly"`
	Kalshi    LegQuote     `json:"kalshi"`
	Strategy  string       `json:"strategy"`
}

// MultiOutcomeDetails records the full per-outcome breakdown of a
// buy-every-outcome opportunity.
type MultiOutcomeDetails struct {
	GroupID      string         `json:"group_id"`
	EventName    string         `json:"event_name"`
	Venue        Venue          `json:"venue"`
	OutcomeCount int            `json:"outcome_count"`
	TotalCost    float64        `json:"total_cost"`
	Outcomes     []OutcomeQuote `json:"outcomes"`
	Strategy     string         `json:"strategy"`
}
