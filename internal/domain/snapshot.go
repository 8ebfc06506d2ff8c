// Package domain defines the core types shared across the arbitrage engine:
// price snapshots, opportunities, fee schedules, volume statistics, and the
// store/cache interfaces implemented by the infrastructure packages.
package domain

import (
	"math"
	"time"
)

// Venue identifies a prediction-market exchange.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// PriceSnapshot is one venue's observed state for one binary market at one
// instant. Snapshots arrive already normalized into [0,1] probability space
// by the ingestion service; they are consumed by one detection pass and then
// discarded.
type PriceSnapshot struct {
	MarketID string
	Venue    Venue
	Title    string

	// Mid prices.
	YesPrice float64
	NoPrice  float64

	// Best bid/ask per side.
	YesBid float64
	YesAsk float64
	NoBid  float64
	NoAsk  float64

	// USD notional available at the best level, per side.
	YesBidSize float64
	YesAskSize float64
	NoBidSize  float64
	NoAskSize  float64

	// Rolling 24h traded volume in USD.
	Volume24h float64

	ObservedAt time.Time
}

// MarketPair is a cross-venue pairing of the same real-world market,
// produced by the matching service upstream of detection.
type MarketPair struct {
	PairID string
	Poly   PriceSnapshot
	Kalshi PriceSnapshot
}

// OutcomeQuote is one leg of a multi-outcome event: the YES ask for a single
// mutually exclusive outcome.
type OutcomeQuote struct {
	MarketID string  `json:"market_id"`
	Title    string  `json:"title"`
	YesAsk   float64 `json:"yes_ask"`
	AskSize  float64 `json:"ask_size"`
}

// EventGroup is a set of N mutually exclusive single-winner markets grouped
// under one event. Grouping happens at ingestion time, which also assigns
// the stable GroupID used as the opportunity identity; the display name is
// carried separately and never used as a key.
type EventGroup struct {
	GroupID  string
	Name     string
	Venue    Venue
	Outcomes []OutcomeQuote
}

// ValidProb reports whether p is a usable probability for detection:
// finite and strictly inside (0,1). Values outside that range are a
// data-quality fault and the affected market is skipped for the cycle.
func ValidProb(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0 && p < 1
}
