package domain

import "time"

// PlatformFees is the per-venue fee schedule. Rows change rarely (an
// administrative action maintains them and writes the change audit trail);
// the engine only reads the current rates.
type PlatformFees struct {
	Venue         Venue
	TakerFee      float64 // fraction, e.g. 0.02
	MakerFee      float64
	SettlementFee float64
	WithdrawalFee float64 // flat USD
	Notes         string
	LastVerified  time.Time
	UpdatedAt     time.Time
}

// Total returns trade fee plus settlement fee for one leg. maker selects the
// maker rate; the default path for detection is taker.
func (f PlatformFees) Total(maker bool) float64 {
	if maker {
		return f.MakerFee + f.SettlementFee
	}
	return f.TakerFee + f.SettlementFee
}
