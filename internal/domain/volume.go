package domain

import "time"

// VolumeBucket is one hourly bucket of observed traded volume for a market.
type VolumeBucket struct {
	MarketID    string
	BucketStart time.Time // truncated to the hour
	VolumeUSD   float64
}

// VolumeSpike is an alert that a market's most recent hourly volume is a
// multiple above its rolling baseline.
type VolumeSpike struct {
	MarketID       string
	CurrentVolume  float64
	BaselineMean   float64
	BaselineStddev float64
	Multiple       float64 // CurrentVolume / BaselineMean
	ZScore         float64 // display/ranking only, never the trigger
	BucketCount    int     // baseline buckets used
	DetectedAt     time.Time
}
