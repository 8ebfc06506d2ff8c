package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStatus filters list queries by lifecycle state.
type OpportunityStatus string

const (
	StatusAny    OpportunityStatus = ""
	StatusOpen   OpportunityStatus = "open"
	StatusClosed OpportunityStatus = "closed"
)

// OpportunityFilter narrows List queries. Zero values mean "no constraint".
// Results are always ordered by net spread then deployable capital,
// descending; the dashboard relies on that ordering for best-first display.
type OpportunityFilter struct {
	Status           OpportunityStatus
	Type             ArbType
	Quality          Quality
	MinNetSpreadPct  float64
	MinDeployableUSD float64
	Limit            int
}

// OpportunityStore persists arbitrage opportunities. Implementations must
// enforce at most one open row per (Type, Identity) as a backstop against
// overlapping sync cycles; Insert returns ErrAlreadyExists when that
// constraint is violated.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbOpportunity) error
	// GetOpen returns the single open row for the identity, or ErrNotFound.
	GetOpen(ctx context.Context, typ ArbType, identity string) (ArbOpportunity, error)
	Update(ctx context.Context, opp ArbOpportunity) error
	// CloseStale resolves every open row whose LastSeenAt is before cutoff
	// and returns how many rows it closed. DurationSeconds is left frozen at
	// the last observation.
	CloseStale(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context, f OpportunityFilter) ([]ArbOpportunity, error)
	// ListClosedBefore returns closed rows resolved strictly before the
	// cutoff, for archival.
	ListClosedBefore(ctx context.Context, before time.Time) ([]ArbOpportunity, error)
}

// FeeStore persists per-venue fee schedules.
type FeeStore interface {
	GetAll(ctx context.Context) ([]PlatformFees, error)
	Get(ctx context.Context, venue Venue) (PlatformFees, error)
	Upsert(ctx context.Context, fees PlatformFees) error
}

// VolumeStore persists hourly volume buckets.
type VolumeStore interface {
	// Record upserts the bucket for the observation's hour; the latest
	// observation within an hour wins.
	Record(ctx context.Context, b VolumeBucket) error
	// ListRecent returns up to window buckets for the market in ascending
	// bucket order.
	ListRecent(ctx context.Context, marketID string, window int) ([]VolumeBucket, error)
	// ListBefore returns all buckets older than the cutoff, for archival
	// ahead of pruning.
	ListBefore(ctx context.Context, before time.Time) ([]VolumeBucket, error)
	// DeleteBefore prunes buckets older than the cutoff and returns the
	// number removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single engine audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only log of engine-side events (sweeps,
// fee fallbacks, reaper runs).
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
