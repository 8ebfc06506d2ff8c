package domain

import "context"

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for ingestion batches and detection events,
// plus durable streams for consumers that must not miss messages.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// OpportunityCache holds the current open opportunity set for cheap reads by
// the reporting service, refreshed after every sweep.
type OpportunityCache interface {
	SetOpen(ctx context.Context, opps []ArbOpportunity) error
	GetOpen(ctx context.Context) ([]ArbOpportunity, error)
}
