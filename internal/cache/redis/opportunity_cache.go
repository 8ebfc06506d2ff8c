package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// openSetKey holds the JSON-encoded current open opportunity set.
const openSetKey = "arbs:open"

// openSetTTL bounds staleness if the engine stops refreshing: readers see an
// empty set rather than hours-old opportunities.
const openSetTTL = 30 * time.Minute

// OpportunityCache implements domain.OpportunityCache using a single Redis
// key refreshed wholesale after each sweep. The reporting service reads it
// instead of hitting PostgreSQL on every dashboard poll.
type OpportunityCache struct {
	rdb *redis.Client
}

// NewOpportunityCache creates an OpportunityCache backed by the given Client.
func NewOpportunityCache(c *Client) *OpportunityCache {
	return &OpportunityCache{rdb: c.Underlying()}
}

// SetOpen replaces the cached open set.
func (oc *OpportunityCache) SetOpen(ctx context.Context, opps []domain.ArbOpportunity) error {
	data, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("redis: marshal open set: %w", err)
	}
	if err := oc.rdb.Set(ctx, openSetKey, data, openSetTTL).Err(); err != nil {
		return fmt.Errorf("redis: set open set: %w", err)
	}
	return nil
}

// GetOpen returns the cached open set; an expired or missing key yields an
// empty slice, not an error.
func (oc *OpportunityCache) GetOpen(ctx context.Context) ([]domain.ArbOpportunity, error) {
	data, err := oc.rdb.Get(ctx, openSetKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get open set: %w", err)
	}

	var opps []domain.ArbOpportunity
	if err := json.Unmarshal(data, &opps); err != nil {
		return nil, fmt.Errorf("redis: decode open set: %w", err)
	}
	return opps, nil
}
