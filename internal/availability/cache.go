package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medilink/appointment-engine/internal/slot"
)

// GridCache keeps generated slot grids in Redis for a short TTL to absorb
// UI re-renders. Staleness within the TTL is tolerated: the commit path
// re-validates against the appointment set, never the cache.
type GridCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGridCache(client *redis.Client, ttl time.Duration) *GridCache {
	return &GridCache{client: client, ttl: ttl}
}

func gridKey(doctorID uuid.UUID, days int) string {
	return fmt.Sprintf("grid:%s:%d", doctorID.String(), days)
}

func (c *GridCache) Get(ctx context.Context, doctorID uuid.UUID, days int) ([]slot.TimeSlot, bool) {
	raw, err := c.client.Get(ctx, gridKey(doctorID, days)).Bytes()
	if err != nil {
		return nil, false
	}

	var grid []slot.TimeSlot
	if err := json.Unmarshal(raw, &grid); err != nil {
		return nil, false
	}
	return grid, true
}

func (c *GridCache) Set(ctx context.Context, doctorID uuid.UUID, days int, grid []slot.TimeSlot) error {
	raw, err := json.Marshal(grid)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, gridKey(doctorID, days), raw, c.ttl).Err()
}

// Invalidate drops a doctor's cached grids after a booking changes the
// appointment set.
func (c *GridCache) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("grid:%s:*", doctorID.String()), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
