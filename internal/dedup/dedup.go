// Package dedup guards the face directory's index call against redelivery.
// Indexing is not idempotent: a second index call for the same image creates
// a duplicate face entry under the same external id. A Redis SETNX with TTL
// makes the call effectively at-most-once across queue redeliveries.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fw:indexed:"

// Guard tracks which image ids have already been indexed.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

// IsNew returns true if the image id has NOT been indexed before.
// If true, the id is marked as seen atomically (SETNX).
func (g *Guard) IsNew(ctx context.Context, imageID string) (bool, error) {
	key := keyPrefix + imageID

	set, err := g.rdb.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Release deletes the marker so a redelivered message retries the image
// instead of skipping it as a duplicate. Called when processing fails after
// the id was marked. If the index call itself succeeded before the failure,
// redelivery duplicates it, same as running unguarded.
func (g *Guard) Release(ctx context.Context, imageID string) error {
	if err := g.rdb.Del(ctx, keyPrefix+imageID).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}
	return nil
}
