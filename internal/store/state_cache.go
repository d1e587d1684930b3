package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateCache keeps the last raw report a device sent for keys that have
// no relational home, most importantly the opaque sensor blob. Entries
// expire on their own; the cache is never authoritative.
type StateCache struct{ rdb *redis.Client }

func NewStateCache(rdb *redis.Client) *StateCache { return &StateCache{rdb: rdb} }

const cacheTTL = 24 * time.Hour

func sensorKey(uid string) string { return "window:sensor:" + uid }
func statusKey(uid string) string { return "window:status:" + uid }

func (c *StateCache) SetSensor(ctx context.Context, deviceUniqueID string, payload []byte) error {
	return c.rdb.Set(ctx, sensorKey(deviceUniqueID), payload, cacheTTL).Err()
}

func (c *StateCache) GetSensor(ctx context.Context, deviceUniqueID string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, sensorKey(deviceUniqueID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

// SetStatus remembers the raw body of the latest report per status key,
// useful when debugging what a device last claimed.
func (c *StateCache) SetStatus(ctx context.Context, deviceUniqueID, statusType string, payload []byte) error {
	return c.rdb.HSet(ctx, statusKey(deviceUniqueID), statusType, payload).Err()
}

func (c *StateCache) GetStatus(ctx context.Context, deviceUniqueID string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, statusKey(deviceUniqueID)).Result()
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (c *StateCache) Delete(ctx context.Context, deviceUniqueID string) error {
	return c.rdb.Del(ctx, sensorKey(deviceUniqueID), statusKey(deviceUniqueID)).Err()
}
