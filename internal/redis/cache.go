package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AnalyticsCache stores computed analytics per patient. Every patient has a
// generation counter that is part of each key, so bumping it on a new event
// orphans all earlier entries without scanning for them.
type AnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnalyticsCache(client *redis.Client, ttl time.Duration) *AnalyticsCache {
	return &AnalyticsCache{client: client, ttl: ttl}
}

func generationKey(patientID uuid.UUID) string {
	return fmt.Sprintf("analytics:gen:%s", patientID.String())
}

func (c *AnalyticsCache) generation(ctx context.Context, patientID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(patientID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func entryKey(patientID uuid.UUID, gen int64, key string) string {
	return fmt.Sprintf("analytics:%s:g%d:%s", patientID.String(), gen, key)
}

// Get decodes the cached value into dst and reports whether it was present,
// along with the generation it was looked up under. A value computed after a
// miss should be stored with that generation.
func (c *AnalyticsCache) Get(ctx context.Context, patientID uuid.UUID, key string, dst any) (int64, bool, error) {
	gen, err := c.generation(ctx, patientID)
	if err != nil {
		return 0, false, err
	}

	raw, err := c.client.Get(ctx, entryKey(patientID, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, fmt.Errorf("read cache entry: %w", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return gen, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return gen, true, nil
}

// setIfGeneration writes the entry only while the patient's generation still
// equals ARGV[1]. Returns 1 when written.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

// Set stores value for the generation returned by Get. If the patient was
// invalidated since then the value is dropped, so a result computed from
// older history is never served.
func (c *AnalyticsCache) Set(ctx context.Context, patientID uuid.UUID, key string, gen int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	keys := []string{generationKey(patientID), entryKey(patientID, gen, key)}
	args := []any{strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()}
	if err := setIfGeneration.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Invalidate drops every cached entry for the patient.
func (c *AnalyticsCache) Invalidate(ctx context.Context, patientID uuid.UUID) error {
	if err := c.client.Incr(ctx, generationKey(patientID)).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}
