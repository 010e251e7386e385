package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// CachedProvider is a read-through Redis cache in front of another Provider.
//
// Entries for one establishment share a hash so an hours update can drop them with a single DEL.
// Each invalidation also bumps a generation counter; a fill only lands if the generation it read
// before calling the inner provider is still current. Redis errors are logged and the inner
// provider is used directly.
type CachedProvider struct {
	inner   Provider
	rdb     redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type cachedSchedule struct {
	Schedule DaySchedule `json:"schedule"`
	CachedAt time.Time   `json:"cached_at"`
}

// generationTTL outlives any in-flight fill by a wide margin.
const generationTTL = 24 * time.Hour

// KEYS[1] hash, KEYS[2] generation; ARGV: generation read before the fill, field, value, ttl ms.
var fillIfCurrentScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

func NewCachedProvider(inner Provider, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, logger: logger, metrics: m, now: time.Now}
}

func cacheKey(establishmentID string) string {
	return "schedule:" + establishmentID
}

func generationKey(establishmentID string) string {
	return "schedule:" + establishmentID + ":gen"
}

func cacheField(serviceID string, date civil.Date) string {
	return date.String() + "|" + serviceID
}

func (c *CachedProvider) DaySchedule(ctx context.Context, establishmentID, serviceID string, date civil.Date) (DaySchedule, error) {
	key, field := cacheKey(establishmentID), cacheField(serviceID, date)

	raw, err := c.rdb.HGet(ctx, key, field).Bytes()
	switch {
	case err == nil:
		var entry cachedSchedule
		if jerr := json.Unmarshal(raw, &entry); jerr == nil && c.now().Sub(entry.CachedAt) < c.ttl {
			c.metrics.ObserveScheduleCache("hit")
			return entry.Schedule, nil
		}
		c.metrics.ObserveScheduleCache("stale")
	case errors.Is(err, redis.Nil):
		c.metrics.ObserveScheduleCache("miss")
	default:
		c.metrics.ObserveScheduleCache("error")
		c.logger.Warn("schedule cache read failed", "err", err, "establishment_id", establishmentID)
		return c.inner.DaySchedule(ctx, establishmentID, serviceID, date)
	}

	gen, err := c.rdb.Get(ctx, generationKey(establishmentID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = "0"
	case err != nil:
		c.logger.Warn("schedule cache generation read failed", "err", err, "establishment_id", establishmentID)
		return c.inner.DaySchedule(ctx, establishmentID, serviceID, date)
	}

	sched, err := c.inner.DaySchedule(ctx, establishmentID, serviceID, date)
	if err != nil {
		return DaySchedule{}, err
	}

	b, err := json.Marshal(cachedSchedule{Schedule: sched, CachedAt: c.now()})
	if err != nil {
		return sched, nil
	}
	stored, err := fillIfCurrentScript.Run(ctx, c.rdb, []string{key, generationKey(establishmentID)},
		gen, field, b, c.ttl.Milliseconds()).Int64()
	switch {
	case err != nil:
		c.logger.Warn("schedule cache write failed", "err", err, "establishment_id", establishmentID)
	case stored == 0:
		c.logger.Debug("schedule cache fill skipped after invalidation", "establishment_id", establishmentID)
	}
	return sched, nil
}

// Invalidate drops every cached day of one establishment and fences off fills that started
// before it.
func (c *CachedProvider) Invalidate(ctx context.Context, establishmentID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(establishmentID))
		pipe.Expire(ctx, generationKey(establishmentID), generationTTL)
		pipe.Del(ctx, cacheKey(establishmentID))
		return nil
	})
	return err
}
