package main

import (
	"log/slog"
	"time"

	"github.com/agendafacil/agendafacil/libs/config"
	"github.com/agendafacil/agendafacil/libs/httpx"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/metrics"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/scheduling"
	"github.com/redis/go-redis/v9"
)

type scheduleProvider struct {
	scheduling.Provider
	// Cache is nil when Redis is not configured.
	Cache *scheduling.CachedProvider
	close func() error
}

func (p scheduleProvider) Close() {
	if p.close != nil {
		_ = p.close()
	}
}

// newScheduleProvider prefers establishment-service over gRPC and falls back to fixed hours from env.
func newScheduleProvider(logger *slog.Logger, rdb *redis.Client, m *metrics.Metrics) (scheduleProvider, error) {
	var out scheduleProvider

	if addr := config.String("ESTABLISHMENT_GRPC_ADDR", ""); addr != "" {
		timeout, err := config.Duration("ESTABLISHMENT_GRPC_TIMEOUT", 3*time.Second)
		if err != nil {
			return out, err
		}
		p, err := scheduling.NewGRPCProvider(addr, timeout)
		if err != nil {
			return out, err
		}
		out.Provider, out.close = p, p.Close
		logger.Info("schedule provider: establishment-service", "addr", addr)
	} else {
		windows, err := scheduling.ParseWindows(config.String("DEFAULT_HOURS", "09:00-12:00,14:00-18:00"))
		if err != nil {
			return out, err
		}
		duration, err := config.Int("DEFAULT_DURATION_MINUTES", 30)
		if err != nil {
			return out, err
		}
		out.Provider = &scheduling.StaticProvider{
			Windows:         windows,
			DurationMinutes: duration,
			ServiceName:     config.String("DEFAULT_SERVICE_NAME", "Atendimento"),
			Timezone:        config.String("DEFAULT_TIMEZONE", "America/Sao_Paulo"),
		}
		logger.Warn("schedule provider: static hours (ESTABLISHMENT_GRPC_ADDR not set)")
	}

	if rdb != nil {
		ttl, err := config.Duration("SCHEDULE_CACHE_TTL", 5*time.Minute)
		if err != nil {
			return out, err
		}
		out.Cache = scheduling.NewCachedProvider(out.Provider, rdb, ttl, logger, m)
		out.Provider = out.Cache
	}
	return out, nil
}

// publicMiddleware rate limits unauthenticated routes, in Redis when available so limits hold
// across replicas.
func publicMiddleware(logger *slog.Logger, rdb *redis.Client) ([]httpx.Middleware, error) {
	limit, err := config.Int("PUBLIC_RATE_LIMIT", 60)
	if err != nil {
		return nil, err
	}
	window, err := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limit, window, "ratelimit:booking:")
		return []httpx.Middleware{rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))}, nil
	}
	return []httpx.Middleware{httpx.NewRateLimiter(limit, window).Middleware()}, nil
}
