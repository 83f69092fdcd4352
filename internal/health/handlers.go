package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-storefront/internal/common"
)

// Probe checks a single dependency within the given timeout.
type Probe func(ctx context.Context, timeout time.Duration) error

// PoolProbe probes a Postgres pool.
func PoolProbe(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context, timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// RedisProbe probes a Redis client.
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context, timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// Handler exposes liveness and readiness endpoints.
type Handler struct {
	DB           Probe
	Redis        Probe
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{}
	healthy := true

	probe := func(name string, p Probe, timeout time.Duration) {
		if p == nil {
			status[name] = "not configured"
			return
		}
		if err := p(ctx, timeout); err != nil {
			status[name] = err.Error()
			healthy = false
			return
		}
		status[name] = "ok"
	}
	probe("db", h.DB, h.dbTimeout())
	probe("redis", h.Redis, h.redisTimeout())

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
