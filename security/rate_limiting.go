package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// RateLimiter enforces per-client request budgets backed by Redis, so the
// limits hold across instances.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit returns a middleware allowing at most max requests per client per
// window for the given scope. Redis outages fail open: rejecting traffic
// because the limiter is down would be worse than briefly not limiting.
func (rl *RateLimiter) Limit(scope string, max int, window time.Duration) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := fmt.Sprintf("ratelimit:%s:%s", scope, e.RealIP())

		count, err := rl.redis.Incr(e.Request.Context(), key).Result()
		if err != nil {
			slog.Error("rate limit check failed", "scope", scope, "error", err)
			return e.Next()
		}
		if count == 1 {
			rl.redis.Expire(e.Request.Context(), key, window)
		}

		if count > int64(max) {
			return apis.NewApiError(http.StatusTooManyRequests,
				"Too many requests, slow down", nil)
		}
		return e.Next()
	}
}

// RequireGateKey authenticates gate scanner devices via the X-Gate-Key
// header against a bcrypt hash. An empty hash means gate auth is not
// configured and everything passes.
func RequireGateKey(gateKeyHash string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if gateKeyHash == "" {
			return e.Next()
		}

		key := e.Request.Header.Get("X-Gate-Key")
		if key == "" {
			return apis.NewUnauthorizedError("Missing gate key", nil)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(gateKeyHash), []byte(key)); err != nil {
			return apis.NewForbiddenError("Invalid gate key", nil)
		}
		return e.Next()
	}
}
