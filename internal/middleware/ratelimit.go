package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
)

// NewRateLimiter counts requests per client IP in fixed Redis windows. The
// counter key carries the window start, so a fresh window starts at zero
// and the old key expires on its own. Redis errors fail open.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	message := cfg.Message
	if message == "" {
		message = "Too many requests, please try again later."
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			start := now.Truncate(cfg.Window)
			key := windowKey(cfg, c, start)

			pipe := rdb.TxPipeline()
			incr := pipe.Incr(c.Request().Context(), key)
			pipe.Expire(c.Request().Context(), key, cfg.Window)
			if _, err := pipe.Exec(c.Request().Context()); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("ratelimit: redis error, allowing request")
				return next(c)
			}
			used := incr.Val()

			remaining := int64(cfg.Max) - used
			if remaining < 0 {
				remaining = 0
			}
			reset := start.Add(cfg.Window)
			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("RateLimit-Reset", strconv.Itoa(int(reset.Sub(now).Seconds()+0.5)))

			if used > int64(cfg.Max) {
				secs := int(reset.Sub(now).Seconds() + 0.5)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success":    false,
					"message":    message,
					"retryAfter": secs,
				})
			}
			return next(c)
		}
	}
}

func windowKey(cfg config.RateLimitConfig, c echo.Context, start time.Time) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix, ip}
	if cfg.PerRoute {
		parts = append(parts, c.Request().Method+" "+c.Path())
	}
	parts = append(parts, strconv.FormatInt(start.Unix(), 10))
	return strings.Join(parts, ":")
}
