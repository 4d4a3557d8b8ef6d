package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
)

// snapshot is a cached GET response.
type snapshot struct {
	Status      int             `json:"status"`
	ContentType string          `json:"contentType"`
	Body        json.RawMessage `json:"body"`
}

// teeWriter forwards the response and keeps a bounded copy of the body.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func snapshotKey(cfg config.CacheConfig, c echo.Context) string {
	key := cfg.Prefix + ":" + c.Path()
	if q := c.Request().URL.RawQuery; q != "" {
		key += "?" + q
	}
	return key
}

// NewRedisCache serves repeated GETs of a JSON route from Redis until the
// TTL lapses or InvalidateOnWrite drops the snapshot. Only 200 responses
// are stored. Every response carries X-Cache: HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := snapshotKey(cfg, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var s snapshot
				if err := json.Unmarshal(raw, &s); err == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(s.Status, s.ContentType, s.Body)
				}
				log.Warn().Str("key", key).Msg("cache: dropping unreadable snapshot")
				rdb.Del(ctx, key)
			} else if err != redis.Nil {
				log.Warn().Err(err).Str("key", key).Msg("cache: lookup failed")
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.overflow || !json.Valid(tw.buf.Bytes()) {
				return nil
			}
			raw, err := json.Marshal(snapshot{
				Status:      tw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        tw.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, raw, ttl).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("cache: store failed")
			}
			return nil
		}
	}
}

// InvalidateCache deletes every snapshot under cfg.Prefix.
func InvalidateCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) error {
	var keys []string
	iter := rdb.Scan(ctx, 0, cfg.Prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// InvalidateOnWrite drops the stats snapshots after a successful
// registration, payment or admin mutation.
func InvalidateOnWrite(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status < http.StatusBadRequest {
				if ierr := InvalidateCache(context.WithoutCancel(c.Request().Context()), cfg, rdb); ierr != nil {
					log.Warn().Err(ierr).Msg("cache: invalidation failed")
				}
			}
			return err
		}
	}
}
