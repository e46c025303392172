package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
)

// captureWriter tees the response body (up to limit bytes) while writing
// it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
			w.truncated = true
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// NewRedisCache caches successful responses of the wrapped catalogue routes
// in Redis for cfg.TTL.  Responses larger than MaxBodyBytes are served but
// not cached.  Hits carry "X-Cache: HIT".
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	log := logrus.WithField("component", "cache")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodeEntry(raw); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, hdr.Get(echo.HeaderContentType), body)
				}
			} else if !errors.Is(err, redis.Nil) {
				log.WithError(err).Warn("cache read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			entry, err := encodeEntry(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, entry, ttl).Err(); err != nil {
				log.WithError(err).Warn("cache write failed")
			}
			return nil
		}
	}
}

// cacheKey hashes the parts selected by cfg.KeyStrategy under cfg.Prefix.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", c.Path()}
	case "method_route":
		parts = []string{"method", r.Method, "route", c.Path()}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
	default:
		// The concrete path keeps /exhibitions/1 and /exhibitions/2 apart.
		parts = []string{"route", r.URL.Path, "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum)
}

// encodeEntry packs [status u32][header length u32][header JSON][body].
func encodeEntry(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodeEntry(b []byte) (int, http.Header, []byte, bool) {
	if len(b) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(b[0:4]))
	n := int(binary.BigEndian.Uint32(b[4:8]))
	if n < 0 || 8+n > len(b) {
		return 0, nil, nil, false
	}
	hdr := http.Header{}
	if n > 0 {
		if err := json.Unmarshal(b[8:8+n], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, b[8+n:], true
}
