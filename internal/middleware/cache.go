package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
)

// NewRedisCache caches successful GET responses of one namespace in Redis.
// Only the body and the content headers the handler set (cachedHeaders)
// are stored; per-request headers such as X-Request-Id or the CORS ones are
// left to the middleware in front of the cache.  Requests with an Authorization header always go to the handler.  Every
// key lives under "<prefix>:<namespace>:" so CachePurger can drop a whole
// namespace after a write.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, namespace string, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	rc := &responseCache{cfg: cfg, rdb: rdb, namespace: namespace, log: log}
	if rc.cfg.TTL <= 0 {
		rc.cfg.TTL = 30 * time.Second
	}
	return rc.middleware
}

// cachedHeaders are the response headers replayed on a hit.
var cachedHeaders = []string{
	echo.HeaderContentType,
	echo.HeaderContentDisposition,
	"X-Total-Count",
	"X-Page",
	"X-Limit",
}

type responseCache struct {
	cfg       config.CacheConfig
	rdb       *redis.Client
	namespace string
	log       *zap.Logger
}

func (rc *responseCache) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if !rc.cfg.Methods[req.Method] || req.Header.Get(echo.HeaderAuthorization) != "" {
			return next(c)
		}
		key := cacheKeyFrom(rc.cfg, rc.namespace, c)
		if rc.serveHit(c, key) {
			return nil
		}

		rec := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
		c.Response().Writer = rec
		c.Response().Header().Set("X-Cache", "MISS")
		if err := next(c); err != nil {
			return err
		}
		if rec.status == http.StatusOK && !rec.truncated() {
			rc.store(key, c.Response().Header(), rec.buf.Bytes())
		}
		return nil
	}
}

func (rc *responseCache) serveHit(c echo.Context, key string) bool {
	raw, err := rc.rdb.Get(c.Request().Context(), key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.log.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	status, hdr, body, ok := decodePayload(raw)
	if !ok {
		return false
	}
	out := c.Response().Header()
	for _, k := range cachedHeaders {
		if vals := hdr.Values(k); len(vals) > 0 && out.Get(k) == "" {
			out[k] = append([]string(nil), vals...)
		}
	}
	out.Set("X-Cache", "HIT")
	c.Response().WriteHeader(status)
	_, _ = c.Response().Write(body)
	return true
}

func (rc *responseCache) store(key string, header http.Header, body []byte) {
	hdr := http.Header{}
	for _, k := range cachedHeaders {
		if vals := header.Values(k); len(vals) > 0 {
			hdr[k] = append([]string(nil), vals...)
		}
	}
	payload, err := encodePayload(http.StatusOK, hdr, body)
	if err != nil {
		return
	}
	// the request context may already be cancelled once the response is out
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rc.rdb.Set(ctx, key, payload, rc.cfg.TTL).Err(); err != nil {
		rc.log.Debug("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// captureWriter tees the response body into buf, keeping at most limit
// bytes (no limit when limit <= 0).
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	keep := b
	if w.limit > 0 {
		room := w.limit - int64(w.buf.Len())
		if room < 0 {
			room = 0
		}
		if int64(len(keep)) > room {
			keep = keep[:room]
		}
	}
	w.buf.Write(keep)
	w.size += int64(len(b))
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) truncated() bool { return w.limit > 0 && w.size > w.limit }

// cacheKeyFrom builds "<prefix>:<namespace>:<sha1>".  The concrete path is
// always hashed in; c.Path() is only the route template.
func cacheKeyFrom(cfg config.CacheConfig, namespace string, c echo.Context) string {
	r := c.Request()
	var parts []string
	switch cfg.KeyStrategy {
	case "route":
		parts = []string{"route", c.Path()}
	case "method_route":
		parts = []string{"method", r.Method, "route", c.Path()}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
	default:
		parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
	}
	parts = append(parts, "path", r.URL.Path)

	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return namespacePrefix(cfg.Prefix, namespace) + ":" + hex.EncodeToString(sum[:])
}

func namespacePrefix(prefix, namespace string) string {
	return prefix + ":" + namespace
}

// Cached entries are laid out as
//
//	status (uint32) | len(header JSON) (uint32) | header JSON | body
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	out = append(out, hdr...)
	return append(out, body...), nil
}

func decodePayload(raw []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(raw) < 8 {
		return 0, nil, nil, false
	}
	n := int64(binary.BigEndian.Uint32(raw[4:8]))
	if 8+n > int64(len(raw)) {
		return 0, nil, nil, false
	}
	header = http.Header{}
	if n > 0 {
		if err := json.Unmarshal(raw[8:8+n], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return int(binary.BigEndian.Uint32(raw[0:4])), header, raw[8+n:], true
}

// CachePurger drops every cached response of a namespace.  A nil client
// makes Purge a no-op.
type CachePurger struct {
	rdb    *redis.Client
	prefix string
}

func NewCachePurger(cfg config.CacheConfig, rdb *redis.Client) *CachePurger {
	return &CachePurger{rdb: rdb, prefix: cfg.Prefix}
}

// Purge walks the namespace with SCAN and deletes what it finds in batches.
func (p *CachePurger) Purge(ctx context.Context, namespace string) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	iter := p.rdb.Scan(ctx, 0, namespacePrefix(p.prefix, namespace)+":*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := p.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return p.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
