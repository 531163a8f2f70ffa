package cache

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"garmentshop-be/internal/logger"
	"garmentshop-be/internal/metrics"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPCache caches successful GET responses in a Store. Routes whose payload
// depends on the acting principal must be wrapped with WrapPerUser so the
// principal id becomes part of the key and responses never leak across users.
type HTTPCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.CacheMetrics
}

func NewHTTPCache(store Store, ttl time.Duration, m *metrics.CacheMetrics) *HTTPCache {
	if m == nil {
		m = &metrics.CacheMetrics{}
	}
	return &HTTPCache{store: store, ttl: ttl, metrics: m}
}

// Key builds the cache key for a request: path plus raw query. Per-user
// routes prepend the principal id so one user's family can be invalidated
// by prefix without touching anyone else's.
func Key(r *http.Request, perUser bool) (string, bool) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	if perUser {
		userID, ok := utils.GetUserIDFromContext(r.Context())
		if !ok {
			// No principal to scope the entry to; skip caching entirely.
			return "", false
		}
		key = UserPrefix(userID, r.URL.Path) + strings.TrimPrefix(key, r.URL.Path)
	}

	return key, true
}

// UserPrefix is the invalidation prefix for one principal's entries under a path.
func UserPrefix(userID uuid.UUID, path string) string {
	return "u:" + userID.String() + "|" + path
}

// Wrap caches responses shared by all callers.
func (c *HTTPCache) Wrap(next http.Handler) http.Handler {
	return c.middleware(next, false)
}

// WrapPerUser caches responses scoped to the acting principal.
func (c *HTTPCache) WrapPerUser(next http.Handler) http.Handler {
	return c.middleware(next, true)
}

// recorder buffers the response so a 200 body can be stored after serving it.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(p []byte) (int, error) {
	rec.buf.Write(p)
	return rec.ResponseWriter.Write(p)
}

func (c *HTTPCache) middleware(next http.Handler, perUser bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key, cacheable := Key(r, perUser)
		if !cacheable {
			next.ServeHTTP(w, r)
			return
		}

		log := logger.FromCtx(r.Context()).With(zap.String("cache_key", key))

		if val, hit, err := c.store.Get(r.Context(), key); err != nil {
			log.Warn("cache read failed", zap.Error(err))
		} else if hit {
			c.metrics.Hits.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(val)
			return
		}

		c.metrics.Misses.Inc()

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status == http.StatusOK && rec.buf.Len() > 0 {
			if err := c.store.Set(r.Context(), key, rec.buf.Bytes(), c.ttl); err != nil {
				log.Warn("cache write failed", zap.Error(err))
			}
		}
	})
}
