package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"

	// CacheStatusHeader tells clients whether a summary or verification came from Redis.
	CacheStatusHeader = "X-Cache"
)

// WithResponseMeta attaches a per-request meta map and stamps processing_time_ms once handlers finish.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaFor(c)
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit marks the response as served from cache (or not) in both meta and headers.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	metaFor(c)[cacheHitKey] = hit
	status := "MISS"
	if hit {
		status = "HIT"
	}
	c.Header(CacheStatusHeader, status)
}

// SetMeta stores an arbitrary key on the response meta, e.g. dry_run for maintenance reports.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	metaFor(c)[key] = value
}

// ExtractMeta returns the meta map for the response envelope, or nil when none was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
