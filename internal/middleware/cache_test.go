package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCacheHitWritesHeaderAndMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var captured map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/summary", func(c *gin.Context) {
		SetCacheHit(c, true)
		captured = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary", nil))

	assert.Equal(t, "HIT", w.Header().Get(CacheStatusHeader))
	require.NotNil(t, captured)
	assert.Equal(t, true, captured[cacheHitKey])
	assert.Contains(t, captured, "processing_time_ms")
}

func TestSetCacheHitMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetCacheHit(c, false)
	SetMeta(c, "dry_run", true)

	assert.Equal(t, "MISS", w.Header().Get(CacheStatusHeader))
	meta := ExtractMeta(c)
	assert.Equal(t, false, meta[cacheHitKey])
	assert.Equal(t, true, meta["dry_run"])
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))
	assert.Nil(t, ExtractMeta(nil))
}
