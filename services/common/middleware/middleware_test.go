package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(1, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("ALLOWED_ORIGINS", "https://site.example.com/, https://ops.example.com")
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		r.ServeHTTP(w, req)
		return w
	}

	w := send("https://site.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://site.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusForbidden, send("https://evil.example.com").Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
	}
}

func TestStatusCodeToRange(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToRange(201))
	assert.Equal(t, "4xx", statusCodeToRange(429))
	assert.Equal(t, "5xx", statusCodeToRange(502))
	assert.Equal(t, "unknown", statusCodeToRange(101))
}

func TestRequestMetrics(t *testing.T) {
	names := func(route string, status int) []string {
		var out []string
		for _, d := range requestMetrics("import-service", http.MethodPost, route, status, 120*time.Millisecond) {
			out = append(out, aws.ToString(d.MetricName))
		}
		return out
	}

	assert.Equal(t, []string{"HTTPRequests", "HTTPLatency"}, names("/imports/:kind", 200))
	assert.Equal(t, []string{"HTTPRequests", "HTTPLatency", "HTTPErrors", "HTTP4xxErrors"}, names("/imports/:kind", 415))
	assert.Equal(t, []string{"HTTPRequests", "HTTPLatency", "HTTPErrors", "HTTP5xxErrors"}, names("", 502))

	batch := requestMetrics("import-service", http.MethodGet, "", 404, time.Second)
	assert.Equal(t, 1000.0, aws.ToFloat64(batch[1].Value))
	dims := map[string]string{}
	for _, d := range batch[0].Dimensions {
		dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	assert.Equal(t, "unmatched", dims["Path"])
	assert.Equal(t, "4xx", dims["Status"])
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(rate.Every(time.Second), 1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"), "bucket refilled")
	assert.Equal(t, 1, rl.size(), "idle client swept")
}
