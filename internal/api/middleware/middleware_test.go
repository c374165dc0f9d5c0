package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rm := NewRequestMiddleware(zap.NewNop())
	engine := gin.New()
	engine.Use(rm.ProcessRequest(), rm.RecoverPanic())
	engine.GET("/", handlers...)
	return engine
}

func TestProcessRequest_RequestID(t *testing.T) {
	var seen string
	engine := newEngine(func(c *gin.Context) {
		seen = RequestID(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", inbound)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, inbound, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", seen, "malformed ids are replaced")
}

func TestRecoverPanic(t *testing.T) {
	engine := newEngine(func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL", body["code"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), body["request_id"])
}

func TestRateLimiter_KeysByPrincipal(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop())
	engine := newEngine(func(c *gin.Context) {
		c.Set(principalKey, domain.Principal{UserID: c.Query("user")})
		c.Next()
	}, rl.Limit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := func(user string) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?user="+user, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, codes("alice"))
	assert.Equal(t, http.StatusTooManyRequests, codes("alice"))
	assert.Equal(t, http.StatusNoContent, codes("bob"))
}
