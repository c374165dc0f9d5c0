package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type requestIDKey struct{}

const (
	requestIDHeader = "X-Request-ID"
	requestIDField  = "request_id"
)

// RequestID returns the id ProcessRequest assigned to the current request.
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDField); id != "" {
		return id
	}
	id, _ := c.Request.Context().Value(requestIDKey{}).(string)
	return id
}

// AbortJSON stops the chain with the error body every endpoint uses.
func AbortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":       code,
		"message":    message,
		"request_id": RequestID(c),
	})
}

type RequestMiddleware struct {
	logger *zap.Logger
}

func NewRequestMiddleware(logger *zap.Logger) *RequestMiddleware {
	return &RequestMiddleware{
		logger: logger,
	}
}

// ProcessRequest tags the request with an id. A well formed inbound
// X-Request-ID is kept so callers can correlate retries.
func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(requestIDField, requestID)
		c.Header(requestIDHeader, requestID)
		rm.logger.Debug("Request started",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()))
		c.Next()
	}
}

func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rm.logger.Error("Panic recovered",
					zap.String("request_id", RequestID(c)),
					zap.Any("error", err),
					zap.Stack("stack"))
				AbortJSON(c, http.StatusInternalServerError, "INTERNAL", "Internal server error")
			}
		}()
		c.Next()
	}
}

// RateLimiter keeps one token bucket per caller. Authenticated requests are
// keyed by user id, anything else by client address.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	logger    *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     burst,
		idle:      3 * time.Minute,
		lastSweep: time.Now(),
		logger:    logger,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idle {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if p, ok := PrincipalFrom(c); ok {
			key = "user:" + p.UserID
		}
		if !rl.limiter(key).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("request_id", RequestID(c)),
				zap.String("key", key))
			c.Header("Retry-After", "1")
			AbortJSON(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		c.Next()
	}
}
