package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// AccessLog logs each request once it completes.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set("logger", reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			reqLogger.Error(msg, fields...)
		case status >= 400:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", c.GetString("request_id")),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					NewErrorResponse(CodeInternal, "internal error"))
			}
		}()
		c.Next()
	}
}

// requestLogger returns the logger AccessLog stored on c.
func requestLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get("logger"); ok {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultClientIdle is how long an idle client's bucket is kept.
const DefaultClientIdle = 10 * time.Minute

// ClientLimiter keeps one token bucket per client IP. Buckets of clients
// idle for longer than idle are dropped, which refills them.
type ClientLimiter struct {
	mu      sync.Mutex
	clients *gocache.Cache
	idle    time.Duration
	rate    rate.Limit
	burst   int
}

// NewClientLimiter creates a limiter allowing perSecond sustained requests
// and bursts of burst per client.
func NewClientLimiter(perSecond float64, burst int, idle time.Duration) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = DefaultClientIdle
	}
	return &ClientLimiter{
		clients: gocache.New(idle, 2*idle),
		idle:    idle,
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

// Allow reports whether a request from key may proceed now.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := l.clients.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.rate, l.burst)
	}
	l.clients.Set(key, limiter, l.idle)
	l.mu.Unlock()
	return limiter.Allow()
}

// Clients returns the number of tracked clients, expired ones included
// until the janitor runs.
func (l *ClientLimiter) Clients() int {
	return l.clients.ItemCount()
}

// RateLimit rejects requests beyond the client's budget with 429.
func RateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				NewErrorResponse(CodeRateLimited, "too many requests, slow down"))
			return
		}
		c.Next()
	}
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

// IdempotencyHeader lets a client retry an append without recording it twice.
const IdempotencyHeader = "Idempotency-Key"

// replay is a stored response.
type replay struct {
	status int
	body   Response
}

// inFlight marks a key whose first request has not completed yet.
type inFlight struct{}

// IdempotencyCache remembers append responses by Idempotency-Key.
type IdempotencyCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewIdempotencyCache keeps responses for ttl.
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyCache{cache: gocache.New(ttl, 2*ttl), ttl: ttl}
}

// begin reserves key. It returns the stored response when the key completed
// before, or busy when its first request is still running.
func (i *IdempotencyCache) begin(key string) (stored *replay, busy bool) {
	if err := i.cache.Add(key, inFlight{}, i.ttl); err == nil {
		return nil, false
	}
	v, ok := i.cache.Get(key)
	if !ok {
		// Expired between Add and Get; take it.
		i.cache.Set(key, inFlight{}, i.ttl)
		return nil, false
	}
	if r, ok := v.(replay); ok {
		return &r, false
	}
	return nil, true
}

// finish stores the response for key.
func (i *IdempotencyCache) finish(key string, status int, body Response) {
	i.cache.Set(key, replay{status: status, body: body}, i.ttl)
}

// abandon releases key without storing a response.
func (i *IdempotencyCache) abandon(key string) {
	i.cache.Delete(key)
}
