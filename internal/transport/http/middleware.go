package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CorrelationID reuses the caller's X-Correlation-ID or generates one, echoes it
// back and stores it in the request context for the notification logs.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(requestid.Header); id != "" {
			ctx = requestid.With(ctx, id)
		}
		ctx, id := requestid.Ensure(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestid.Header, id)
		c.Next()
	}
}

// LoggingMiddleware prints request/response metrics.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"correlation_id", requestid.From(c.Request.Context()),
		)
	}
}

// RateLimitMiddleware simple token bucket per IP.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	newLimiter := func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) }
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			lim = newLimiter()
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
