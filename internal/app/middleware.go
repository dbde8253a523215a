package app

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pagebot/pagebot-go/internal/ctxutil"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/metrics"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-Id"

// requestIDHeaders are checked in order for an upstream request ID.
var requestIDHeaders = []string{HeaderRequestID, "X-Correlation-Id"}

// maxRequestIDLength bounds accepted upstream IDs; longer ones are replaced.
const maxRequestIDLength = 128

// recoveryMiddleware turns a handler panic into a 500 with a logged stack.
func recoveryMiddleware(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					WithField("http_path", c.Request.URL.Path).
					ErrorContext(c.Request.Context(), "Panic in HTTP handler")
				if m != nil {
					m.RecordHTTPError("panic", "http")
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestIDMiddleware reuses an upstream request ID or generates one, stores
// it in the request context and echoes it in the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := ""
		for _, h := range requestIDHeaders {
			if v := c.GetHeader(h); v != "" && len(v) <= maxRequestIDLength {
				requestID = v
				break
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			entry.ErrorContext(ctx, "HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.WarnContext(ctx, "HTTP request rejected")
		case status == http.StatusNotFound:
			entry.DebugContext(ctx, "HTTP request not found")
		default:
			entry.DebugContext(ctx, "HTTP request completed")
		}
	}
}
