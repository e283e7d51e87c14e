package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger creates a gin middleware for logging requests using zap.
// Signal ingest (frames, typing batches) dominates request volume, so
// successes log at Debug and only errors surface by default.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		// Almost every route is session-scoped; tag the session id so one
		// attempt's traffic can be pulled out of the stream.
		if sessionID := c.Param("id"); sessionID != "" {
			fields = append(fields, zap.String("sessionID", sessionID))
		}

		switch {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status == 429:
			log.Warn("Request rate limited", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Debug("Request handled", fields...)
		}
	}
}
