package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrz1836/depositor/internal/gatewayapi"
	"github.com/mrz1836/depositor/internal/metrics"
)

const requestIDKey = "request_id"

// requestID propagates the caller's request ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(gatewayapi.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(gatewayapi.RequestIDHeader, id)
		c.Next()
	}
}

// accessLog logs every request and records it in m. Unmatched routes are
// logged but not recorded, keeping metric labels bounded.
func accessLog(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()

		log.Debug("http request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", took),
		)
		if route != "" {
			m.RecordHTTPRequest(c.Request.Method, route, status, took)
		}
	}
}
