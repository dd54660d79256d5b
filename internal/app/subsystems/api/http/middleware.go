package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resonatehq/resmon/internal/metrics"
)

const requestIdHeader = "X-Request-Id"

// requestId propagates the caller's request id, or generates one, on
// both the request and the response.
func requestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIdHeader)
		if id == "" {
			id = uuid.New().String()
			c.Request.Header.Set(requestIdHeader, id)
		}

		c.Header(requestIdHeader, id)
		c.Next()
	}
}

func instrument(metrics *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		start := time.Now()

		inflight := metrics.ApiInFlight.WithLabelValues(method, path)
		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.ApiTotal.WithLabelValues(method, path, status).Inc()

		slog.Debug("http request", "method", method, "path", path, "status", status, "duration", time.Since(start), "request_id", c.GetHeader(requestIdHeader))
	}
}
