package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-scheduler/internal/service"
)

// Metrics records request duration and count per route template. Probe and
// scrape endpoints are skipped so they do not dominate the series.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		switch path {
		case "/metrics", "/health", "/ready":
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
