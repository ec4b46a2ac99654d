package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/service"
)

// Metrics records method, route and status of every request. The scrape and
// probe endpoints are excluded so they do not dominate the histograms.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	skipped := map[string]bool{
		"/metrics": true,
		"/health":  true,
		"/ready":   true,
	}

	return func(c *gin.Context) {
		if metricsSvc == nil || skipped[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
