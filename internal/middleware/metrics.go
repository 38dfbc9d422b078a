package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/service"
)

// Metrics records per-route latency and status counts. The route template
// (e.g. /runs/:id/report) is used as the label so run and job IDs do not blow
// up the metric cardinality; only unmatched 404s fall back to the raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
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
