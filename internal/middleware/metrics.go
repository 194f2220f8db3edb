package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner/internal/service"
)

// Metrics records per-operation bridge request metrics.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		operation := c.Param("operation")
		if operation == "" {
			operation = c.FullPath()
		}
		metricsSvc.ObserveBridgeRequest(operation, c.Writer.Status(), time.Since(start))
	}
}
