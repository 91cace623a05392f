package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prerender/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when more than 80% of the queue slots are waiting.
func Health(q *Queue, driver string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := q.Stats()

		status := "healthy"
		if stats.Capacity > 0 && stats.Waiting > int(float64(stats.Capacity)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Driver:  driver,
			Queue:   stats,
			Version: Version,
		})
	}
}
