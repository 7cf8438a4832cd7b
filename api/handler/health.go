package handler

import (
	"net/http"
	"time"

	"github.com/bcajales/scraper-service/models"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Health returns a handler for GET /healthz.
//
// Status is "saturated" when an admission limit is set and every slot is held.
func Health(active func() int, maxSessions int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := active()

		status := "healthy"
		if maxSessions > 0 && n >= maxSessions {
			status = "saturated"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: n,
			MaxSessions:    maxSessions,
			Version:        Version,
		})
	}
}
