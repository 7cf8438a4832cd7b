package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bcajales/scraper-service/models"
	"github.com/gin-gonic/gin"
)

// Logger writes one structured log line per request once the handler chain
// has finished. Requests that recorded gin errors are logged at error level.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.Errors())
			slog.Error("HTTP request with errors", attrs...)
			return
		}
		slog.Info("HTTP request", attrs...)
	}
}

// Recovery converts a panic in any handler into a JSON 500 response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "internal server error",
			Code:  models.ErrCodeInternal,
		})
	})
}
