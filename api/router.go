package api

import (
	"net/http"
	"time"

	"github.com/bcajales/scraper-service/api/handler"
	"github.com/bcajales/scraper-service/api/middleware"
	"github.com/bcajales/scraper-service/config"
	"github.com/bcajales/scraper-service/models"
	"github.com/bcajales/scraper-service/pipeline"
	"github.com/gin-gonic/gin"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Extract: Auth (no-op without keys)
//
// The extract endpoint accepts POST on any path. Every other method on any
// path is answered with 405, except GET /healthz which is kept outside auth
// so monitoring probes always work.
func NewRouter(cfg *config.Config, p *pipeline.Pipeline, active func() int, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.RedirectTrailingSlash = false
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())

	r.NoMethod(methodNotAllowed)
	r.NoRoute(methodNotAllowed)

	r.GET("/healthz", handler.Health(active, p.MaxSessions(), startTime))
	r.POST("/*path", middleware.Auth(cfg.Auth.APIKeys), handler.Extract(p))

	return r
}

func methodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, models.ErrorResponse{
		Error: "method not allowed",
		Code:  models.ErrCodeMethod,
	})
}
