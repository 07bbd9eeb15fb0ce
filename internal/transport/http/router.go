package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.EventService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CorrelationID())
	r.Use(LoggingMiddleware(log))
	if rl.RPS > 0 {
		r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	RegisterHandlers(r, svc)
	return r
}
