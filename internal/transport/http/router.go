package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/repo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the read-only introspection API.
func NewRouter(r repo.RepositoryInterface, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(LoggingMiddleware(log))
	router.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(router, r)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
