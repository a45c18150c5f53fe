package http

import (
	"github.com/EternisAI/crooked-keys/internal/api/http/handler"
	"github.com/EternisAI/crooked-keys/internal/api/http/middleware"
	"github.com/EternisAI/crooked-keys/internal/provisioning"
	"github.com/EternisAI/crooked-keys/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiLimitMessage = "Too many requests, try again later"

type Services struct {
	Provisioning *provisioning.Service
	APILimiter   *ratelimit.Limiter
	Version      string
}

func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	if cfg.MetricsEnabled {
		engine.Use(middleware.Metrics())
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := engine.Group(cfg.PathPrefix)
	if srvs.APILimiter != nil {
		api.Use(middleware.RateLimit(srvs.APILimiter, apiLimitMessage))
	}

	healthHandler := handler.NewHealthHandler(srvs.Version)
	api.GET("/health", healthHandler.Check)

	vpnHandler := handler.NewVPNHandler(srvs.Provisioning, cfg.PathPrefix)
	api.POST("/get-vpn", vpnHandler.GetVPN)
	api.GET("/download-config/:id", vpnHandler.DownloadConfig)

	clientsHandler := handler.NewClientsHandler(srvs.Provisioning)
	api.GET("/clients", clientsHandler.List)
	api.DELETE("/clients/:id", clientsHandler.Revoke)
}
