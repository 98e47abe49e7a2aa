package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/api/middleware"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
)

// RouteDeps 注册读写器路由所需的依赖
type RouteDeps struct {
	Service ReaderService
	Query   ObservationQuery // 可为空
	Hub     *Hub             // 可为空，为空时不注册 /ws/tags
	Auth    middleware.AuthConfig
	Limiter *middleware.RateLimiter // 可为空
	Metrics *metrics.AppMetrics     // 可为空
	Logger  *zap.Logger
}

// RegisterReaderRoutes 注册读写器 API 与实时推送路由
func RegisterReaderRoutes(r *gin.Engine, deps RouteDeps) {
	if r == nil || deps.Service == nil {
		return
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := NewReaderHandler(deps.Service, deps.Query, logger)

	auth := middleware.APIKeyAuth(deps.Auth, logger)
	if deps.Auth.Enabled {
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(deps.Auth.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	v1 := r.Group("/api/v1/reader")
	v1.Use(middleware.CORS(), auth)

	// 查询类接口不限流
	v1.GET("/status", handler.GetStatus)
	v1.GET("/observations", handler.ListObservations)

	// 读写器指令串行执行，按全局速率限流
	cmd := v1.Group("")
	if deps.Limiter != nil {
		var rejected prometheus.Counter
		if deps.Metrics != nil {
			rejected = deps.Metrics.RateLimitedTotal
		}
		cmd.Use(middleware.RateLimit(deps.Limiter, rejected))
	}
	cmd.GET("/info", handler.GetInfo)
	cmd.GET("/power", handler.GetPower)
	cmd.PUT("/power", handler.SetPower)
	cmd.GET("/channel", handler.GetChannel)
	cmd.PUT("/channel", handler.SetChannel)
	cmd.GET("/region", handler.GetRegion)
	cmd.PUT("/region", handler.SetRegion)
	cmd.GET("/frequency", handler.GetFrequency)
	cmd.POST("/inventory", handler.Inventory)
	cmd.POST("/stream", handler.StartStream)
	cmd.DELETE("/stream", handler.StopStream)

	endpoints := 13
	if deps.Hub != nil {
		r.GET("/ws/tags", auth, deps.Hub.ServeWS)
		endpoints++
	}
	logger.Info("reader routes registered", zap.Int("endpoints", endpoints))
}
