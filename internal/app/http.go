package app

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool, log *zap.Logger) *httpserver.Server {
	return httpserver.New(cfg, metricsPath, metricsHandler, readyFn, log)
}

// NewRateLimiter 读写器指令限流器；未启用时返回 nil
func NewRateLimiter(cfg cfgpkg.RateLimitConfig) *middleware.RateLimiter {
	if !cfg.Enable || cfg.RPS <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(cfg.RPS, cfg.Burst)
}
