package main

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/logging"
)

// @title R200 RFID Gateway API
// @version 1.0
// @description UHF RFID reader control and tag inventory.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// 1) 加载配置（R200_CONFIG 指定路径，R200_ 前缀环境变量覆盖）
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Fatal("gateway exited", zap.Error(err))
	}
}
