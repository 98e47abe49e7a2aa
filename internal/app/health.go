package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/rfid-gateway/internal/health"
	"github.com/taoyao-code/rfid-gateway/internal/inventory"
	redisstorage "github.com/taoyao-code/rfid-gateway/internal/storage/redis"
)

// HealthDeps 健康检查涉及的组件，除 Reader 外均可为空
type HealthDeps struct {
	Reader   health.ReaderProbe
	DB       *pgxpool.Pool
	Redis    *redisstorage.Client
	Breakers []*inventory.BreakerSink
}

// NewHealthAggregator 读写器为关键组件，存储与下游为可选组件
func NewHealthAggregator(deps HealthDeps) *health.Aggregator {
	agg := health.NewAggregator(0)
	agg.Critical(health.NewReaderChecker(deps.Reader, 0))
	if deps.DB != nil {
		agg.Optional(health.NewDatabaseChecker(deps.DB))
	}
	if deps.Redis != nil {
		agg.Optional(health.NewRedisChecker(deps.Redis))
	}
	if len(deps.Breakers) > 0 {
		probes := make([]health.BreakerProbe, 0, len(deps.Breakers))
		for _, b := range deps.Breakers {
			probes = append(probes, b)
		}
		agg.Optional(health.NewSinkChecker(probes...))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
