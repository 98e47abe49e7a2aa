package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthReport /health 的响应体
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// RegisterHTTPRoutes 注册 /health、/health/ready、/health/live
func RegisterHTTPRoutes(r *gin.Engine, agg *Aggregator) {
	r.GET("/health", func(c *gin.Context) {
		results := agg.CheckAll(c.Request.Context())
		report := HealthReport{Status: Overall(results), Timestamp: time.Now(), Checks: results}
		c.JSON(statusCode(report.Status), report)
	})

	r.GET("/health/ready", func(c *gin.Context) {
		ready := agg.Ready(c.Request.Context())
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"ready": ready})
	})

	// 进程能响应即存活
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alive": true})
	})
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
