package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 读写器可用，但部分下游（数据库、Redis、推送）异常
	StatusUnhealthy Status = "unhealthy" // 读写器不可用
)

// CheckResult 单个组件的检查结果
type CheckResult struct {
	Status   Status                 `json:"status"`
	Critical bool                   `json:"critical"`
	Message  string                 `json:"message,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Latency  time.Duration          `json:"latency"`
}

// Checker 健康检查器
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

func failed(start time.Time, err error, details map[string]interface{}) CheckResult {
	return CheckResult{
		Status:  StatusUnhealthy,
		Message: err.Error(),
		Details: details,
		Latency: time.Since(start),
	}
}
