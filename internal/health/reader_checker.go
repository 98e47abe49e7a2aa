package health

import (
	"context"
	"fmt"
	"time"
)

// ReaderProbe 读写器探活所需的能力
type ReaderProbe interface {
	ReaderID() string
	Streaming() bool
	Ping(ctx context.Context) error
}

// ReaderChecker 读写器健康检查器。
// 连续盘点期间串口被占用，不下发探测指令，直接视为健康。
type ReaderChecker struct {
	reader  ReaderProbe
	timeout time.Duration
}

// NewReaderChecker 创建读写器检查器；timeout<=0 时使用 2s
func NewReaderChecker(reader ReaderProbe, timeout time.Duration) *ReaderChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ReaderChecker{reader: reader, timeout: timeout}
}

// Name 返回检查器名称
func (c *ReaderChecker) Name() string {
	return "reader"
}

// Check 执行健康检查
func (c *ReaderChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]interface{}{
		"reader_id": c.reader.ReaderID(),
		"streaming": c.reader.Streaming(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.reader.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: details,
		Latency: time.Since(start),
	}
}
