package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	redisstorage "github.com/taoyao-code/rfid-gateway/internal/storage/redis"
)

// poolStatus 按连接池占用率定级：>90% 降级，占满不健康
func poolStatus(inUse, capacity int64) (Status, string, float64) {
	if capacity <= 0 {
		return StatusHealthy, "ok", 0
	}
	usage := float64(inUse) / float64(capacity)
	switch {
	case usage >= 1:
		return StatusUnhealthy, "connection pool exhausted", usage
	case usage > 0.9:
		return StatusDegraded, "connection pool near limit", usage
	default:
		return StatusHealthy, "ok", usage
	}
}

// DatabaseChecker 观测记录库检查
type DatabaseChecker struct {
	pool *pgxpool.Pool
}

func NewDatabaseChecker(pool *pgxpool.Pool) *DatabaseChecker {
	return &DatabaseChecker{pool: pool}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return failed(start, fmt.Errorf("ping failed: %w", err), nil)
	}
	st := c.pool.Stat()
	status, msg, usage := poolStatus(int64(st.AcquiredConns()), int64(st.MaxConns()))
	return CheckResult{
		Status:  status,
		Message: msg,
		Details: map[string]interface{}{
			"acquired_conns": st.AcquiredConns(),
			"idle_conns":     st.IdleConns(),
			"max_conns":      st.MaxConns(),
			"usage":          fmt.Sprintf("%.1f%%", usage*100),
		},
		Latency: time.Since(start),
	}
}

// RedisChecker 去重与标签流所用 Redis 的检查
type RedisChecker struct {
	client *redisstorage.Client
}

func NewRedisChecker(client *redisstorage.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.HealthCheck(ctx); err != nil {
		return failed(start, fmt.Errorf("ping failed: %w", err), nil)
	}
	st := c.client.PoolStats()
	status, msg, usage := poolStatus(int64(st.TotalConns-st.IdleConns), int64(c.client.Options().PoolSize))
	return CheckResult{
		Status:  status,
		Message: msg,
		Details: map[string]interface{}{
			"total_conns": st.TotalConns,
			"idle_conns":  st.IdleConns,
			"timeouts":    st.Timeouts,
			"usage":       fmt.Sprintf("%.1f%%", usage*100),
		},
		Latency: time.Since(start),
	}
}
