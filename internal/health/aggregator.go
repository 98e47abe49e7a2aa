package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 3 * time.Second

type entry struct {
	checker  Checker
	critical bool
}

// Aggregator 健康检查聚合器。
// 关键组件（读写器）不健康时整体不健康；可选组件故障只会让整体降级。
type Aggregator struct {
	mu      sync.RWMutex
	entries []entry
	timeout time.Duration
}

// NewAggregator 创建聚合器；timeout 为单项检查超时，<=0 取 3s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Aggregator{timeout: timeout}
}

// Critical 注册关键组件
func (a *Aggregator) Critical(c Checker) { a.add(c, true) }

// Optional 注册可选组件
func (a *Aggregator) Optional(c Checker) { a.add(c, false) }

func (a *Aggregator) add(c Checker, critical bool) {
	if c == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{checker: c, critical: critical})
}

// CheckAll 并发执行全部检查
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	entries := append([]entry(nil), a.entries...)
	a.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(entries))
		g       errgroup.Group
	)
	for _, e := range entries {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			res := e.checker.Check(cctx)
			res.Critical = e.critical

			mu.Lock()
			results[e.checker.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall 汇总整体状态
func Overall(results map[string]CheckResult) Status {
	overall := StatusHealthy
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy && res.Critical:
			return StatusUnhealthy
		case res.Status != StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall
}

// Ready 降级仍视为就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return Overall(a.CheckAll(ctx)) != StatusUnhealthy
}
