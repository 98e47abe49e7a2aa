package inventory

import (
	"context"
	"sync"
	"time"
)

// Deduper 判断同一标签在窗口内是否已上报过。
// 连接器本身不去重，多次轮询中同一标签每轮都会出现。
type Deduper interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
}

// MemoryDeduper 进程内去重窗口，未启用 Redis 时使用
type MemoryDeduper struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// NewMemoryDeduper 创建内存去重器
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// IsDuplicate 窗口内是否出现过；首次出现时记录
func (d *MemoryDeduper) IsDuplicate(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return true, nil
	}
	d.seen[key] = now
	if len(d.seen) > 4096 {
		d.prune(now)
	}
	return false, nil
}

func (d *MemoryDeduper) prune(now time.Time) {
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}
}

// Len 当前窗口内记录数
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
