package health

import "sync/atomic"

// Readiness 就绪状态聚合（读写器、存储）
type Readiness struct {
	readerReady  atomic.Bool
	storageReady atomic.Bool
}

// New 创建就绪状态；未启用存储时应调用 SetStorageReady(true)
func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetReaderReady(v bool)  { r.readerReady.Store(v) }
func (r *Readiness) SetStorageReady(v bool) { r.storageReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.readerReady.Load() && r.storageReady.Load()
}
