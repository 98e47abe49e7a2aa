package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSinkOpen 下游处于熔断期，本批事件被跳过
var ErrSinkOpen = errors.New("inventory: sink circuit open")

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常写入
	BreakerOpen                         // 跳过写入
	BreakerHalfOpen                     // 冷却结束，放行一批试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSink 为下游加熔断：连续失败 threshold 次后在 cooldown 内直接跳过，
// 避免数据库或 Redis 故障时每批标签都等满写超时。
type BreakerSink struct {
	sink      Sink
	threshold int
	cooldown  time.Duration
	log       *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	trips    int64
}

// NewBreakerSink 包装下游；threshold<=0 取 5，cooldown<=0 取 30s
func NewBreakerSink(sink Sink, threshold int, cooldown time.Duration, logger *zap.Logger) *BreakerSink {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerSink{
		sink:      sink,
		threshold: threshold,
		cooldown:  cooldown,
		log:       logger.Named("breaker").With(zap.String("sink", sink.Name())),
		now:       time.Now,
	}
}

func (b *BreakerSink) Name() string { return b.sink.Name() }

// Write 熔断期内返回 ErrSinkOpen，不调用下游
func (b *BreakerSink) Write(ctx context.Context, obs []Observation) error {
	if !b.allow() {
		return ErrSinkOpen
	}
	err := b.sink.Write(ctx, obs)
	b.record(err)
	return err
}

func (b *BreakerSink) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(BreakerHalfOpen)
		b.probing = true
		return true
	case BreakerHalfOpen:
		// 同一时刻只放行一批试探
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *BreakerSink) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.failures = 0
		b.transition(BreakerClosed)
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.trips++
		}
		b.transition(BreakerOpen)
	}
}

func (b *BreakerSink) transition(to BreakerState) {
	if b.state == to {
		return
	}
	b.log.Info("sink breaker state changed", zap.Stringer("from", b.state), zap.Stringer("to", to), zap.Int("failures", b.failures))
	b.state = to
}

// State 当前状态
func (b *BreakerSink) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Trips 累计熔断次数
func (b *BreakerSink) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}
