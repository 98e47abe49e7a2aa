package connector

import (
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/metrics"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
)

const (
	DefaultTimeout     = time.Second
	DefaultReadTimeout = 50 * time.Millisecond
	DefaultIdleWindow  = 150 * time.Millisecond
	DefaultMaxPending  = 256
	readChunk          = 512
)

type options struct {
	timeout     time.Duration
	readTimeout time.Duration
	idleWindow  time.Duration
	maxPending  int
	logger      *zap.Logger
	metrics     *metrics.AppMetrics
	plan        *r200.ChannelPlan
}

// Option 连接器选项
type Option func(*options)

// WithTimeout 单条指令等待应答的总时长
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithReadTimeout 单次传输读取超时
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithIdleWindow 单次轮询在最后一条通知后等待的静默时长
func WithIdleWindow(d time.Duration) Option {
	return func(o *options) { o.idleWindow = d }
}

// WithMaxPending 异步帧队列上限，超出丢弃最早的帧
func WithMaxPending(n int) Option {
	return func(o *options) { o.maxPending = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.AppMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithChannelPlan 信道换算参数
func WithChannelPlan(p *r200.ChannelPlan) Option {
	return func(o *options) { o.plan = p }
}

func defaultOptions() options {
	return options{
		timeout:     DefaultTimeout,
		readTimeout: DefaultReadTimeout,
		idleWindow:  DefaultIdleWindow,
		maxPending:  DefaultMaxPending,
		logger:      zap.NewNop(),
		plan:        r200.DefaultChannelPlan(),
	}
}
