package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 读写器网关指标
type AppMetrics struct {
	SerialBytesReceived prometheus.Counter
	FramesTotal         *prometheus.CounterVec   // labels: type=response|notice|command
	FrameErrorsTotal    *prometheus.CounterVec   // labels: kind
	CommandTotal        *prometheus.CounterVec   // labels: cmd, result
	CommandDuration     *prometheus.HistogramVec // labels: cmd
	TagsReadTotal       prometheus.Counter
	TagsUniqueTotal     prometheus.Counter
	StreamingGauge      prometheus.Gauge
	SinkErrorsTotal     *prometheus.CounterVec // labels: sink
	WSClientsGauge      prometheus.Gauge
	RateLimitedTotal    prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		SerialBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reader_bytes_received_total",
			Help: "Total bytes received from the reader transport.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_frames_total",
			Help: "Decoded R200 frames by frame type.",
		}, []string{"type"}),
		FrameErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_frame_errors_total",
			Help: "Frame decode failures that triggered resynchronization.",
		}, []string{"kind"}),
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_commands_total",
			Help: "Reader commands by command and result.",
		}, []string{"cmd", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reader_command_duration_seconds",
			Help:    "Round trip time of reader commands.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"cmd"}),
		TagsReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reader_tags_read_total",
			Help: "Total tag observations decoded.",
		}),
		TagsUniqueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reader_tags_unique_total",
			Help: "Tag observations left after de-duplication.",
		}),
		StreamingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reader_streaming",
			Help: "1 while continuous inventory is running.",
		}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_sink_errors_total",
			Help: "Observation sink failures by sink.",
		}, []string{"sink"}),
		WSClientsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Connected live feed websocket clients.",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "HTTP requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		m.SerialBytesReceived, m.FramesTotal, m.FrameErrorsTotal, m.CommandTotal, m.CommandDuration,
		m.TagsReadTotal, m.TagsUniqueTotal, m.StreamingGauge, m.SinkErrorsTotal, m.WSClientsGauge,
		m.RateLimitedTotal,
	)
	return m
}
