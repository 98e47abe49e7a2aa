package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/connector"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	"github.com/taoyao-code/rfid-gateway/internal/simulator"
	"github.com/taoyao-code/rfid-gateway/internal/transport"
)

const (
	// simRSSI 模拟标签的信号强度（-56 dBm）
	simRSSI         = 0xC8
	defaultSimRound = 100 * time.Millisecond
)

// OpenTransport 按配置打开传输端点：serial | tcp | sim
func OpenTransport(cfg cfgpkg.ReaderConfig, log *zap.Logger) (transport.Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case "serial":
		log.Info("opening serial port", zap.String("port", cfg.Serial.Port), zap.Int("baud", cfg.Serial.Baud))
		return transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
	case "tcp":
		log.Info("dialing serial bridge", zap.String("addr", cfg.TCP.Addr))
		return transport.DialTCP(cfg.TCP.Addr, cfg.TCP.DialTimeout)
	case "sim", "":
		tags, err := SimTags(cfg.Sim.Tags)
		if err != nil {
			return nil, err
		}
		interval := cfg.Sim.RoundInterval
		if interval <= 0 {
			interval = defaultSimRound
		}
		log.Warn("using built-in module simulator", zap.Int("tags", len(tags)))
		return simulator.New(
			simulator.WithTags(tags...),
			simulator.WithRoundInterval(interval),
			simulator.WithEchoSetPower(),
		), nil
	default:
		return nil, fmt.Errorf("unknown reader transport %q", cfg.Transport)
	}
}

// SimTags 把十六进制 EPC 转为模拟器标签，PC 按 EPC 字数生成
func SimTags(epcs []string) ([]r200.TagObservation, error) {
	tags := make([]r200.TagObservation, 0, len(epcs))
	for _, s := range epcs {
		epc, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("sim tag %q: %w", s, err)
		}
		if len(epc) == 0 || len(epc)%2 != 0 || len(epc) > 62 {
			return nil, fmt.Errorf("sim tag %q: epc must be a non-empty whole number of words", s)
		}
		tags = append(tags, r200.TagObservation{
			RSSI:   simRSSI,
			PC:     uint16(len(epc)/2) << 11,
			EPC:    epc,
			HasCRC: true,
		})
	}
	return tags, nil
}

// NewConnector 创建连接器；加载自定义信道表失败时沿用默认值
func NewConnector(cfg cfgpkg.ReaderConfig, t transport.Transport, m *metrics.AppMetrics, log *zap.Logger) *connector.Connector {
	opts := []connector.Option{
		connector.WithLogger(log.Named("connector")),
		connector.WithMetrics(m),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, connector.WithTimeout(cfg.Timeout))
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, connector.WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.IdleWindow > 0 {
		opts = append(opts, connector.WithIdleWindow(cfg.IdleWindow))
	}
	if cfg.MaxPending > 0 {
		opts = append(opts, connector.WithMaxPending(cfg.MaxPending))
	}
	if cfg.ChannelPlanPath != "" {
		if plan, err := r200.LoadChannelPlan(cfg.ChannelPlanPath); err == nil {
			opts = append(opts, connector.WithChannelPlan(plan))
			log.Info("channel plan loaded", zap.String("path", cfg.ChannelPlanPath))
		} else {
			log.Warn("load channel plan failed, using defaults", zap.Error(err))
		}
	}
	return connector.Open(t, opts...)
}

// StopStalePolling 下发一次停止轮询，清理上次进程退出时模块遗留的多次轮询
func StopStalePolling(ctx context.Context, c *connector.Connector, log *zap.Logger) {
	if err := c.StopContinuousPolling(ctx); err != nil {
		log.Warn("stop stale polling failed", zap.Error(err))
		return
	}
	log.Debug("stale polling cleared")
}
