package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/connector"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	pgstorage "github.com/taoyao-code/rfid-gateway/internal/storage/pg"
)

var (
	// ErrNotStreaming 当前没有进行中的连续盘点
	ErrNotStreaming = errors.New("inventory: not streaming")
	// ErrStreaming 连续盘点进行中，读写器被占用
	ErrStreaming = connector.ErrStreaming
)

const (
	ModeSingle     = "single"
	ModeContinuous = "continuous"

	stopTimeout = 3 * time.Second
	sinkTimeout = 2 * time.Second
)

// Options 服务依赖，除 Connector 外均可为空
type Options struct {
	ReaderID  string
	PollCount uint16
	Sessions  SessionStore
	Sinks     []Sink
	Deduper   Deduper
	Settings  SettingsRecorder
	Metrics   *metrics.AppMetrics
	Logger    *zap.Logger
}

// Status 服务状态快照
type Status struct {
	ReaderID  string     `json:"readerId"`
	State     string     `json:"state"`
	Streaming bool       `json:"streaming"`
	SessionID *uuid.UUID `json:"sessionId,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	TagsSeen  int64      `json:"tagsSeen"`
	LastError string     `json:"lastError,omitempty"`
}

// Result 单次盘点结果
type Result struct {
	SessionID    uuid.UUID     `json:"sessionId"`
	Observations []Observation `json:"observations"`
}

// run 一次连续盘点
type run struct {
	id        uuid.UUID
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	tags      atomic.Int64
	err       error
}

// Service 把一个 Connector 暴露给多个调用方。
// mu 串行化对连接器的访问；连续盘点期间由后台 goroutine 独占连接器直到停止。
type Service struct {
	mu   sync.Mutex
	conn *connector.Connector

	opts Options
	log  *zap.Logger

	stateMu sync.Mutex
	current *run
	lastErr string
}

// NewService 创建盘点服务
func NewService(conn *connector.Connector, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReaderID == "" {
		opts.ReaderID = uuid.NewString()
	}
	if opts.PollCount == 0 {
		opts.PollCount = 10000
	}
	return &Service{
		conn: conn,
		opts: opts,
		log:  opts.Logger.Named("inventory").With(zap.String("reader_id", opts.ReaderID)),
	}
}

// ReaderID 读写器实例 ID
func (s *Service) ReaderID() string {
	return s.opts.ReaderID
}

// withConn 在非连续盘点状态下独占连接器执行 fn。
// 加锁顺序固定为 stateMu -> mu。
func (s *Service) withConn(fn func(c *connector.Connector) error) error {
	s.stateMu.Lock()
	if s.current != nil {
		s.stateMu.Unlock()
		return ErrStreaming
	}
	s.mu.Lock()
	s.stateMu.Unlock()

	err := fn(s.conn)
	s.mu.Unlock()
	if err != nil {
		s.setLastErr(err)
	}
	return err
}

// ModuleInfo 模块信息
func (s *Service) ModuleInfo(ctx context.Context) (connector.ModuleInfo, error) {
	var info connector.ModuleInfo
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		info, err = c.GetModuleInfo(ctx)
		return err
	})
	return info, err
}

// Power 查询发射功率
func (s *Service) Power(ctx context.Context) (r200.Power, error) {
	var p r200.Power
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		p, err = c.GetPower(ctx)
		return err
	})
	return p, err
}

// SetPower 设置发射功率并记录变更
func (s *Service) SetPower(ctx context.Context, p r200.Power) (r200.Power, error) {
	var applied r200.Power
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		applied, err = c.SetPower(ctx, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("power changed", zap.Stringer("power", applied))
	if s.opts.Settings != nil {
		if err := s.opts.Settings.RecordPower(ctx, s.opts.ReaderID, uint16(applied)); err != nil {
			s.log.Warn("record power failed", zap.Error(err))
		}
	}
	return applied, nil
}

// Channel 查询信道索引
func (s *Service) Channel(ctx context.Context) (uint8, error) {
	var ch uint8
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		ch, err = c.GetChannel(ctx)
		return err
	})
	return ch, err
}

// SetChannel 设置信道索引并记录变更
func (s *Service) SetChannel(ctx context.Context, index uint8) error {
	if err := s.withConn(func(c *connector.Connector) error { return c.SetChannel(ctx, index) }); err != nil {
		return err
	}
	s.log.Info("channel changed", zap.Uint8("channel", index))
	if s.opts.Settings != nil {
		if err := s.opts.Settings.RecordChannel(ctx, s.opts.ReaderID, index); err != nil {
			s.log.Warn("record channel failed", zap.Error(err))
		}
	}
	return nil
}

// Region 查询工作地区
func (s *Service) Region(ctx context.Context) (r200.Region, error) {
	var r r200.Region
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		r, err = c.GetRegion(ctx)
		return err
	})
	return r, err
}

// SetRegion 设置工作地区并记录变更
func (s *Service) SetRegion(ctx context.Context, r r200.Region) error {
	if err := s.withConn(func(c *connector.Connector) error { return c.SetRegion(ctx, r) }); err != nil {
		return err
	}
	s.log.Info("region changed", zap.Stringer("region", r))
	if s.opts.Settings != nil {
		if err := s.opts.Settings.RecordRegion(ctx, s.opts.ReaderID, uint8(r)); err != nil {
			s.log.Warn("record region failed", zap.Error(err))
		}
	}
	return nil
}

// Frequency 当前工作频率（MHz）
func (s *Service) Frequency(ctx context.Context) (float64, error) {
	var mhz float64
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		mhz, err = c.WorkingFrequency(ctx)
		return err
	})
	return mhz, err
}

// Inventory 执行一次单次轮询，结果分发给下游
func (s *Service) Inventory(ctx context.Context) (Result, error) {
	var tags []r200.TagObservation
	err := s.withConn(func(c *connector.Connector) error {
		var err error
		tags, err = c.SinglePolling(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	res := Result{SessionID: uuid.New(), Observations: make([]Observation, 0, len(tags))}
	for _, t := range tags {
		res.Observations = append(res.Observations, newObservation(res.SessionID, s.opts.ReaderID, t, now))
	}
	s.createSession(ctx, res.SessionID, ModeSingle, 1, now)
	s.dispatch(ctx, res.Observations)
	s.finishSession(ctx, res.SessionID, int64(len(tags)), "")
	return res, nil
}

// StartStreaming 开始连续盘点；count 为 0 时使用配置的轮询次数
func (s *Service) StartStreaming(ctx context.Context, count uint16) (uuid.UUID, error) {
	if count == 0 {
		count = s.opts.PollCount
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.current != nil {
		return uuid.Nil, ErrStreaming
	}

	s.mu.Lock()
	stream, err := s.conn.StartContinuousPolling(ctx, count)
	if err != nil {
		s.mu.Unlock()
		s.lastErr = err.Error()
		return uuid.Nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{id: uuid.New(), startedAt: time.Now(), cancel: cancel, done: make(chan struct{})}
	s.current = r
	s.createSession(ctx, r.id, ModeContinuous, int(count), r.startedAt)
	s.log.Info("streaming started", zap.Stringer("session_id", r.id), zap.Uint16("count", count))

	// 连接器锁交给后台 goroutine，停止时释放
	go s.consume(runCtx, r, stream)
	return r.id, nil
}

// consume 持有连接器直到 ctx 取消或流出错
func (s *Service) consume(ctx context.Context, r *run, stream *connector.Stream) {
	defer close(r.done)

	for tag, err := range stream.All(ctx) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.err = err
				s.log.Error("stream failed", zap.Stringer("session_id", r.id), zap.Error(err))
			}
			break
		}
		r.tags.Add(1)
		s.dispatch(ctx, []Observation{newObservation(r.id, s.opts.ReaderID, tag, time.Now())})
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.conn.StopContinuousPolling(stopCtx); err != nil {
		s.log.Warn("stop multi poll failed", zap.Error(err))
		if r.err == nil {
			r.err = err
		}
	}
	s.mu.Unlock()

	reason := "stopped"
	if r.err != nil {
		reason = r.err.Error()
	}
	s.finishSession(stopCtx, r.id, r.tags.Load(), reason)

	s.stateMu.Lock()
	if s.current == r {
		s.current = nil
	}
	if r.err != nil {
		s.lastErr = r.err.Error()
	}
	s.stateMu.Unlock()
	s.log.Info("streaming stopped", zap.Stringer("session_id", r.id), zap.Int64("tags", r.tags.Load()), zap.String("reason", reason))
}

// StopStreaming 停止连续盘点并等待后台 goroutine 退出
func (s *Service) StopStreaming(ctx context.Context) (Status, error) {
	s.stateMu.Lock()
	r := s.current
	s.stateMu.Unlock()
	if r == nil {
		return s.Status(), ErrNotStreaming
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}

	st := s.Status()
	id, started := r.id, r.startedAt
	st.SessionID, st.StartedAt, st.TagsSeen = &id, &started, r.tags.Load()
	return st, r.err
}

// Streaming 是否处于连续盘点
func (s *Service) Streaming() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.current != nil
}

// Status 服务状态
func (s *Service) Status() Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st := Status{ReaderID: s.opts.ReaderID, State: connector.StateIdle.String(), LastError: s.lastErr}
	if r := s.current; r != nil {
		id, started := r.id, r.startedAt
		st.State = connector.StateStreaming.String()
		st.Streaming = true
		st.SessionID = &id
		st.StartedAt = &started
		st.TagsSeen = r.tags.Load()
	}
	return st
}

// Ping 探测模块是否应答；连续盘点中视为在线
func (s *Service) Ping(ctx context.Context) error {
	if s.Streaming() {
		return nil
	}
	_, err := s.Power(ctx)
	return err
}

// Close 停止盘点并关闭连接器
func (s *Service) Close(ctx context.Context) error {
	if _, err := s.StopStreaming(ctx); err != nil && !errors.Is(err, ErrNotStreaming) {
		s.log.Warn("stop streaming on close", zap.Error(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// dispatch 去重后写入全部下游
func (s *Service) dispatch(ctx context.Context, obs []Observation) {
	out := obs[:0:0]
	for _, o := range obs {
		if s.opts.Deduper != nil {
			dup, err := s.opts.Deduper.IsDuplicate(ctx, s.opts.ReaderID+":"+o.EPC)
			if err != nil {
				s.log.Debug("dedup unavailable, passing through", zap.Error(err))
			}
			if dup {
				continue
			}
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.TagsUniqueTotal.Add(float64(len(out)))
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, sink := range s.opts.Sinks {
		if err := sink.Write(wctx, out); err != nil {
			if errors.Is(err, ErrSinkOpen) {
				s.log.Debug("sink skipped", zap.String("sink", sink.Name()), zap.Int("count", len(out)))
				continue
			}
			s.log.Warn("sink write failed", zap.String("sink", sink.Name()), zap.Int("count", len(out)), zap.Error(err))
			if s.opts.Metrics != nil {
				s.opts.Metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			}
		}
	}
}

func (s *Service) createSession(ctx context.Context, id uuid.UUID, mode string, count int, at time.Time) {
	if s.opts.Sessions == nil {
		return
	}
	err := s.opts.Sessions.CreateSession(ctx, pgstorage.Session{
		ID:        id,
		ReaderID:  s.opts.ReaderID,
		Mode:      mode,
		PollCount: count,
		StartedAt: at,
	})
	if err != nil {
		s.log.Warn("create session failed", zap.Stringer("session_id", id), zap.Error(err))
	}
}

func (s *Service) finishSession(ctx context.Context, id uuid.UUID, tags int64, reason string) {
	if s.opts.Sessions == nil {
		return
	}
	if err := s.opts.Sessions.FinishSession(ctx, id, time.Now(), tags, reason); err != nil {
		s.log.Warn("finish session failed", zap.Stringer("session_id", id), zap.Error(err))
	}
}

func (s *Service) setLastErr(err error) {
	if errors.Is(err, ErrStreaming) {
		return
	}
	s.stateMu.Lock()
	s.lastErr = err.Error()
	s.stateMu.Unlock()
}
