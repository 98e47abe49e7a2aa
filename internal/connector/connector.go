package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/logging"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	"github.com/taoyao-code/rfid-gateway/internal/transport"
)

// State 连接器状态
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ModuleInfo 模块信息汇总
type ModuleInfo struct {
	Hardware     string      `json:"hardware"`
	Software     string      `json:"software"`
	Manufacturer string      `json:"manufacturer"`
	Region       r200.Region `json:"region"`
}

func (m ModuleInfo) String() string {
	return fmt.Sprintf("Hardware: %s - Software: %s - Manufacturer: %s", m.Hardware, m.Software, m.Manufacturer)
}

// Connector 独占一个传输端点，完成指令编码、应答匹配与连续轮询。
// 非并发安全，同一时刻只能有一个调用方。
type Connector struct {
	t    transport.Transport
	dec  *r200.StreamDecoder
	opts options
	log  *zap.Logger

	state    State
	awaiting byte
	pending  []*r200.Frame
	stream   *Stream
	closed   bool
}

// Open 在已打开的传输端点上创建连接器
func Open(t transport.Transport, opts ...Option) *Connector {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.maxPending <= 0 {
		o.maxPending = DefaultMaxPending
	}
	c := &Connector{
		t:    t,
		dec:  r200.NewStreamDecoder(0),
		opts: o,
		log:  o.logger.Named("r200"),
	}
	c.dec.OnResync = func(err error, skipped int) {
		c.log.Warn("frame resync", zap.Error(err), zap.Int("skipped", skipped))
		if c.opts.metrics != nil {
			c.opts.metrics.FrameErrorsTotal.WithLabelValues(errorKind(err)).Inc()
		}
	}
	return c
}

// State 当前状态
func (c *Connector) State() State {
	return c.state
}

// SendCommand 发送指令并等待其应答。
// 等待期间收到的其他帧按到达顺序进入异步队列（见 Pending）。
func (c *Connector) SendCommand(ctx context.Context, cmd r200.Command) (r200.Response, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.state == StateStreaming {
		return nil, ErrStreaming
	}
	f, rest, err := c.exchange(ctx, cmd, cmd.Answers, c.enqueue)
	c.enqueue(rest...)
	if err != nil {
		return nil, err
	}
	return c.decode(cmd, f)
}

func (c *Connector) decode(cmd r200.Command, f *r200.Frame) (r200.Response, error) {
	resp, err := r200.Decode(f)
	if err != nil {
		c.observe(cmd, "decode_error")
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if me, ok := resp.(*r200.ModuleError); ok {
		me.Command = cmd.Code
		c.observe(cmd, "module_error")
		return nil, me
	}
	c.observe(cmd, "ok")
	return resp, nil
}

// exchange 写指令并读到第一条满足 match 的帧为止。
// stray 处理应答之前到达的无关帧；rest 为与应答同批解出、位于其后的帧。
func (c *Connector) exchange(ctx context.Context, cmd r200.Command, match func(*r200.Frame) bool, stray func(...*r200.Frame)) (*r200.Frame, []*r200.Frame, error) {
	start := time.Now()
	if err := c.send(cmd); err != nil {
		c.observe(cmd, "transport_error")
		return nil, nil, err
	}
	prev := c.state
	c.state, c.awaiting = StateAwaitingResponse, cmd.Code
	defer func() {
		if c.state == StateAwaitingResponse {
			c.state = prev
		}
		c.awaiting = 0
		if c.opts.metrics != nil {
			c.opts.metrics.CommandDuration.WithLabelValues(r200.CommandName(cmd.Code)).Observe(time.Since(start).Seconds())
		}
	}()

	deadline := start.Add(c.opts.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !time.Now().Before(deadline) {
			// 超时后残留的半帧不再可信
			c.dec.Reset()
			c.observe(cmd, "timeout")
			return nil, nil, &TimeoutError{Command: cmd.String(), After: c.opts.timeout}
		}
		frames, err := c.fill(ctx, deadline)
		for i, f := range frames {
			if match(f) {
				return f, frames[i+1:], nil
			}
			stray(f)
		}
		if err != nil {
			c.observe(cmd, failureResult(err))
			return nil, nil, err
		}
	}
}

// failureResult 指令失败结果标签：传输失败与解码失败分开统计
func failureResult(err error) string {
	if errors.Is(err, r200.ErrResyncFailed) {
		return "decode_error"
	}
	return "transport_error"
}

// send 编码并写出
func (c *Connector) send(cmd r200.Command) error {
	raw, err := cmd.Encode()
	if err != nil {
		return err
	}
	c.log.Debug("tx", zap.String("cmd", cmd.String()), logging.Frame("hex", raw))
	if err := c.t.Write(raw); err != nil {
		c.dec.Reset()
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// fill 执行一次有界读取并返回解出的帧
func (c *Connector) fill(ctx context.Context, deadline time.Time) ([]*r200.Frame, error) {
	wait := min(c.opts.readTimeout, time.Until(deadline))
	if d, ok := ctx.Deadline(); ok {
		wait = min(wait, time.Until(d))
	}
	if wait <= 0 {
		return nil, nil
	}
	b, err := c.t.Read(readChunk, wait)
	if err != nil {
		c.dec.Reset()
		return nil, &TransportError{Op: "read", Err: err}
	}
	if len(b) == 0 {
		return nil, nil
	}
	c.log.Debug("rx", logging.Frame("hex", b))
	m := c.opts.metrics
	if m != nil {
		m.SerialBytesReceived.Add(float64(len(b)))
	}
	frames, err := c.dec.Feed(b)
	if m != nil {
		for _, f := range frames {
			m.FramesTotal.WithLabelValues(f.Type.String()).Inc()
		}
	}
	if err != nil {
		return frames, fmt.Errorf("decode: %w", err)
	}
	return frames, nil
}

// enqueue 记录不属于当前等待指令的帧
func (c *Connector) enqueue(frames ...*r200.Frame) {
	for _, f := range frames {
		if len(c.pending) > 0 && len(c.pending) >= c.opts.maxPending {
			c.log.Warn("pending queue full, dropping oldest frame", zap.Stringer("frame", c.pending[0]))
			c.pending = c.pending[1:]
		}
		c.pending = append(c.pending, f)
	}
}

// Pending 取出并清空异步帧队列（到达顺序）
func (c *Connector) Pending() []*r200.Frame {
	out := c.pending
	c.pending = nil
	return out
}

func (c *Connector) observe(cmd r200.Command, result string) {
	if result != "ok" {
		c.log.Debug("command failed", zap.String("cmd", cmd.String()), zap.String("result", result))
	}
	if c.opts.metrics != nil {
		c.opts.metrics.CommandTotal.WithLabelValues(r200.CommandName(cmd.Code), result).Inc()
	}
}

// GetModuleInfo 依次查询硬件版本、软件版本、制造商与工作地区
func (c *Connector) GetModuleInfo(ctx context.Context) (ModuleInfo, error) {
	var info ModuleInfo
	for _, kind := range []r200.InfoKind{r200.InfoHardware, r200.InfoSoftware, r200.InfoManufacturer} {
		resp, err := c.SendCommand(ctx, r200.GetModuleInfo(kind))
		if err != nil {
			return info, err
		}
		mi, ok := resp.(r200.ModuleInfo)
		if !ok {
			return info, &UnexpectedResponseError{Command: r200.GetModuleInfo(kind).String(), Response: resp}
		}
		switch kind {
		case r200.InfoHardware:
			info.Hardware = mi.Text
		case r200.InfoSoftware:
			info.Software = mi.Text
		case r200.InfoManufacturer:
			info.Manufacturer = mi.Text
		}
	}
	region, err := c.GetRegion(ctx)
	if err != nil {
		return info, err
	}
	info.Region = region
	return info, nil
}

// GetPower 查询发射功率
func (c *Connector) GetPower(ctx context.Context) (r200.Power, error) {
	cmd := r200.GetPower()
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if r, ok := resp.(r200.PowerReading); ok {
		return r.Value, nil
	}
	return 0, &UnexpectedResponseError{Command: cmd.String(), Response: resp}
}

// SetPower 设置发射功率，返回模块实际生效的值（模块只回状态时为请求值）
func (c *Connector) SetPower(ctx context.Context, p r200.Power) (r200.Power, error) {
	cmd := r200.SetPower(p)
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return 0, err
	}
	switch r := resp.(type) {
	case r200.PowerReading:
		return r.Value, nil
	case r200.Ack:
		if !r.OK() {
			return 0, &r200.ModuleError{Code: r.Status, Command: cmd.Code}
		}
		return p, nil
	}
	return 0, &UnexpectedResponseError{Command: cmd.String(), Response: resp}
}

// GetChannel 查询工作信道索引
func (c *Connector) GetChannel(ctx context.Context) (uint8, error) {
	cmd := r200.GetChannel()
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if r, ok := resp.(r200.ChannelReading); ok {
		return r.Index, nil
	}
	return 0, &UnexpectedResponseError{Command: cmd.String(), Response: resp}
}

// SetChannel 设置工作信道索引
func (c *Connector) SetChannel(ctx context.Context, index uint8) error {
	return c.expectAck(ctx, r200.SetChannel(index))
}

// GetRegion 查询工作地区
func (c *Connector) GetRegion(ctx context.Context) (r200.Region, error) {
	cmd := r200.GetRegion()
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if r, ok := resp.(r200.RegionReading); ok {
		return r.Region, nil
	}
	return 0, &UnexpectedResponseError{Command: cmd.String(), Response: resp}
}

// SetRegion 设置工作地区
func (c *Connector) SetRegion(ctx context.Context, r r200.Region) error {
	return c.expectAck(ctx, r200.SetRegion(r))
}

// WorkingFrequency 按当前地区与信道换算中心频率（MHz）
func (c *Connector) WorkingFrequency(ctx context.Context) (float64, error) {
	region, err := c.GetRegion(ctx)
	if err != nil {
		return 0, err
	}
	ch, err := c.GetChannel(ctx)
	if err != nil {
		return 0, err
	}
	return c.opts.plan.Frequency(region, ch)
}

func (c *Connector) expectAck(ctx context.Context, cmd r200.Command) error {
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return err
	}
	ack, ok := resp.(r200.Ack)
	if !ok {
		return &UnexpectedResponseError{Command: cmd.String(), Response: resp}
	}
	if !ack.OK() {
		return &r200.ModuleError{Code: ack.Status, Command: cmd.Code}
	}
	return nil
}

// SinglePolling 单次轮询。
// 收到“未发现标签”错误帧、或最后一条通知后静默 idleWindow、或总超时后结束。
func (c *Connector) SinglePolling(ctx context.Context) ([]r200.TagObservation, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.state == StateStreaming {
		return nil, ErrStreaming
	}
	cmd := r200.SinglePoll()
	start := time.Now()
	if err := c.send(cmd); err != nil {
		c.observe(cmd, "transport_error")
		return nil, err
	}
	c.state, c.awaiting = StateAwaitingResponse, cmd.Code
	defer func() { c.state, c.awaiting = StateIdle, 0 }()

	tags := make([]r200.TagObservation, 0)
	deadline := start.Add(c.opts.timeout)
	var idleUntil time.Time
	seen := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now()
		if seen && !now.Before(idleUntil) {
			break
		}
		if !now.Before(deadline) {
			if !seen {
				// 部分固件无标签时不发任何帧，超时即视为本轮为空
				c.dec.Reset()
				c.log.Debug("single poll ended without frames", zap.Duration("after", c.opts.timeout))
			}
			break
		}
		limit := deadline
		if seen && idleUntil.Before(limit) {
			limit = idleUntil
		}
		frames, err := c.fill(ctx, limit)
		for _, f := range frames {
			switch {
			case isTagReport(f, cmd.Code):
				report, derr := r200.Decode(f)
				if derr != nil {
					c.log.Warn("drop malformed tag report", zap.Error(derr))
					continue
				}
				tags = append(tags, report.(r200.TagReport).Tags...)
				seen = true
				idleUntil = time.Now().Add(c.opts.idleWindow)
			case f.Type == r200.TypeResponse && f.IsError():
				resp, derr := r200.Decode(f)
				if derr != nil {
					return nil, derr
				}
				me := resp.(*r200.ModuleError)
				if me.NoTag() {
					c.observe(cmd, "ok")
					return c.countTags(tags), nil
				}
				me.Command = cmd.Code
				c.observe(cmd, "module_error")
				return nil, me
			default:
				c.enqueue(f)
			}
		}
		if err != nil {
			c.observe(cmd, failureResult(err))
			return nil, err
		}
	}
	c.observe(cmd, "ok")
	return c.countTags(tags), nil
}

func (c *Connector) countTags(tags []r200.TagObservation) []r200.TagObservation {
	if c.opts.metrics != nil {
		c.opts.metrics.TagsReadTotal.Add(float64(len(tags)))
	}
	return tags
}

// isTagReport 标签通知：多数固件以通知帧上报，少数以同码响应帧上报
func isTagReport(f *r200.Frame, cmd byte) bool {
	if f.Command != r200.CmdSinglePoll && f.Command != cmd {
		return false
	}
	return f.Type == r200.TypeNotice || f.Type == r200.TypeResponse
}

func isNoTag(f *r200.Frame) bool {
	return f.IsError() && len(f.Payload) == 1 && f.Payload[0] == r200.ErrCodeNoTag
}

// StartContinuousPolling 开始多次轮询，返回逐条产出标签的流
func (c *Connector) StartContinuousPolling(ctx context.Context, count uint16) (*Stream, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.state == StateStreaming {
		return nil, ErrStreaming
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := r200.MultiPollStart(count)
	if err := c.send(cmd); err != nil {
		c.observe(cmd, "transport_error")
		return nil, err
	}
	c.observe(cmd, "ok")
	c.state = StateStreaming
	c.stream = &Stream{c: c}
	if c.opts.metrics != nil {
		c.opts.metrics.StreamingGauge.Set(1)
	}
	c.log.Info("continuous polling started", zap.Uint16("count", count))
	return c.stream, nil
}

// StopContinuousPolling 停止多次轮询。
// 流立即关闭；应答之后仍在缓冲中的数据一律丢弃。
// 未处于轮询状态时同样下发停止指令，用于清理模块遗留的轮询。
func (c *Connector) StopContinuousPolling(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	c.closeStream()
	c.state = StateIdle

	cmd := r200.MultiPollStop()
	dropped := 0
	discard := func(frames ...*r200.Frame) {
		for _, fr := range frames {
			if isTagReport(fr, r200.CmdMultiPoll) || isNoTag(fr) {
				dropped++
				continue
			}
			c.enqueue(fr)
		}
	}
	match := func(f *r200.Frame) bool {
		return cmd.Answers(f) && !isNoTag(f)
	}
	f, rest, err := c.exchange(ctx, cmd, match, discard)
	discard(rest...)
	if err == nil {
		c.drain(ctx, discard)
	}
	c.dec.Reset()
	if dropped > 0 {
		c.log.Debug("discarded frames after stop", zap.Int("frames", dropped))
	}
	if err != nil {
		return err
	}
	resp, err := c.decode(cmd, f)
	if err != nil {
		return err
	}
	if ack, ok := resp.(r200.Ack); ok && !ack.OK() {
		return &r200.ModuleError{Code: ack.Status, Command: cmd.Code}
	}
	c.log.Info("continuous polling stopped")
	return nil
}

// drain 读空模块在停止应答之后仍在发送的数据，直到静默 idleWindow，最长不超过指令超时
func (c *Connector) drain(ctx context.Context, handle func(...*r200.Frame)) {
	limit := time.Now().Add(c.opts.timeout)
	quietUntil := time.Now().Add(c.opts.idleWindow)
	for time.Now().Before(quietUntil) {
		frames, err := c.fill(ctx, quietUntil)
		if len(frames) > 0 {
			handle(frames...)
			quietUntil = time.Now().Add(c.opts.idleWindow)
			if quietUntil.After(limit) {
				quietUntil = limit
			}
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}

func (c *Connector) closeStream() {
	if c.stream != nil {
		c.stream.closed = true
		c.stream.buf = nil
		c.stream = nil
	}
	if c.opts.metrics != nil {
		c.opts.metrics.StreamingGauge.Set(0)
	}
}

// Close 关闭流与传输端点
func (c *Connector) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeStream()
	c.state = StateIdle
	c.dec.Reset()
	return c.t.Close()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, r200.ErrBadChecksum):
		return "bad_checksum"
	case errors.Is(err, r200.ErrBadMarker):
		return "bad_marker"
	case errors.Is(err, r200.ErrLengthMismatch):
		return "length_mismatch"
	default:
		return "other"
	}
}
