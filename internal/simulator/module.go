package simulator

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	"github.com/taoyao-code/rfid-gateway/internal/transport"
)

// Module R200 模块行为模拟器，实现 transport.Transport。
// 仅模拟串口指令应答与标签上报，不做射频仿真。
type Module struct {
	mu     sync.Mutex
	notify chan struct{}
	dec    *r200.StreamDecoder
	out    []byte
	closed bool

	hardware     string
	software     string
	manufacturer string
	power        r200.Power
	channel      uint8
	region       r200.Region
	tags         []r200.TagObservation

	streaming     bool
	remaining     int
	roundInterval time.Duration
	nextRound     time.Time

	// 故障注入
	echoSetPower   bool
	chunkSize      int
	muted          bool
	corruptNext    bool
	staleAfterStop int
	readErr        error

	received []byte
}

// Option 模拟器选项
type Option func(*Module)

// WithTags 设置天线场内的标签
func WithTags(tags ...r200.TagObservation) Option {
	return func(m *Module) { m.tags = tags }
}

// WithEchoSetPower 设置功率时回显实际值（否则仅返回状态字节）
func WithEchoSetPower() Option {
	return func(m *Module) { m.echoSetPower = true }
}

// WithChunkSize 每次 Read 最多返回 n 字节，模拟半包
func WithChunkSize(n int) Option {
	return func(m *Module) { m.chunkSize = n }
}

// WithRoundInterval 多次轮询每轮间隔
func WithRoundInterval(d time.Duration) Option {
	return func(m *Module) { m.roundInterval = d }
}

// WithStaleAfterStop 停止轮询应答之后仍追加 n 条标签通知（模拟在途数据）
func WithStaleAfterStop(n int) Option {
	return func(m *Module) { m.staleAfterStop = n }
}

// WithInfo 模块信息
func WithInfo(hardware, software, manufacturer string) Option {
	return func(m *Module) {
		m.hardware, m.software, m.manufacturer = hardware, software, manufacturer
	}
}

// New 创建模拟器
func New(opts ...Option) *Module {
	m := &Module{
		notify:       make(chan struct{}, 1),
		dec:          r200.NewStreamDecoder(0),
		hardware:     "M100 26dBm V1.0",
		software:     "V2.3.5",
		manufacturer: "MagicRF",
		power:        2600,
		channel:      0,
		region:       r200.RegionEU,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var _ transport.Transport = (*Module)(nil)

// Write 接收上位机指令
func (m *Module) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return transport.ErrClosed
	}
	m.received = append(m.received, p...)
	frames, _ := m.dec.Feed(p)
	for _, f := range frames {
		if f.Type != r200.TypeCommand {
			continue
		}
		m.handle(f)
	}
	m.wake()
	return nil
}

// Read 读取模块输出；无数据时最多等待 timeout
func (m *Module) Read(max int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, transport.ErrClosed
		}
		if m.readErr != nil {
			err := m.readErr
			m.readErr = nil
			m.mu.Unlock()
			return nil, err
		}
		now := time.Now()
		if len(m.out) == 0 && m.streaming && !now.Before(m.nextRound) {
			m.round(now)
		}
		if len(m.out) > 0 {
			n := min(max, len(m.out))
			if m.chunkSize > 0 {
				n = min(n, m.chunkSize)
			}
			b := append([]byte(nil), m.out[:n]...)
			m.out = m.out[n:]
			m.mu.Unlock()
			return b, nil
		}
		wait := time.Until(deadline)
		if m.streaming {
			wait = min(wait, time.Until(m.nextRound))
		}
		m.mu.Unlock()
		if wait <= 0 {
			if time.Now().After(deadline) {
				return nil, nil
			}
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-m.notify:
		case <-t.C:
		}
		t.Stop()
	}
}

// Close 关闭
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.wake()
	return nil
}

func (m *Module) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Module) handle(f *r200.Frame) {
	switch f.Command {
	case r200.CmdModuleInfo:
		if len(f.Payload) != 1 {
			m.fail(r200.ErrCodeCommand)
			return
		}
		var text string
		switch r200.InfoKind(f.Payload[0]) {
		case r200.InfoHardware:
			text = m.hardware
		case r200.InfoSoftware:
			text = m.software
		case r200.InfoManufacturer:
			text = m.manufacturer
		default:
			m.fail(r200.ErrCodeCommand)
			return
		}
		m.respond(r200.CmdModuleInfo, append([]byte{f.Payload[0]}, text...))

	case r200.CmdGetPower:
		m.respond(r200.CmdGetPower, be16(uint16(m.power)))

	case r200.CmdSetPower:
		if len(f.Payload) != 2 {
			m.fail(r200.ErrCodeCommand)
			return
		}
		m.power = r200.Power(binary.BigEndian.Uint16(f.Payload))
		if m.echoSetPower {
			m.respond(r200.CmdSetPower, be16(uint16(m.power)))
			return
		}
		m.respond(r200.CmdSetPower, []byte{0x00})

	case r200.CmdGetChannel:
		m.respond(r200.CmdGetChannel, []byte{m.channel})

	case r200.CmdSetChannel:
		if len(f.Payload) != 1 {
			m.fail(r200.ErrCodeCommand)
			return
		}
		m.channel = f.Payload[0]
		m.respond(r200.CmdSetChannel, []byte{0x00})

	case r200.CmdGetRegion:
		m.respond(r200.CmdGetRegion, []byte{byte(m.region)})

	case r200.CmdSetRegion:
		if len(f.Payload) != 1 {
			m.fail(r200.ErrCodeCommand)
			return
		}
		m.region = r200.Region(f.Payload[0])
		m.respond(r200.CmdSetRegion, []byte{0x00})

	case r200.CmdSinglePoll:
		if len(m.tags) == 0 {
			m.fail(r200.ErrCodeNoTag)
			return
		}
		for _, t := range m.tags {
			m.emit(r200.TypeNotice, r200.CmdSinglePoll, EncodeTag(t))
		}

	case r200.CmdMultiPoll:
		if len(f.Payload) != 3 {
			m.fail(r200.ErrCodeCommand)
			return
		}
		m.remaining = int(binary.BigEndian.Uint16(f.Payload[1:]))
		m.streaming = m.remaining > 0
		m.nextRound = time.Now()

	case r200.CmdStopMultiPoll:
		m.streaming = false
		m.remaining = 0
		m.respond(r200.CmdStopMultiPoll, []byte{0x00})
		for i := 0; i < m.staleAfterStop && len(m.tags) > 0; i++ {
			m.emit(r200.TypeNotice, r200.CmdSinglePoll, EncodeTag(m.tags[i%len(m.tags)]))
		}

	default:
		m.fail(r200.ErrCodeCommand)
	}
}

// round 产生一轮多次轮询的标签通知
func (m *Module) round(now time.Time) {
	for _, t := range m.tags {
		m.emit(r200.TypeNotice, r200.CmdSinglePoll, EncodeTag(t))
	}
	m.remaining--
	if m.remaining <= 0 {
		m.streaming = false
	}
	m.nextRound = now.Add(m.roundInterval)
}

func (m *Module) respond(cmd byte, payload []byte) {
	m.emit(r200.TypeResponse, cmd, payload)
}

func (m *Module) fail(code byte) {
	m.emit(r200.TypeResponse, r200.CmdError, []byte{code})
}

func (m *Module) emit(typ r200.FrameType, cmd byte, payload []byte) {
	if m.muted {
		return
	}
	raw, err := r200.Encode(typ, cmd, payload)
	if err != nil {
		return
	}
	if m.corruptNext {
		raw[len(raw)-2] ^= 0xFF
		m.corruptNext = false
	}
	m.out = append(m.out, raw...)
}

// EncodeTag 标签记录编码为通知负载
func EncodeTag(t r200.TagObservation) []byte {
	pc := t.PC
	if pc == 0 {
		pc = uint16(len(t.EPC)/2) << 11
	}
	b := make([]byte, 0, 5+len(t.EPC))
	b = append(b, t.RSSI)
	b = append(b, be16(pc)...)
	b = append(b, t.EPC...)
	return append(b, be16(t.CRC)...)
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// ---- 测试辅助 ----

// InjectNoise 向输出流插入原始字节
func (m *Module) InjectNoise(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, b...)
	m.wake()
}

// InjectNotice 插入一条异步标签通知
func (m *Module) InjectNotice(t r200.TagObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(r200.TypeNotice, r200.CmdSinglePoll, EncodeTag(t))
	m.wake()
}

// InjectFrame 插入任意帧
func (m *Module) InjectFrame(typ r200.FrameType, cmd byte, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(typ, cmd, payload)
	m.wake()
}

// CorruptNext 下一帧输出的校验字节被破坏
func (m *Module) CorruptNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptNext = true
}

// Mute 静默：不再输出任何应答
func (m *Module) Mute(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = v
}

// FailNextRead 下一次 Read 返回 err
func (m *Module) FailNextRead(err error) {
	if err == nil {
		err = errors.New("simulated read failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetTags 替换天线场内的标签
func (m *Module) SetTags(tags ...r200.TagObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
}

// Received 上位机写入的全部原始字节
func (m *Module) Received() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.received...)
}

// Pending 尚未被读取的输出字节数
func (m *Module) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.out)
}

// Streaming 是否处于多次轮询
func (m *Module) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}
