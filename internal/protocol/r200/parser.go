package r200

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// TryDecode 从缓冲区头部尝试解出一帧。
//
// 返回值 consumed 表示调用方应丢弃的字节数：
//   - 成功：前导噪声 + 整帧
//   - ErrIncomplete：0，等待更多数据
//   - ErrBadMarker / ErrBadChecksum / ErrLengthMismatch：越过当前帧头一个字节，以便重新同步；
//     缓冲区中完全没有帧头时丢弃全部
func TryDecode(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}
	idx := bytes.IndexByte(buf, Header)
	if idx < 0 {
		return nil, len(buf), ErrBadMarker
	}
	rest := buf[idx:]
	if len(rest) < HeaderLen {
		return nil, 0, ErrIncomplete
	}
	typ := FrameType(rest[1])
	if !typ.valid() {
		return nil, idx + 1, ErrBadMarker
	}
	n := int(binary.BigEndian.Uint16(rest[3:5]))
	if n > MaxPayloadLen {
		return nil, idx + 1, ErrLengthMismatch
	}
	total := Overhead + n
	if len(rest) < total {
		return nil, 0, ErrIncomplete
	}
	raw := rest[:total]
	if raw[total-1] != End {
		return nil, idx + 1, ErrBadMarker
	}
	if !Verify(raw) {
		return nil, idx + 1, ErrBadChecksum
	}
	payload := make([]byte, n)
	copy(payload, raw[HeaderLen:HeaderLen+n])
	return &Frame{Type: typ, Command: raw[2], Payload: payload}, idx + total, nil
}

// DefaultMaxResyncFailures 连续重同步失败上限
const DefaultMaxResyncFailures = 64

// StreamDecoder 处理半包/粘包/噪声的流式解码器
type StreamDecoder struct {
	buf         []byte
	maxFailures int
	failures    int

	// OnResync 每次丢弃字节重新同步时回调（可为空）
	OnResync func(err error, skipped int)
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(maxFailures int) *StreamDecoder {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxResyncFailures
	}
	return &StreamDecoder{maxFailures: maxFailures}
}

// Feed 追加数据并尽可能解出多帧。
// 单次解码失败静默重同步；连续失败达到上限且本次未解出任何帧时才返回 ErrResyncFailed。
func (d *StreamDecoder) Feed(p []byte) ([]*Frame, error) {
	d.buf = append(d.buf, p...)
	var frames []*Frame
	exhausted := false
	for len(d.buf) > 0 {
		// 丢弃帧头前的无效前缀
		if i := bytes.IndexByte(d.buf, Header); i > 0 {
			d.skip(ErrBadMarker, i)
		}
		fr, n, err := TryDecode(d.buf)
		if err == nil {
			frames = append(frames, fr)
			d.buf = d.buf[n:]
			d.failures = 0
			continue
		}
		if errors.Is(err, ErrIncomplete) {
			break
		}
		d.skip(err, n)
		if d.failures >= d.maxFailures {
			d.failures = 0
			exhausted = true
		}
	}
	d.compact()
	if exhausted && len(frames) == 0 {
		return nil, ErrResyncFailed
	}
	return frames, nil
}

func (d *StreamDecoder) skip(err error, n int) {
	d.buf = d.buf[n:]
	d.failures++
	if d.OnResync != nil {
		d.OnResync(err, n)
	}
}

// compact 避免底层数组随切片前移无界增长
func (d *StreamDecoder) compact() {
	if len(d.buf) == 0 {
		d.buf = nil
		return
	}
	if cap(d.buf) > 4*MaxFrameLen {
		d.buf = append([]byte(nil), d.buf...)
	}
}

// Buffered 当前缓存的未解码字节数
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// Reset 丢弃缓存数据
func (d *StreamDecoder) Reset() {
	d.buf = nil
	d.failures = 0
}
