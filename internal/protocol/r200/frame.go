package r200

import (
	"encoding/binary"
	"fmt"
)

// 帧结构：Header(1) + Type(1) + Command(1) + PL(2,大端) + Params(PL) + Checksum(1) + End(1)
const (
	Header byte = 0xAA
	End    byte = 0xDD

	// HeaderLen Header+Type+Command+PL
	HeaderLen = 5
	// Overhead 帧固定开销（不含参数）
	Overhead = HeaderLen + 2
	// MaxPayloadLen 参数区上限
	MaxPayloadLen = 255
	// MaxFrameLen 单帧最大长度
	MaxFrameLen = Overhead + MaxPayloadLen
)

// FrameType 帧类型
type FrameType byte

const (
	TypeCommand  FrameType = 0x00 // 上位机 -> 模块
	TypeResponse FrameType = 0x01 // 模块 -> 上位机，指令响应
	TypeNotice   FrameType = 0x02 // 模块 -> 上位机，通知（标签上报）
)

func (t FrameType) valid() bool {
	return t == TypeCommand || t == TypeResponse || t == TypeNotice
}

func (t FrameType) String() string {
	switch t {
	case TypeCommand:
		return "command"
	case TypeResponse:
		return "response"
	case TypeNotice:
		return "notice"
	default:
		return fmt.Sprintf("type(0x%02X)", byte(t))
	}
}

// Frame 一帧解码结果，校验和由编码时计算，不单独保存
type Frame struct {
	Type    FrameType
	Command byte
	Payload []byte
}

// Encode 编码任意类型帧
func Encode(typ FrameType, cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("payload %d bytes: %w", len(payload), ErrLengthMismatch)
	}
	buf := make([]byte, Overhead+len(payload))
	buf[0] = Header
	buf[1] = byte(typ)
	buf[2] = cmd
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(payload)))
	copy(buf[HeaderLen:], payload)
	buf[len(buf)-2] = Checksum(checksumSpan(buf))
	buf[len(buf)-1] = End
	return buf, nil
}

// EncodeCommand 编码上位机指令帧
func EncodeCommand(cmd byte, payload []byte) ([]byte, error) {
	return Encode(TypeCommand, cmd, payload)
}

// Bytes 重新编码为线上字节
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.Type, f.Command, f.Payload)
}

// IsError 模块错误帧（指令码 0xFF）
func (f *Frame) IsError() bool {
	return f.Command == CmdError
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s cmd=0x%02X len=%d payload=%X", f.Type, f.Command, len(f.Payload), f.Payload)
}
