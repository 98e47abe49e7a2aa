package r200

import (
	"encoding/binary"
	"fmt"
)

// Response 模块应答（按应答指令码区分的封闭集合）
type Response interface {
	CommandCode() byte
}

// ModuleInfo 模块信息应答，文本原样透传
type ModuleInfo struct {
	Kind InfoKind
	Text string
}

// PowerReading 功率查询应答，或设置功率时模块回显的实际值
type PowerReading struct {
	Command byte
	Value   Power
}

// ChannelReading 信道应答
type ChannelReading struct {
	Command byte
	Index   uint8
}

// RegionReading 地区应答
type RegionReading struct {
	Command byte
	Region  Region
}

// Ack 设置类指令的状态应答，0x00 为成功
type Ack struct {
	Command byte
	Status  byte
}

// TagReport 轮询通知中的标签记录，可为空
type TagReport struct {
	Command byte
	Tags    []TagObservation
}

// Unrecognized 无法识别的帧，原样保留
type Unrecognized struct {
	Type    FrameType
	Command byte
	Payload []byte
}

func (ModuleInfo) CommandCode() byte       { return CmdModuleInfo }
func (r PowerReading) CommandCode() byte   { return r.Command }
func (r ChannelReading) CommandCode() byte { return r.Command }
func (r RegionReading) CommandCode() byte  { return r.Command }
func (a Ack) CommandCode() byte            { return a.Command }
func (r TagReport) CommandCode() byte      { return r.Command }
func (u Unrecognized) CommandCode() byte   { return u.Command }
func (e *ModuleError) CommandCode() byte   { return CmdError }

// OK 状态是否成功
func (a Ack) OK() bool { return a.Status == 0x00 }

// Decode 按指令码将帧解为类型化应答
func Decode(f *Frame) (Response, error) {
	p := f.Payload
	switch f.Command {
	case CmdModuleInfo:
		if len(p) < 1 {
			return nil, unexpectedLen(f)
		}
		return ModuleInfo{Kind: InfoKind(p[0]), Text: string(p[1:])}, nil

	case CmdGetPower, CmdSetPower:
		switch {
		case len(p) == 2:
			return PowerReading{Command: f.Command, Value: Power(binary.BigEndian.Uint16(p))}, nil
		case len(p) == 1 && f.Command == CmdSetPower:
			return Ack{Command: f.Command, Status: p[0]}, nil
		}
		return nil, unexpectedLen(f)

	case CmdGetChannel:
		if len(p) != 1 {
			return nil, unexpectedLen(f)
		}
		return ChannelReading{Command: f.Command, Index: p[0]}, nil

	case CmdGetRegion:
		if len(p) != 1 {
			return nil, unexpectedLen(f)
		}
		return RegionReading{Command: f.Command, Region: Region(p[0])}, nil

	case CmdSetChannel, CmdSetRegion, CmdStopMultiPoll:
		if len(p) != 1 {
			return nil, unexpectedLen(f)
		}
		return Ack{Command: f.Command, Status: p[0]}, nil

	case CmdSinglePoll, CmdMultiPoll:
		tags, err := ParseTags(p)
		if err != nil {
			return nil, err
		}
		return TagReport{Command: f.Command, Tags: tags}, nil

	case CmdError:
		if len(p) < 1 {
			return nil, unexpectedLen(f)
		}
		return &ModuleError{Code: p[0]}, nil
	}
	return Unrecognized{Type: f.Type, Command: f.Command, Payload: clone(p)}, nil
}

func unexpectedLen(f *Frame) error {
	return fmt.Errorf("cmd 0x%02X with %d bytes: %w", f.Command, len(f.Payload), ErrUnexpectedLen)
}
