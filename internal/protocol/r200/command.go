package r200

import (
	"encoding/binary"
	"fmt"
	"math"
)

// 指令码
const (
	CmdModuleInfo     byte = 0x03
	CmdSetRegion      byte = 0x07
	CmdGetRegion      byte = 0x08
	CmdSinglePoll     byte = 0x22
	CmdMultiPoll      byte = 0x27
	CmdStopMultiPoll  byte = 0x28
	CmdGetChannel     byte = 0xAA
	CmdSetChannel     byte = 0xAB
	CmdSetPower       byte = 0xB6
	CmdGetPower       byte = 0xB7
	CmdError          byte = 0xFF
	multiPollReserved byte = 0x22
)

var commandNames = map[byte]string{
	CmdModuleInfo:    "module_info",
	CmdSetRegion:     "set_region",
	CmdGetRegion:     "get_region",
	CmdSinglePoll:    "single_poll",
	CmdMultiPoll:     "multi_poll",
	CmdStopMultiPoll: "stop_multi_poll",
	CmdGetChannel:    "get_channel",
	CmdSetChannel:    "set_channel",
	CmdSetPower:      "set_power",
	CmdGetPower:      "get_power",
	CmdError:         "error",
}

// CommandName 指令码的固定名称，用作指标标签
func CommandName(code byte) string {
	if n, ok := commandNames[code]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", code)
}

// InfoKind 模块信息类别
type InfoKind byte

const (
	InfoHardware     InfoKind = 0x00
	InfoSoftware     InfoKind = 0x01
	InfoManufacturer InfoKind = 0x02
)

func (k InfoKind) String() string {
	switch k {
	case InfoHardware:
		return "hardware"
	case InfoSoftware:
		return "software"
	case InfoManufacturer:
		return "manufacturer"
	default:
		return fmt.Sprintf("info(0x%02X)", byte(k))
	}
}

// Power 发射功率，单位 0.01 dBm（2000 = 20.00 dBm）
type Power uint16

// MaxPowerDBm Power 能表示的最大 dBm
const MaxPowerDBm = float64(math.MaxUint16) / 100

// PowerFromDBm 按 dBm 构造功率值，超出表示范围时截断到边界
func PowerFromDBm(dbm float64) Power {
	if !(dbm > 0) {
		return 0
	}
	if dbm >= MaxPowerDBm {
		return math.MaxUint16
	}
	return Power(math.Round(dbm * 100))
}

// DBm 转换为 dBm
func (p Power) DBm() float64 {
	return float64(p) / 100
}

func (p Power) String() string {
	return fmt.Sprintf("%.2fdBm", p.DBm())
}

// Command 上位机指令，只能通过本包构造函数创建
type Command struct {
	Code   byte
	Params []byte
	name   string
}

// GetModuleInfo 查询模块信息（硬件版本/软件版本/制造商）
func GetModuleInfo(kind InfoKind) Command {
	return Command{Code: CmdModuleInfo, Params: []byte{byte(kind)}, name: "get module info " + kind.String()}
}

// GetPower 查询发射功率
func GetPower() Command {
	return Command{Code: CmdGetPower, name: "get power"}
}

// SetPower 设置发射功率
func SetPower(p Power) Command {
	params := make([]byte, 2)
	binary.BigEndian.PutUint16(params, uint16(p))
	return Command{Code: CmdSetPower, Params: params, name: "set power " + p.String()}
}

// GetChannel 查询工作信道
func GetChannel() Command {
	return Command{Code: CmdGetChannel, name: "get channel"}
}

// SetChannel 设置工作信道
func SetChannel(index uint8) Command {
	return Command{Code: CmdSetChannel, Params: []byte{index}, name: fmt.Sprintf("set channel %d", index)}
}

// GetRegion 查询工作地区
func GetRegion() Command {
	return Command{Code: CmdGetRegion, name: "get region"}
}

// SetRegion 设置工作地区
func SetRegion(r Region) Command {
	return Command{Code: CmdSetRegion, Params: []byte{byte(r)}, name: "set region " + r.String()}
}

// SinglePoll 单次轮询
func SinglePoll() Command {
	return Command{Code: CmdSinglePoll, name: "single poll"}
}

// MultiPollStart 多次轮询，count 为轮询次数（0~65535）
func MultiPollStart(count uint16) Command {
	params := []byte{multiPollReserved, 0, 0}
	binary.BigEndian.PutUint16(params[1:], count)
	return Command{Code: CmdMultiPoll, Params: params, name: fmt.Sprintf("multi poll x%d", count)}
}

// MultiPollStop 停止多次轮询
func MultiPollStop() Command {
	return Command{Code: CmdStopMultiPoll, name: "stop multi poll"}
}

// Encode 编码为指令帧
func (c Command) Encode() ([]byte, error) {
	return EncodeCommand(c.Code, c.Params)
}

// Answers 判断某帧是否为本指令的应答（同码响应帧或错误帧）
func (c Command) Answers(f *Frame) bool {
	if f.Type != TypeResponse {
		return false
	}
	return f.Command == c.Code || f.Command == CmdError
}

func (c Command) String() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("cmd(0x%02X)", c.Code)
}
