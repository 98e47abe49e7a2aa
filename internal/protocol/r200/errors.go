package r200

import (
	"errors"
	"fmt"
)

var (
	ErrIncomplete     = errors.New("incomplete frame")
	ErrBadMarker      = errors.New("bad frame marker")
	ErrBadChecksum    = errors.New("bad checksum")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrResyncFailed   = errors.New("resynchronization failed")
	ErrTruncated      = errors.New("truncated tag record")
	ErrUnexpectedLen  = errors.New("unexpected payload length")
)

// 模块错误码（错误帧 0xFF 的参数）
const (
	ErrCodeReadFail       byte = 0x09
	ErrCodeWriteFail      byte = 0x10
	ErrCodeKillFail       byte = 0x12
	ErrCodeLockFail       byte = 0x13
	ErrCodeBlockPermalock byte = 0x14
	ErrCodeNoTag          byte = 0x15 // 单次/多次轮询未发现标签
	ErrCodeAccessPassword byte = 0x16
	ErrCodeCommand        byte = 0x17
	ErrCodeFHSSFail       byte = 0x20
)

var moduleErrorNames = map[byte]string{
	ErrCodeReadFail:       "read fail",
	ErrCodeWriteFail:      "write fail",
	ErrCodeKillFail:       "kill fail",
	ErrCodeLockFail:       "lock fail",
	ErrCodeBlockPermalock: "block permalock fail",
	ErrCodeNoTag:          "no tag",
	ErrCodeAccessPassword: "access password error",
	ErrCodeCommand:        "command error",
	ErrCodeFHSSFail:       "fhss fail",
}

// ModuleError 模块通过错误帧返回的状态
type ModuleError struct {
	Code byte
	// Command 出错的指令（模块未给出时为 0）
	Command byte
}

func (e *ModuleError) Error() string {
	name, ok := moduleErrorNames[e.Code]
	if !ok {
		name = "unknown"
	}
	return fmt.Sprintf("module error 0x%02X (%s)", e.Code, name)
}

// NoTag 是否为“未发现标签”
func (e *ModuleError) NoTag() bool {
	return e.Code == ErrCodeNoTag
}
