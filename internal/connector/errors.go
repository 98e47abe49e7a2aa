package connector

import (
	"errors"
	"fmt"
	"time"

	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
)

var (
	ErrClosed       = errors.New("connector closed")
	ErrStreaming    = errors.New("continuous polling in progress")
	ErrStreamClosed = errors.New("tag stream closed")
	ErrTimeout      = errors.New("reader timeout")
)

// TransportError 底层传输读写失败，接收缓冲已被重置
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError 在截止时间内未收到指令应答
type TimeoutError struct {
	Command string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response after %s", e.Command, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// UnexpectedResponseError 应答类型与指令不符
type UnexpectedResponseError struct {
	Command  string
	Response r200.Response
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s: unexpected response %T", e.Command, e.Response)
}
