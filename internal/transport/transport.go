package transport

import (
	"errors"
	"time"
)

// Transport 读写器串行字节流端点。
// Read 在 timeout 内返回读到的字节（最多 max 个），超时无数据返回空切片与 nil。
type Transport interface {
	Write(p []byte) error
	Read(max int, timeout time.Duration) ([]byte, error)
	Close() error
}

var ErrClosed = errors.New("transport closed")

const (
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 3 * time.Second
)
