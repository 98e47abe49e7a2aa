package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	serial "go.bug.st/serial"
)

// port go.bug.st/serial.Port 中用到的子集，便于测试替换
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Serial 本地串口（8N1）
type Serial struct {
	name   string
	port   port
	closed atomic.Bool
}

// OpenSerial 打开串口
func OpenSerial(name string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	// 丢弃打开前残留的数据
	_ = p.ResetInputBuffer()
	return &Serial{name: name, port: p}, nil
}

func (s *Serial) Write(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

func (s *Serial) Read(max int, timeout time.Duration) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("serial set timeout: %w", err)
	}
	buf := make([]byte, max)
	n, err := s.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("serial read: %w", err)
	}
	return buf[:n], nil
}

func (s *Serial) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.port.Close()
}

func (s *Serial) String() string {
	return "serial://" + s.name
}
