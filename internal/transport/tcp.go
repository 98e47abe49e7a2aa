package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// TCP 串口服务器（ser2net 一类）透传连接
type TCP struct {
	addr string
	conn net.Conn
}

// DialTCP 连接串口服务器
func DialTCP(addr string, timeout time.Duration) (*TCP, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewTCP(conn), nil
}

// NewTCP 包装已建立的连接
func NewTCP(conn net.Conn) *TCP {
	return &TCP{addr: conn.RemoteAddr().String(), conn: conn}
}

func (t *TCP) Write(p []byte) error {
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (t *TCP) Read(max int, timeout time.Duration) ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("tcp set deadline: %w", err)
	}
	buf := make([]byte, max)
	n, err := t.conn.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return buf[:n], nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("tcp read: %w", err)
	}
	return buf[:n], nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

func (t *TCP) String() string {
	return "tcp://" + t.addr
}
