package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort 模拟串口：每次 Read 返回一段数据，取完后模拟超时
type fakePort struct {
	chunks   [][]byte
	written  []byte
	timeouts []time.Duration
	readErr  error
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	// 每次只写入一半，验证循环写
	n := (len(b) + 1) / 2
	p.written = append(p.written, b[:n]...)
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerial_ReadWrite(t *testing.T) {
	fp := &fakePort{chunks: [][]byte{{0xAA, 0x01}}}
	s := &Serial{name: "/dev/ttyUSB0", port: fp}

	require.NoError(t, s.Write([]byte{0xAA, 0x00, 0x22, 0x00, 0x00, 0x22, 0xDD}))
	assert.Equal(t, []byte{0xAA, 0x00, 0x22, 0x00, 0x00, 0x22, 0xDD}, fp.written)

	got, err := s.Read(64, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x01}, got)

	// 超时返回空
	got, err = s.Read(64, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 10 * time.Millisecond}, fp.timeouts)

	fp.readErr = errors.New("device unplugged")
	_, err = s.Read(64, time.Millisecond)
	assert.ErrorContains(t, err, "device unplugged")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, fp.closed)
	assert.ErrorIs(t, s.Write([]byte{0x01}), ErrClosed)
	assert.Equal(t, "serial:///dev/ttyUSB0", s.String())
}

func TestTCP_ReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	tr := NewTCP(client)
	defer tr.Close()

	// 无数据：超时返回空切片
	got, err := tr.Read(16, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)

	go func() { _, _ = server.Write([]byte{0xAA, 0x01, 0x28}) }()
	got, err = tr.Read(16, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x01, 0x28}, got)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 7)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()
	require.NoError(t, tr.Write([]byte{0xAA, 0x00, 0x28, 0x00, 0x00, 0x28, 0xDD}))
	assert.Equal(t, []byte{0xAA, 0x00, 0x28, 0x00, 0x00, 0x28, 0xDD}, <-done)
}
