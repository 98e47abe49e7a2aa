package r200

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, typ FrameType, cmd byte, payload []byte) []byte {
	t.Helper()
	raw, err := Encode(typ, cmd, payload)
	require.NoError(t, err)
	return raw
}

func TestTryDecode(t *testing.T) {
	good := mustEncode(t, TypeResponse, CmdGetChannel, []byte{0x05})

	badSum := append([]byte(nil), good...)
	badSum[len(badSum)-2] ^= 0xFF

	badEnd := append([]byte(nil), good...)
	badEnd[len(badEnd)-1] = 0x00

	badType := append([]byte(nil), good...)
	badType[1] = 0x07

	tooLong := []byte{0xAA, 0x01, 0x22, 0x01, 0x00}

	tests := []struct {
		name     string
		buf      []byte
		wantErr  error
		consumed int
	}{
		{"空缓冲", nil, ErrIncomplete, 0},
		{"只有帧头", []byte{0xAA, 0x01}, ErrIncomplete, 0},
		{"半包", good[:len(good)-1], ErrIncomplete, 0},
		{"无帧头噪声", []byte{0x01, 0x02, 0x03}, ErrBadMarker, 3},
		{"校验错误", badSum, ErrBadChecksum, 1},
		{"帧尾错误", badEnd, ErrBadMarker, 1},
		{"帧类型错误", badType, ErrBadMarker, 1},
		{"长度超限", tooLong, ErrLengthMismatch, 1},
		{"噪声后校验错误", append([]byte{0x11, 0x22}, badSum...), ErrBadChecksum, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, n, err := TryDecode(tt.buf)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, fr)
			assert.Equal(t, tt.consumed, n)
		})
	}
}

func TestTryDecode_LeadingNoiseAndTrailingBytes(t *testing.T) {
	good := mustEncode(t, TypeResponse, CmdGetChannel, []byte{0x05})
	buf := append([]byte{0x00, 0x13}, good...)
	buf = append(buf, 0xAA, 0x01)

	fr, n, err := TryDecode(buf)
	require.NoError(t, err)
	assert.Equal(t, 2+len(good), n)
	assert.Equal(t, CmdGetChannel, fr.Command)
	assert.Equal(t, []byte{0x05}, fr.Payload)
}

func TestTryDecode_MarkersInsidePayload(t *testing.T) {
	// 负载中出现帧头/帧尾字节不影响按长度分帧
	payload := []byte{0xAA, 0xDD, 0xAA, 0x00}
	raw := mustEncode(t, TypeNotice, CmdSinglePoll, payload)
	fr, n, err := TryDecode(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, payload, fr.Payload)
}

func TestStreamDecoder_PartialReads(t *testing.T) {
	a := mustEncode(t, TypeResponse, CmdGetPower, []byte{0x07, 0xD0})
	b := mustEncode(t, TypeNotice, CmdSinglePoll, []byte{0xC9, 0x34, 0x00, 0x30, 0x75})
	stream := append(append([]byte(nil), a...), b...)

	t.Run("逐字节", func(t *testing.T) {
		d := NewStreamDecoder(0)
		var got []*Frame
		for i := range stream {
			frames, err := d.Feed(stream[i : i+1])
			require.NoError(t, err)
			got = append(got, frames...)
		}
		require.Len(t, got, 2)
		assert.Equal(t, CmdGetPower, got[0].Command)
		assert.Equal(t, CmdSinglePoll, got[1].Command)
		assert.Equal(t, 0, d.Buffered())
	})

	t.Run("任意切分", func(t *testing.T) {
		for cut := 1; cut < len(stream); cut++ {
			d := NewStreamDecoder(0)
			f1, err := d.Feed(stream[:cut])
			require.NoError(t, err)
			f2, err := d.Feed(stream[cut:])
			require.NoError(t, err)
			assert.Len(t, append(f1, f2...), 2, "cut=%d", cut)
		}
	})
}

func TestStreamDecoder_Resync(t *testing.T) {
	good := mustEncode(t, TypeResponse, CmdGetChannel, []byte{0x03})
	corrupt := append([]byte(nil), good...)
	corrupt[5] ^= 0x40

	var skipped int
	d := NewStreamDecoder(0)
	d.OnResync = func(err error, n int) { skipped += n }

	stream := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, corrupt...)
	stream = append(stream, good...)
	frames, err := d.Feed(stream)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x03}, frames[0].Payload)
	assert.Positive(t, skipped)
	assert.Equal(t, 0, d.Buffered())
}

func TestStreamDecoder_ResyncFailed(t *testing.T) {
	d := NewStreamDecoder(3)
	// 连续伪帧头，每个都校验失败
	junk := []byte{
		0xAA, 0x01, 0x22, 0x01, 0x00,
		0xAA, 0x01, 0x22, 0x01, 0x00,
		0xAA, 0x01, 0x22, 0x01, 0x00,
	}
	_, err := d.Feed(junk)
	assert.ErrorIs(t, err, ErrResyncFailed)

	// 之后的好帧仍能解出
	d.Reset()
	good := mustEncode(t, TypeResponse, CmdStopMultiPoll, []byte{0x00})
	frames, err := d.Feed(good)
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestStreamDecoder_LongNoiseBeforeFrame(t *testing.T) {
	good := mustEncode(t, TypeResponse, CmdGetPower, []byte{0x07, 0xD0})
	buf := append(bytes.Repeat([]byte{Header}, 70), good...)

	d := NewStreamDecoder(0)
	frames, err := d.Feed(buf)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, CmdGetPower, frames[0].Command)
	assert.Equal(t, []byte{0x07, 0xD0}, frames[0].Payload)
	assert.Equal(t, 0, d.Buffered())
}
