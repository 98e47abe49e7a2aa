package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
)

func exchange(t *testing.T, m *Module, cmd r200.Command) []*r200.Frame {
	t.Helper()
	raw, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, m.Write(raw))

	dec := r200.NewStreamDecoder(0)
	var frames []*r200.Frame
	for {
		b, err := m.Read(256, 20*time.Millisecond)
		require.NoError(t, err)
		if len(b) == 0 {
			return frames
		}
		fs, err := dec.Feed(b)
		require.NoError(t, err)
		frames = append(frames, fs...)
	}
}

func TestModule_Settings(t *testing.T) {
	m := New(WithEchoSetPower())

	frames := exchange(t, m, r200.SetPower(2000))
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x07, 0xD0}, frames[0].Payload)

	frames = exchange(t, m, r200.GetPower())
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x07, 0xD0}, frames[0].Payload)

	exchange(t, m, r200.SetChannel(9))
	frames = exchange(t, m, r200.GetChannel())
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{9}, frames[0].Payload)

	frames = exchange(t, m, r200.GetModuleInfo(r200.InfoManufacturer))
	require.Len(t, frames, 1)
	assert.Equal(t, append([]byte{0x02}, "MagicRF"...), frames[0].Payload)
}

func TestModule_Polling(t *testing.T) {
	tag := r200.TagObservation{RSSI: 0xC9, EPC: []byte{0xE2, 0x00, 0x00, 0x17}, CRC: 0x1234}

	t.Run("无标签返回错误帧", func(t *testing.T) {
		m := New()
		frames := exchange(t, m, r200.SinglePoll())
		require.Len(t, frames, 1)
		assert.Equal(t, r200.CmdError, frames[0].Command)
		assert.Equal(t, []byte{r200.ErrCodeNoTag}, frames[0].Payload)
	})

	t.Run("单次轮询", func(t *testing.T) {
		m := New(WithTags(tag, tag))
		frames := exchange(t, m, r200.SinglePoll())
		require.Len(t, frames, 2)
		assert.Equal(t, r200.TypeNotice, frames[0].Type)
		parsed, err := r200.ParseTag(frames[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, "E2000017", parsed.UID())
	})

	t.Run("多次轮询按次数结束", func(t *testing.T) {
		m := New(WithTags(tag))
		frames := exchange(t, m, r200.MultiPollStart(3))
		assert.Len(t, frames, 3)
		assert.False(t, m.Streaming())
	})
}

func TestModule_ChunkedOutput(t *testing.T) {
	m := New(WithChunkSize(1))
	raw, err := r200.GetPower().Encode()
	require.NoError(t, err)
	require.NoError(t, m.Write(raw))

	b, err := m.Read(256, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, b, 1)
	assert.Equal(t, 8, m.Pending())
}
