package r200

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode_KnownBytes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"硬件版本", GetModuleInfo(InfoHardware), []byte{0xAA, 0x00, 0x03, 0x00, 0x01, 0x00, 0x04, 0xDD}},
		{"软件版本", GetModuleInfo(InfoSoftware), []byte{0xAA, 0x00, 0x03, 0x00, 0x01, 0x01, 0x05, 0xDD}},
		{"制造商", GetModuleInfo(InfoManufacturer), []byte{0xAA, 0x00, 0x03, 0x00, 0x01, 0x02, 0x06, 0xDD}},
		{"查询信道", GetChannel(), []byte{0xAA, 0x00, 0xAA, 0x00, 0x00, 0xAA, 0xDD}},
		{"单次轮询", SinglePoll(), []byte{0xAA, 0x00, 0x22, 0x00, 0x00, 0x22, 0xDD}},
		{"查询功率", GetPower(), []byte{0xAA, 0x00, 0xB7, 0x00, 0x00, 0xB7, 0xDD}},
		{"设置功率26.5dBm", SetPower(PowerFromDBm(26.5)), []byte{0xAA, 0x00, 0xB6, 0x00, 0x02, 0x0A, 0x5A, 0x1C, 0xDD}},
		{"多次轮询10000次", MultiPollStart(10000), []byte{0xAA, 0x00, 0x27, 0x00, 0x03, 0x22, 0x27, 0x10, 0x83, 0xDD}},
		{"停止多次轮询", MultiPollStop(), []byte{0xAA, 0x00, 0x28, 0x00, 0x00, 0x28, 0xDD}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, Overhead+len(tt.cmd.Params))
		})
	}
}

func TestCommandEncode_RoundTrip(t *testing.T) {
	cmds := []Command{
		GetModuleInfo(InfoHardware),
		GetPower(),
		SetPower(2000),
		GetChannel(),
		SetChannel(7),
		GetRegion(),
		SetRegion(RegionEU),
		SinglePoll(),
		MultiPollStart(65535),
		MultiPollStop(),
	}
	for _, c := range cmds {
		t.Run(c.String(), func(t *testing.T) {
			raw, err := c.Encode()
			require.NoError(t, err)

			fr, n, err := TryDecode(raw)
			require.NoError(t, err)
			assert.Equal(t, len(raw), n)
			assert.Equal(t, TypeCommand, fr.Type)
			assert.Equal(t, c.Code, fr.Command)
			assert.Equal(t, len(c.Params), len(fr.Payload))
			if len(c.Params) > 0 {
				assert.Equal(t, c.Params, fr.Payload)
			}
		})
	}
}

func TestEncode_PayloadTooLong(t *testing.T) {
	_, err := Encode(TypeResponse, CmdModuleInfo, make([]byte, MaxPayloadLen+1))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	raw, err := Encode(TypeResponse, CmdModuleInfo, make([]byte, MaxPayloadLen))
	require.NoError(t, err)
	assert.Len(t, raw, MaxFrameLen)
}

func TestVerify_SingleByteFlip(t *testing.T) {
	raw, err := Encode(TypeNotice, CmdSinglePoll, []byte{0xC9, 0x34, 0x00, 0x30, 0x75, 0x1F, 0xEB})
	require.NoError(t, err)
	require.True(t, Verify(raw))

	// 翻转参与校验的任意一个字节都必须校验失败
	for i := 1; i < len(raw)-2; i++ {
		bad := append([]byte(nil), raw...)
		bad[i] ^= 0x01
		assert.False(t, Verify(bad), "flip at %d", i)
	}
	bad := append([]byte(nil), raw...)
	bad[len(raw)-2]++
	assert.False(t, Verify(bad))
}

func TestChecksum_Wraps(t *testing.T) {
	assert.Equal(t, byte(0x00), Checksum(nil))
	assert.Equal(t, byte(0xFE), Checksum([]byte{0xFF, 0xFF}))
	assert.Equal(t, byte(0x83), Checksum([]byte{0x00, 0x27, 0x00, 0x03, 0x22, 0x27, 0x10}))
}

func TestFrameBytes(t *testing.T) {
	f := &Frame{Type: TypeResponse, Command: CmdGetPower, Payload: []byte{0x07, 0xD0}}
	raw, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x01, 0xB7, 0x00, 0x02, 0x07, 0xD0, 0x91, 0xDD}, raw)
	assert.False(t, f.IsError())
	assert.Contains(t, f.String(), "cmd=0xB7")
}
