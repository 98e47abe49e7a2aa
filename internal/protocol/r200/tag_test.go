package r200

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 手册示例通知负载：RSSI=C9 PC=3400 EPC(12B) CRC=3A76
var sampleTagPayload = []byte{
	0xC9,
	0x34, 0x00,
	0x30, 0x75, 0x1F, 0xEB, 0x70, 0x5C, 0x59, 0x04, 0xE3, 0xD5, 0x0D, 0x70,
	0x3A, 0x76,
}

func TestParseTag_TwelveByteEPC(t *testing.T) {
	tag, err := ParseTag(sampleTagPayload)
	require.NoError(t, err)

	assert.Equal(t, uint8(0xC9), tag.RSSI)
	assert.Equal(t, -55, tag.RSSIDBm())
	assert.Equal(t, uint16(0x3400), tag.PC)
	assert.Len(t, tag.EPC, 12)
	assert.Equal(t, "30751FEB705C5904E3D50D70", tag.UID())
	assert.True(t, tag.HasCRC)
	assert.Equal(t, uint16(0x3A76), tag.CRC)
	assert.Contains(t, tag.String(), "30751FEB705C5904E3D50D70")
}

func TestParseTag_LengthFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		epc     []byte
		hasCRC  bool
	}{
		{
			name:    "PC声明与长度不符按负载推导",
			payload: []byte{0xD0, 0x30, 0x00, 0xE2, 0x00, 0x11, 0x22, 0xAB, 0xCD},
			epc:     []byte{0xE2, 0x00, 0x11, 0x22},
			hasCRC:  true,
		},
		{
			name:    "PC声明长度且无CRC",
			payload: []byte{0xD0, 0x08, 0x00, 0xE2, 0x00},
			epc:     []byte{0xE2, 0x00},
		},
		{
			name:    "最短记录",
			payload: []byte{0xD0, 0x00, 0x00, 0x01},
			epc:     []byte{0x01},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := ParseTag(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.epc, tag.EPC)
			assert.Equal(t, tt.hasCRC, tag.HasCRC)
		})
	}
}

func TestParseTag_Truncated(t *testing.T) {
	for _, p := range [][]byte{nil, {0xC9}, {0xC9, 0x34, 0x00}} {
		_, err := ParseTag(p)
		assert.ErrorIs(t, err, ErrTruncated)
	}
}

func TestParseTags(t *testing.T) {
	t.Run("空负载", func(t *testing.T) {
		tags, err := ParseTags(nil)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("批量拼接", func(t *testing.T) {
		second := []byte{0xC0, 0x08, 0x00, 0xAB, 0xCD, 0x12, 0x34}
		payload := append(append([]byte(nil), sampleTagPayload...), second...)
		tags, err := ParseTags(payload)
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, "30751FEB705C5904E3D50D70", tags[0].UID())
		assert.Equal(t, "ABCD", tags[1].UID())
		assert.Equal(t, uint16(0x1234), tags[1].CRC)
	})

	t.Run("末尾残缺记录丢弃", func(t *testing.T) {
		payload := append(append([]byte(nil), sampleTagPayload...), 0xC0, 0x10)
		tags, err := ParseTags(payload)
		require.NoError(t, err)
		assert.Len(t, tags, 1)
	})

	t.Run("整体残缺", func(t *testing.T) {
		_, err := ParseTags([]byte{0xC9, 0x34})
		assert.ErrorIs(t, err, ErrTruncated)
	})
}
