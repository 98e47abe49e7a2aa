package r200

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	tagHeaderLen = 3 // RSSI(1) + PC(2)
	tagCRCLen    = 2
)

// TagObservation 一次标签读取：RSSI(1) + PC(2) + EPC(N) + CRC(2)
type TagObservation struct {
	RSSI   uint8
	PC     uint16
	EPC    []byte
	CRC    uint16
	HasCRC bool
}

// RSSIDBm RSSI 按有符号 dBm 解释
func (t TagObservation) RSSIDBm() int {
	return int(int8(t.RSSI))
}

// UID EPC 的展示形式：大写十六进制，无分隔符
func (t TagObservation) UID() string {
	return strings.ToUpper(hex.EncodeToString(t.EPC))
}

func (t TagObservation) String() string {
	return fmt.Sprintf("epc=%s rssi=%d pc=0x%04X crc=0x%04X", t.UID(), t.RSSIDBm(), t.PC, t.CRC)
}

// epcWords PC 字高5位为 EPC 长度（字）
func epcWords(pc uint16) int {
	return int(pc >> 11)
}

// ParseTag 解析单条标签记录。
// EPC 长度优先取 PC 字声明的长度，与负载长度不符时按 负载长度-头-CRC 推导。
func ParseTag(payload []byte) (TagObservation, error) {
	if len(payload) < tagHeaderLen+1 {
		return TagObservation{}, fmt.Errorf("%d bytes: %w", len(payload), ErrTruncated)
	}
	t := TagObservation{
		RSSI: payload[0],
		PC:   binary.BigEndian.Uint16(payload[1:3]),
	}
	body := payload[tagHeaderLen:]
	n := 2 * epcWords(t.PC)
	switch {
	case n > 0 && len(body) == n+tagCRCLen:
		t.EPC = clone(body[:n])
		t.CRC = binary.BigEndian.Uint16(body[n:])
		t.HasCRC = true
	case n > 0 && len(body) == n:
		t.EPC = clone(body)
	case len(body) > tagCRCLen:
		t.EPC = clone(body[:len(body)-tagCRCLen])
		t.CRC = binary.BigEndian.Uint16(body[len(body)-tagCRCLen:])
		t.HasCRC = true
	default:
		t.EPC = clone(body)
	}
	return t, nil
}

// ParseTags 解析一个通知负载中的全部标签记录（可能连续拼接）。
// 空负载返回空结果；末尾残缺记录被丢弃。
func ParseTags(payload []byte) ([]TagObservation, error) {
	tags := make([]TagObservation, 0, 1)
	rest := payload
	for len(rest) > 0 {
		if len(rest) < tagHeaderLen+1 {
			break
		}
		n := 2 * epcWords(binary.BigEndian.Uint16(rest[1:3]))
		recLen := tagHeaderLen + n + tagCRCLen
		if n == 0 || recLen > len(rest) {
			// PC 不可信，剩余部分按单条记录解析
			t, err := ParseTag(rest)
			if err != nil {
				break
			}
			tags = append(tags, t)
			break
		}
		t, err := ParseTag(rest[:recLen])
		if err != nil {
			break
		}
		tags = append(tags, t)
		rest = rest[recLen:]
	}
	if len(tags) == 0 && len(payload) > 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(payload), ErrTruncated)
	}
	return tags, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
