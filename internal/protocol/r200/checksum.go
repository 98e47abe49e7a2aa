package r200

// Checksum 累加校验：从 Type 到最后一个参数字节求和，取低8位
func Checksum(span []byte) byte {
	var sum byte
	for _, b := range span {
		sum += b
	}
	return sum
}

// checksumSpan 返回完整帧中参与校验的字节区间，编码与校验共用。
// raw 至少为 Overhead 字节。
func checksumSpan(raw []byte) []byte {
	return raw[1 : len(raw)-2]
}

// Verify 校验一个完整帧的校验字节
func Verify(raw []byte) bool {
	if len(raw) < Overhead {
		return false
	}
	return raw[len(raw)-2] == Checksum(checksumSpan(raw))
}
