package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sign 生成 HMAC-SHA256 签名（hex）
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Canonical 待签名串: method\npath\ntimestamp\nnonce\nsha256(body)
func Canonical(method, path string, ts int64, nonce string, body []byte) string {
	h := sha256.Sum256(body)
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s", strings.ToUpper(method), path, ts, nonce, hex.EncodeToString(h[:]))
}

// Verify 接收方校验签名
func Verify(secret, canonical, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, canonical)), []byte(signature))
}
