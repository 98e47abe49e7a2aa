package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateReaderID 生成读写器实例ID。
// 优先使用配置值，其次环境变量 READER_ID，否则按主机名生成。
func GenerateReaderID(configured string) string {
	if configured != "" {
		return configured
	}
	if id := os.Getenv("READER_ID"); id != "" {
		return id
	}

	// 格式：r200-{hostname}-{uuid前8位}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("r200-%s-%s", hostname, uuid.New().String()[:8])
}
