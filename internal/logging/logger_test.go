package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
)

func TestInitLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{" warning ", zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := InitLogger(cfgpkg.LoggingConfig{Level: tt.level, Format: "console"})
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestInitLogger_RollingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.log")
	l, err := InitLogger(cfgpkg.LoggingConfig{
		Level:  "info",
		Format: "json",
		File:   cfgpkg.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	l.Info("tag observed")
	_ = l.Sync()

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"msg":"tag observed"`)
}

func TestFrame(t *testing.T) {
	f := Frame("hex", []byte{0xAA, 0x00, 0x03, 0x00, 0x01, 0x00, 0x04, 0xDD})
	assert.Equal(t, "hex", f.Key)
	assert.Equal(t, "AA 00 03 00 01 00 04 DD", f.Interface.(fmt.Stringer).String())
}
