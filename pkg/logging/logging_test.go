package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
)

func TestNewFiltersByLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.level)

			_ = level.Debug(logger).Log("msg", "debug-line")
			_ = level.Info(logger).Log("msg", "info-line")
			_ = level.Warn(logger).Log("msg", "warn-line")
			_ = level.Error(logger).Log("msg", "error-line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug-line")), out)
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info-line")), out)
			assert.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte("warn-line")), out)
			assert.Contains(t, out, "error-line")
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, "info"), "provisioner")

	_ = level.Info(logger).Log("msg", "hello")

	assert.Contains(t, buf.String(), "component=provisioner")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "level=info")
}

func TestComponentNilLogger(t *testing.T) {
	logger := Component(nil, "x")
	assert.NoError(t, logger.Log("msg", "dropped"))
}
