// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/conclave/internal/config"
)

// syncBuffer is a goroutine-safe WriteSyncer for capturing console output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "conclave",
			Colors:      config.ColorConfig{Info: "green", Warn: "no-such-color"},
		}, out)
		logger := GetLogger().Named("scheduler")
		logger.Info("Epoch started.")
		logger.Warn("Cycle failed, retrying on the next cycle.")
		Sync()

		output := out.String()
		assert.Contains(t, output, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, output, "conclave.scheduler.")
		assert.Contains(t, output, "Epoch started.")
		// Unknown color names fall back to a plain level.
		assert.Contains(t, output, "\tWARN\t")
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, jsoniter.Unmarshal([]byte(out.String()), &logEntry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("writes to a rotated log file", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		logFile := filepath.Join(t.TempDir(), "conclave.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}, &syncBuffer{})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`, "File output is always JSON")
	})

	t.Run("only the first call takes effect", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, out)
		logger1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, out)
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		logger2.Debug("hidden")
		Sync()

		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
		assert.NotContains(t, out.String(), "hidden")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, out)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})
}

func TestSetLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	out := &syncBuffer{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, out)
	GetLogger().Debug("before")
	SetLevel(zapcore.DebugLevel)
	GetLogger().Debug("after")

	assert.NotContains(t, out.String(), "before")
	assert.Contains(t, out.String(), "after")
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
		assert.Nil(t, globalLogger.Load(), "the fallback is not stored globally")
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &syncBuffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
