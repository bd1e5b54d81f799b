package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_Destination(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		var file, stdout bytes.Buffer
		m := NewSlogManager()
		m.stdout = &stdout
		m.Setup(&file, "info", nil)
		m.Logger().Info("hello file")

		assert.Contains(t, file.String(), "hello file")
		assert.Empty(t, stdout.String())
	})
	t.Run("stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		m := NewSlogManager()
		m.stdout = &stdout
		m.Setup(nil, "info", nil)
		m.Logger().Info("hello console")

		assert.Contains(t, stdout.String(), "hello console")
	})
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"WARN", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("debug msg")
			m.Logger().Error("error msg")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug msg")))
			assert.Contains(t, buf.String(), "error msg")
		})
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "loud", nil)

	assert.Equal(t, slog.LevelInfo, m.Level())
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestSetLevel_AppliesToExistingHandlers(t *testing.T) {
	var file, extra bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil, slog.NewJSONHandler(&extra, m.HandlerOptions()))
	logger := m.Logger()

	logger.Debug("hidden")
	require.NoError(t, m.SetLevel("debug"))
	logger.Debug("shown", "kind", "distance")

	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, file.String(), "shown")
	assert.Contains(t, extra.String(), `"kind":"distance"`)
	assert.Equal(t, slog.LevelDebug, m.Level())

	assert.Error(t, m.SetLevel("chatty"))
	assert.Equal(t, slog.LevelDebug, m.Level())
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(&buf1, "info", nil)
	m.Logger().Info("first")
	m.Setup(&buf2, "info", nil)
	m.Logger().Info("second")

	assert.NotContains(t, buf1.String(), "second")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	state := "idle"
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("state", state)}
	})
	m.Setup(&buf, "info", nil)

	state = "ready"
	m.Logger().Info("route rendered")

	assert.Contains(t, buf.String(), "state=ready")
}

func TestSetup_TimesAreUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`, buf.String())
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"Warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"info+2", slog.LevelInfo + 2, false},
		{"", slog.LevelInfo, true},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlush(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()))

	var buf bytes.Buffer
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	m.Logger().Info("otel integrated")

	assert.Contains(t, buf.String(), "otel integrated")
	assert.NoError(t, m.Flush(context.Background()))
}
