package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager owns the process slog pipeline: a text handler on file or
// stdout, the OTel bridge, and any extra handlers, all sharing one level.
type SlogManager struct {
	logger   *slog.Logger
	level    slog.LevelVar
	stdout   io.Writer
	provider *sdklog.LoggerProvider
	context  ContextProvider
}

// NewSlogManager returns a manager at info level. Logger returns
// slog.Default until Setup is called.
func NewSlogManager() *SlogManager {
	return &SlogManager{stdout: os.Stdout}
}

// ParseLevel accepts the slog level names in any case, "warning", and
// offsets such as "info+2".
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// SetContextProvider attaches attributes from p to every record logged
// after the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// SetLevel changes the level of every handler built by Setup, including
// ones already handed out.
func (m *SlogManager) SetLevel(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	m.level.Set(l)
	return nil
}

// HandlerOptions returns the options Setup uses, for callers building
// extra handlers. Handlers built from it follow SetLevel.
func (m *SlogManager) HandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       &m.level,
		ReplaceAttr: utcTime,
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup (re)builds the logger. Text output goes to file, or stdout when
// file is nil. An unknown level falls back to info with a warning.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	levelErr := m.SetLevel(level)
	if levelErr != nil {
		m.level.Set(slog.LevelInfo)
	}
	m.provider = provider

	out := file
	if out == nil {
		out = m.stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(out, m.HandlerOptions())}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("routeview", otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		h = NewContextHandler(h, m.context)
	}
	m.logger = slog.New(h)

	if levelErr != nil {
		m.logger.Warn("Invalid log level, using info", "error", levelErr)
	}
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// Logger returns the logger built by the last Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Level returns the current level.
func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

// Flush pushes buffered OTel records, if an OTel provider was given.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
