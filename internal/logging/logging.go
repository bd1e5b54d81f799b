package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urbanroute/routeview/internal/session"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// SessionAttrs tags records with the session ID and controller state.
func SessionAttrs(s *session.Context) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{
			slog.String("session", s.ID()),
			slog.String("state", s.State()),
		}
	}
}
