package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter opens a GELF UDP writer to addr (host:port).
func NewGraylogWriter(addr, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to graylog at %s: %w", addr, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}

// NewGraylogHandler returns a JSON handler shipping each record to w as
// one GELF message, at the manager's level.
func (m *SlogManager) NewGraylogHandler(w *gelf.Writer) slog.Handler {
	return slog.NewJSONHandler(w, m.HandlerOptions())
}
