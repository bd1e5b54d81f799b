// Package memory keeps route history in memory and exports it as JSON when
// the session ends.
package memory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/urbanroute/routeview/internal/config"
	"github.com/urbanroute/routeview/internal/history"
	"github.com/urbanroute/routeview/internal/route"
)

// Export is the root JSON structure written on Close.
type Export struct {
	SessionID string          `json:"sessionId"`
	Started   time.Time       `json:"started"`
	Ended     time.Time       `json:"ended"`
	Routes    []history.Entry `json:"routes"`
}

// Backend stores entries in memory.
type Backend struct {
	cfg       config.MemoryConfig
	sessionID string
	started   time.Time

	entries        []history.Entry
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend for the session.
func New(cfg config.MemoryConfig, sessionID string, started time.Time) *Backend {
	return &Backend{
		cfg:       cfg,
		sessionID: sessionID,
		started:   started,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// RecordRoute appends a copy of e.
func (b *Backend) RecordRoute(_ context.Context, e *history.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, *e)
	return nil
}

// Entries returns a copy of the recorded routes.
func (b *Backend) Entries() []history.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]history.Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Session returns the recorded routes of sessionID, oldest first.
func (b *Backend) Session(_ context.Context, sessionID string) ([]history.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []history.Entry
	for _, e := range b.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// StartingNear returns routes whose origin shares a geohash prefix with e,
// newest first. A limit of zero or less returns every match.
func (b *Backend) StartingNear(_ context.Context, e route.Endpoint, precision uint, limit int) ([]history.Entry, error) {
	prefix := history.Geohash(e, precision)

	b.mu.RLock()
	var out []history.Entry
	for _, rec := range b.entries {
		if strings.HasPrefix(history.Geohash(rec.Origin, history.GeohashPrecision), prefix) {
			out = append(out, rec)
		}
	}
	b.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b history.Entry) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close exports the recorded routes. Nothing is written when no route was
// recorded.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil
	}
	return b.exportJSON()
}

// GetExportedFilePath returns the path of the last export, if any.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) exportJSON() error {
	export := Export{
		SessionID: b.sessionID,
		Started:   b.started,
		Ended:     time.Now(),
		Routes:    b.entries,
	}

	filename := fmt.Sprintf("routes_%s.json", b.started.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}
	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
