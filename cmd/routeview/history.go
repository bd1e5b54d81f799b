package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urbanroute/routeview/internal/config"
	"github.com/urbanroute/routeview/internal/database"
	"github.com/urbanroute/routeview/internal/history"
	"github.com/urbanroute/routeview/internal/history/gormstore"
	"github.com/urbanroute/routeview/internal/history/memory"
	"github.com/urbanroute/routeview/internal/session"
)

// newHistoryBackend creates the configured route history backend. It
// returns nil when history is disabled.
func newHistoryBackend(cfg config.HistoryConfig, dbCfg config.DBConfig, sess *session.Context, log zerolog.Logger) (history.Backend, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "memory":
		return memory.New(cfg.Memory, sess.ID(), sess.Started()), nil

	case "sqlite":
		db := database.NewManager(log.With().Str("component", "database").Logger())
		if err := db.ConnectSQLite(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return gormstore.New(db), nil

	case "postgres":
		db := database.NewManager(log.With().Str("component", "database").Logger())
		if err := db.ConnectPostgres(dbCfg, cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return gormstore.New(db), nil

	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
