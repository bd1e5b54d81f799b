// Package server exposes the map bridge, the controller status and a
// health check over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/history"
)

const (
	shutdownTimeout = 5 * time.Second

	defaultHistoryLimit     = 50
	maxHistoryLimit         = 500
	defaultHistoryPrecision = 6
)

// Pinger checks that the routing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the listener settings.
type Config struct {
	Listen         string
	AllowedOrigins []string
}

// Deps are the collaborators the routes call into.
type Deps struct {
	Loop    controller.Caller
	Map     http.Handler
	Routing Pinger
	Clients func() int

	// History answers /history; nil disables the route.
	History   history.Reader
	SessionID string
}

// Server is the HTTP front of the route view.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the router.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		engine: gin.New(),
		logger: logger.With("component", "server"),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	s.engine.Use(cors.New(corsConfig))

	s.engine.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "healthy"}
		if deps.Routing != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Routing.Ping(ctx); err != nil {
				body["routing"] = "unreachable"
				body["routingError"] = err.Error()
			} else {
				body["routing"] = "ok"
			}
		}
		if deps.Clients != nil {
			body["clients"] = deps.Clients()
		}
		c.JSON(http.StatusOK, body)
	})

	s.engine.GET("/state", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status, err := controller.CurrentStatus(ctx, deps.Loop)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	s.engine.GET("/history", s.history(deps))

	if deps.Map != nil {
		s.engine.GET("/ws", gin.WrapH(deps.Map))
	}

	return s
}

// history serves recorded routes. With near=lng,lat it returns routes
// starting close to that point, newest first; otherwise the routes of
// session (default: the running session).
func (s *Server) history(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.History == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "route history is disabled"})
			return
		}

		var (
			routes []history.Entry
			err    error
		)
		if raw, ok := c.GetQuery("near"); ok {
			near, perr := geo.ParseEndpoint(raw)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
				return
			}
			limit, perr := intQuery(c, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
				return
			}
			precision, perr := intQuery(c, "precision", defaultHistoryPrecision, 1, history.GeohashPrecision)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
				return
			}
			routes, err = deps.History.StartingNear(c.Request.Context(), near, uint(precision), limit)
		} else {
			routes, err = deps.History.Session(c.Request.Context(), c.DefaultQuery("session", deps.SessionID))
		}
		if err != nil {
			s.logger.Error("History query failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if routes == nil {
			routes = []history.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"routes": routes})
	}
}

func intQuery(c *gin.Context, key string, def, lo, hi int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer in [%d,%d]", key, lo, hi)
	}
	return n, nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
