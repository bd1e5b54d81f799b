package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/urbanroute/routeview/internal/api"
	"github.com/urbanroute/routeview/internal/config"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/dispatcher"
	"github.com/urbanroute/routeview/internal/history"
	"github.com/urbanroute/routeview/internal/influx"
	"github.com/urbanroute/routeview/internal/logging"
	"github.com/urbanroute/routeview/internal/mapview"
	"github.com/urbanroute/routeview/internal/monitor"
	intOtel "github.com/urbanroute/routeview/internal/otel"
	"github.com/urbanroute/routeview/internal/server"
	"github.com/urbanroute/routeview/internal/session"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "routeview"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = strings.ToLower(args[0]), args[1:]
	}

	switch cmd {
	case "serve":
		return serve(ctx, args)
	case "route":
		return routeOnce(ctx, args, stdout)
	case "version":
		fmt.Fprintf(stdout, "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, route or version)", cmd)
	}
}

// loadConfig parses flags and reads the config file from the directory
// named by --config. Flags override the file.
func loadConfig(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := fs.GetString("config")
	if err != nil {
		return err
	}
	if err := config.Load(dir); err != nil {
		return err
	}
	return config.BindFlags(fs)
}

func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("logLevel", "info", "log level (debug, info, warn, error)")
	fs.String("logsDir", "./logs", "directory for log files")
	fs.String("routing.baseUrl", "http://localhost:8000", "routing service address")
	fs.String("server.listen", ":8080", "HTTP listen address")
	fs.String("history.type", "none", "route history backend (none, memory, sqlite, postgres)")
	return fs
}

// app holds the long-lived components of a serve session.
type app struct {
	session  *session.Context
	slog     *logging.SlogManager
	logger   *slog.Logger
	zlog     zerolog.Logger
	otel     *intOtel.Provider
	logFiles []*os.File

	loop    *dispatcher.Dispatcher
	routing *api.Client
	influx  *influx.Manager
	history history.Backend
	hub     *mapview.Hub
	ctrl    *controller.Controller
	server  *server.Server
	monitor *monitor.Service
}

func serve(ctx context.Context, args []string) error {
	if err := loadConfig(serveFlags(), args); err != nil {
		return err
	}

	a := &app{session: session.NewContext()}
	defer a.close()

	if err := a.setupLogging(); err != nil {
		return err
	}
	if err := a.setup(ctx); err != nil {
		a.logger.Error("Startup failed", "error", err)
		return err
	}
	return a.run(ctx)
}

func (a *app) setupLogging() error {
	logsDir := config.GetString("logsDir")
	level := config.GetString("logLevel")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logsDir, AppName, a.session.Started())
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logFiles = append(a.logFiles, logFile)

	a.slog = logging.NewSlogManager()
	a.slog.SetContextProvider(logging.SessionAttrs(a.session))
	a.zlog = logging.NewZerolog(logFile, level)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		metricFile, err := os.OpenFile(logging.LogFilePath(logsDir, AppName+"-metrics", a.session.Started()),
			os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("open metrics file: %w", err)
		}
		a.logFiles = append(a.logFiles, metricFile)

		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			MetricWriter:   metricFile,
			MetricInterval: otelCfg.MetricInterval,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			return fmt.Errorf("initialize OTel provider: %w", err)
		}
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, AppName)
		if err != nil {
			return err
		}
		extra = append(extra, a.slog.NewGraylogHandler(w))
	}

	a.slog.Setup(logFile, level, a.otel.LoggerProvider(), extra...)
	a.logger = a.slog.Logger()
	a.logger.Info("Starting up", "version", CurrentVersion, "build", BuildDate, "log", logPath)
	return nil
}

func (a *app) setup(ctx context.Context) error {
	routingCfg, err := config.GetRoutingConfig()
	if err != nil {
		return err
	}
	mapCfg, err := config.GetMapConfig()
	if err != nil {
		return err
	}
	serverCfg, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	historyCfg, err := config.GetHistoryConfig()
	if err != nil {
		return err
	}

	a.loop, err = dispatcher.New(
		logging.NewDispatcherLogger(a.zlog.With().Str("component", "dispatcher").Logger()),
		config.GetInt("dispatcher.queueSize"),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	clientOpts := []api.Option{
		api.WithTimeout(routingCfg.Timeout),
		api.WithMaxBodySize(routingCfg.MaxBodyBytes),
		api.WithLogger(a.logger),
	}
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("%s_influx_%s.lp.gz", AppName, a.session.Started().Format("20060102_150405")))
		a.influx = influx.NewManager(a.zlog.With().Str("component", "influx").Logger(), backup)
		if err := a.influx.Connect(ctx, influxCfg); err != nil {
			return fmt.Errorf("connect to influx: %w", err)
		}
		clientOpts = append(clientOpts, api.WithObserver(a.influx))
	}
	a.routing, err = api.New(routingCfg.BaseURL, clientOpts...)
	if err != nil {
		return fmt.Errorf("create routing client: %w", err)
	}

	ctrlOpts := []controller.Option{
		controller.WithBounds(mapCfg.Bounds),
		controller.WithSelection(routingCfg.Selection),
		controller.WithLogger(a.logger),
		controller.WithSession(a.session),
	}
	a.history, err = newHistoryBackend(historyCfg, config.GetDBConfig(), a.session, a.zlog)
	if err != nil {
		return err
	}
	if a.history != nil {
		if err := a.history.Init(); err != nil {
			return fmt.Errorf("initialize history: %w", err)
		}
		ctrlOpts = append(ctrlOpts, controller.WithJournal(history.NewJournal(a.history, a.session)))
		a.logger.Info("Route history enabled", "type", historyCfg.Type)
	}

	a.hub, err = mapview.NewHub(mapview.Config{
		Center:         mapCfg.Center,
		Zoom:           mapCfg.Zoom,
		Bounds:         mapCfg.Bounds,
		AllowedOrigins: serverCfg.AllowedOrigins,
	}, a.loop, a.logger)
	if err != nil {
		return fmt.Errorf("create map hub: %w", err)
	}

	a.ctrl = controller.New(a.routing, a.hub, a.loop, ctrlOpts...)
	a.ctrl.Register(a.loop)

	serverDeps := server.Deps{
		Loop:      a.loop,
		Map:       a.hub,
		Routing:   a.routing,
		Clients:   a.hub.Clients,
		SessionID: a.session.ID(),
	}
	if r, ok := a.history.(history.Reader); ok {
		serverDeps.History = r
	}
	a.server = server.New(server.Config{
		Listen:         serverCfg.Listen,
		AllowedOrigins: serverCfg.AllowedOrigins,
	}, serverDeps, a.logger)

	monitorDeps := monitor.Dependencies{
		Loop:    a.loop,
		Clients: a.hub.Clients,
		Session: a.session,
		Logger:  a.logger,
	}
	if a.influx != nil {
		monitorDeps.Points = a.influx
	}
	a.monitor = monitor.NewService(monitorDeps)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.routing.Ping(pingCtx); err != nil {
		a.logger.Warn("Routing service is offline", "url", a.routing.BaseURL(), "error", err)
	} else {
		a.logger.Info("Routing service is online", "url", a.routing.BaseURL())
	}
	return nil
}

// run serves until ctx is cancelled or the server fails.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(ctx) }()

	if interval := config.GetDuration("monitor.interval"); interval > 0 {
		go a.monitor.Run(ctx, interval)
	}

	err := a.server.Run(ctx)
	cancel()
	<-loopDone

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("Shutting down")
	return nil
}

func (a *app) close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			a.logger.Warn("Failed to close map hub", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("Failed to close history", "error", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("Failed to close influx", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.slog != nil {
		_ = a.slog.Flush(ctx)
	}
	if err := a.otel.Shutdown(ctx); err != nil && a.logger != nil {
		a.logger.Error("Failed to shut down OTel", "error", err)
	}
	for _, f := range a.logFiles {
		f.Close()
	}
}
