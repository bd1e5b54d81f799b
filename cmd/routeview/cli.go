package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/urbanroute/routeview/internal/api"
	"github.com/urbanroute/routeview/internal/config"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/dispatcher"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/logging"
	"github.com/urbanroute/routeview/internal/mapview"
	"github.com/urbanroute/routeview/internal/route"
)

const settlePoll = 25 * time.Millisecond

func routeFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("route", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("logLevel", "warn", "log level written to stderr")
	fs.String("routing.baseUrl", "http://localhost:8000", "routing service address")
	fs.String("from", "", "origin as lng,lat")
	fs.String("to", "", "destination as lng,lat")
	fs.String("algorithm", string(route.DefaultAlgorithm), "distance, A*, scalarisation or mospp")
	fs.String("variable", string(route.DefaultVariable), "objective for A*: distance or pollution")
	fs.Int("weight", route.DefaultWeight.Percent(), "scalarisation/mospp weight in percent")
	fs.Duration("wait", time.Minute, "how long to wait for the route")
	return fs
}

// routeSelection applies the selection flags the user set on top of the
// configured defaults.
func routeSelection(fs *pflag.FlagSet, base route.Selection) (route.Selection, error) {
	sel := base
	if fs.Changed("algorithm") {
		s, _ := fs.GetString("algorithm")
		a, err := route.ParseAlgorithm(s)
		if err != nil {
			return route.Selection{}, err
		}
		sel.Algorithm = a
	}
	if fs.Changed("variable") {
		s, _ := fs.GetString("variable")
		v, err := route.ParseVariable(s)
		if err != nil {
			return route.Selection{}, err
		}
		sel.Variable = v
	}
	if fs.Changed("weight") {
		p, _ := fs.GetInt("weight")
		sel.Weight = route.WeightFromPercent(p)
	}
	return sel, nil
}

func parseEndpointFlag(fs *pflag.FlagSet, name string) (route.Endpoint, error) {
	s, _ := fs.GetString(name)
	if s == "" {
		return route.Endpoint{}, fmt.Errorf("--%s is required", name)
	}
	e, err := geo.ParseEndpoint(s)
	if err != nil {
		return route.Endpoint{}, fmt.Errorf("--%s: %w", name, err)
	}
	return e, nil
}

// routeOnce selects both endpoints on a headless controller and prints the
// rendered route layer as GeoJSON.
func routeOnce(ctx context.Context, args []string, stdout io.Writer) error {
	fs := routeFlags()
	if err := loadConfig(fs, args); err != nil {
		return err
	}

	from, err := parseEndpointFlag(fs, "from")
	if err != nil {
		return err
	}
	to, err := parseEndpointFlag(fs, "to")
	if err != nil {
		return err
	}
	routingCfg, err := config.GetRoutingConfig()
	if err != nil {
		return err
	}
	mapCfg, err := config.GetMapConfig()
	if err != nil {
		return err
	}
	sel, err := routeSelection(fs, routingCfg.Selection)
	if err != nil {
		return err
	}
	wait, _ := fs.GetDuration("wait")

	level := config.GetString("logLevel")
	slogManager := logging.NewSlogManager()
	slogManager.Setup(os.Stderr, level, nil)
	logger := slogManager.Logger()

	loop, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(os.Stderr, level)), 0)
	if err != nil {
		return err
	}
	client, err := api.New(routingCfg.BaseURL, api.WithTimeout(routingCfg.Timeout), api.WithLogger(logger))
	if err != nil {
		return err
	}

	surface := mapview.NewMemory()
	ctrl := controller.New(client, surface, loop,
		controller.WithBounds(mapCfg.Bounds),
		controller.WithSelection(sel),
		controller.WithLogger(logger),
	)
	ctrl.Register(loop)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	go loop.Run(ctx)

	if _, err := loop.Call(ctx, controller.CmdOriginSelected, from); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if _, err := loop.Call(ctx, controller.CmdDestinationSelected, to); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	st, err := waitSettled(ctx, loop)
	if err != nil {
		return err
	}
	if st.LastError != "" {
		return fmt.Errorf("no route: %s", st.LastError)
	}
	fc, visible := surface.RouteLayer()
	if !visible {
		return errors.New("no route rendered")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// waitSettled polls the controller until the latest request has resolved.
func waitSettled(ctx context.Context, c controller.Caller) (controller.Status, error) {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for {
		st, err := controller.CurrentStatus(ctx, c)
		if err != nil {
			return controller.Status{}, err
		}
		if (st.LatestToken > 0 || st.LastError != "") && !st.Pending {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return controller.Status{}, fmt.Errorf("waiting for route: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
