// Package controller implements the route-map mode controller: it tracks
// endpoint selection, issues routing requests when both endpoints are known
// and repaints the route layer with the latest result.
//
// All controller state is owned by the dispatcher event loop. Handlers are
// registered with Register and must not be called from other goroutines.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/urbanroute/routeview/internal/dispatcher"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/render"
	"github.com/urbanroute/routeview/internal/route"
	"github.com/urbanroute/routeview/internal/session"
)

// Commands handled by the controller.
const (
	CmdOriginSelected      = "origin.selected"
	CmdDestinationSelected = "destination.selected"
	CmdEndpointCleared     = "endpoint.cleared"
	CmdAlgorithmChanged    = "algorithm.changed"
	CmdVariableChanged     = "variable.changed"
	CmdWeightChanged       = "weight.changed"
	CmdOverlayToggled      = "overlay.toggled"
	CmdRouteResolved       = "route.resolved"
	CmdSnapshot            = "state.snapshot"
)

// ErrOutOfBounds is returned when an endpoint lies outside the map bounds.
var ErrOutOfBounds = errors.New("endpoint outside map bounds")

// Fetcher runs a routing query against the routing service.
type Fetcher interface {
	Fetch(ctx context.Context, q route.Query) (route.Result, error)
}

// Surface is the map widget: the route layer plus the background overlay.
type Surface interface {
	render.Surface
	SetOverlayVisibility(visible bool) error
}

// Poster delivers events back onto the event loop.
type Poster interface {
	Send(ctx context.Context, e dispatcher.Event) error
}

// Rendered describes a route that was painted onto the surface.
type Rendered struct {
	Token     uint64
	Query     route.Query
	Selection route.Selection
	Features  geom.GeoJSONFeatureCollection
	At        time.Time
}

// Journal receives every rendered route.
type Journal interface {
	Record(ctx context.Context, r Rendered) error
}

// Resolution is the outcome of one fetch, posted back as CmdRouteResolved.
type Resolution struct {
	Token     uint64
	Query     route.Query
	Selection route.Selection
	Result    route.Result
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithBounds rejects endpoints outside b. Zero bounds accept everything.
func WithBounds(b geo.Bounds) Option {
	return func(c *Controller) { c.bounds = b }
}

// WithSelection sets the initial algorithm, variable and weight.
func WithSelection(s route.Selection) Option {
	return func(c *Controller) { c.selection = s }
}

// WithJournal records rendered routes to j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSession publishes state changes to s.
func WithSession(s *session.Context) Option {
	return func(c *Controller) { c.session = s }
}

// Controller is the mode controller state machine.
type Controller struct {
	tracker   Tracker
	selection route.Selection
	overlay   bool
	bounds    geo.Bounds

	fetcher  Fetcher
	surface  Surface
	renderer *render.Renderer
	poster   Poster
	journal  Journal
	session  *session.Context
	logger   *slog.Logger

	// issued is the last token handed out; inflight is the token whose
	// response will be applied, zero when nothing is awaited.
	issued   uint64
	inflight uint64
	cancel   context.CancelFunc
	lastErr  error

	life context.Context
	stop context.CancelFunc
}

// New creates a Controller drawing on surface, fetching through f and
// posting fetch completions through p.
func New(f Fetcher, surface Surface, p Poster, opts ...Option) *Controller {
	c := &Controller{
		selection: route.DefaultSelection(),
		fetcher:   f,
		surface:   surface,
		renderer:  render.New(surface),
		poster:    p,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.life, c.stop = context.WithCancel(context.Background())
	c.logger = c.logger.With("component", "controller")
	return c
}

// Register installs the controller's handlers on d.
func (c *Controller) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdOriginSelected, func(e dispatcher.Event) (any, error) {
		ep, err := payload[route.Endpoint](e)
		if err != nil {
			return nil, err
		}
		return nil, c.SelectEndpoint(RoleOrigin, ep)
	}, dispatcher.Logged())

	d.Register(CmdDestinationSelected, func(e dispatcher.Event) (any, error) {
		ep, err := payload[route.Endpoint](e)
		if err != nil {
			return nil, err
		}
		return nil, c.SelectEndpoint(RoleDestination, ep)
	}, dispatcher.Logged())

	d.Register(CmdEndpointCleared, func(e dispatcher.Event) (any, error) {
		role, err := payload[Role](e)
		if err != nil {
			return nil, err
		}
		return nil, c.ClearEndpoint(role)
	}, dispatcher.Logged())

	d.Register(CmdAlgorithmChanged, func(e dispatcher.Event) (any, error) {
		a, err := payload[route.Algorithm](e)
		if err != nil {
			return nil, err
		}
		return nil, c.SetAlgorithm(a)
	}, dispatcher.Logged())

	d.Register(CmdVariableChanged, func(e dispatcher.Event) (any, error) {
		v, err := payload[route.Variable](e)
		if err != nil {
			return nil, err
		}
		return nil, c.SetVariable(v)
	}, dispatcher.Logged())

	d.Register(CmdWeightChanged, func(e dispatcher.Event) (any, error) {
		w, err := payload[route.Weight](e)
		if err != nil {
			return nil, err
		}
		return nil, c.SetWeight(w)
	}, dispatcher.Logged())

	d.Register(CmdOverlayToggled, func(e dispatcher.Event) (any, error) {
		return c.ToggleOverlay(), nil
	}, dispatcher.Logged())

	d.Register(CmdRouteResolved, func(e dispatcher.Event) (any, error) {
		r, err := payload[Resolution](e)
		if err != nil {
			return nil, err
		}
		c.Resolve(r)
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdSnapshot, func(e dispatcher.Event) (any, error) {
		return c.Snapshot(), nil
	})
}

func payload[T any](e dispatcher.Event) (T, error) {
	v, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected payload %T", e.Command, e.Payload)
	}
	return v, nil
}

// SelectEndpoint stores e under role and fetches a route once both
// endpoints are known.
func (c *Controller) SelectEndpoint(role Role, e route.Endpoint) error {
	if role != RoleOrigin && role != RoleDestination {
		return fmt.Errorf("unknown endpoint role %q", role)
	}
	if err := route.ValidateEndpoint(e); err != nil {
		return err
	}
	if !c.bounds.IsZero() && !c.bounds.Contains(e) {
		return fmt.Errorf("%w: %s %s", ErrOutOfBounds, role, e)
	}
	c.tracker.Set(role, e)
	c.publishState()
	c.logger.Debug("endpoint selected", "role", role, "endpoint", e.String(), "state", c.tracker.State())
	c.maybeRoute()
	return nil
}

// ClearEndpoint removes the endpoint under role and hides the route layer,
// whatever the other endpoint holds.
func (c *Controller) ClearEndpoint(role Role) error {
	if role != RoleOrigin && role != RoleDestination {
		return fmt.Errorf("unknown endpoint role %q", role)
	}
	c.tracker.Clear(role)
	c.abandon()
	c.publishState()
	if err := c.renderer.Hide(); err != nil {
		c.logger.Error("failed to hide route layer", "error", err)
		return err
	}
	return nil
}

// SetAlgorithm changes the algorithm, refetching when Ready.
func (c *Controller) SetAlgorithm(a route.Algorithm) error {
	if _, err := route.ParseAlgorithm(string(a)); err != nil {
		return err
	}
	c.selection.Algorithm = a
	c.maybeRoute()
	return nil
}

// SetVariable changes the A* objective, refetching when Ready.
func (c *Controller) SetVariable(v route.Variable) error {
	if _, err := route.ParseVariable(string(v)); err != nil {
		return err
	}
	c.selection.Variable = v
	c.maybeRoute()
	return nil
}

// SetWeight changes the secondary objective weight, refetching when Ready.
func (c *Controller) SetWeight(w route.Weight) error {
	if !w.Valid() {
		return fmt.Errorf("weight %v outside [0,1]", float64(w))
	}
	c.selection.Weight = w
	c.maybeRoute()
	return nil
}

// ToggleOverlay flips the background overlay and returns its new visibility.
// Routing state is untouched.
func (c *Controller) ToggleOverlay() bool {
	c.overlay = !c.overlay
	if err := c.surface.SetOverlayVisibility(c.overlay); err != nil {
		c.logger.Error("failed to set overlay visibility", "error", err)
	}
	return c.overlay
}

// Resolve applies a fetch outcome. Anything but the latest issued request
// is discarded.
func (c *Controller) Resolve(r Resolution) {
	if c.inflight == 0 || r.Token != c.inflight {
		c.logger.Debug("discarding stale route response", "token", r.Token, "latest", c.issued)
		return
	}
	c.inflight = 0
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if r.Err != nil {
		c.lastErr = r.Err
		c.logger.Warn("route fetch failed", "token", r.Token, "kind", r.Query.Kind, "error", r.Err)
		return
	}

	fc, err := c.renderer.Render(r.Result, r.Selection.Algorithm)
	if err != nil {
		c.lastErr = err
		c.logger.Warn("route not rendered", "token", r.Token, "kind", r.Query.Kind, "error", err)
		return
	}
	c.lastErr = nil
	c.logger.Info("route rendered", "token", r.Token, "kind", r.Query.Kind, "paths", len(fc))

	if c.journal != nil {
		rec := Rendered{
			Token:     r.Token,
			Query:     r.Query,
			Selection: r.Selection,
			Features:  fc,
			At:        time.Now(),
		}
		if err := c.journal.Record(c.life, rec); err != nil {
			c.logger.Error("failed to record route", "token", r.Token, "error", err)
		}
	}
}

// Snapshot returns the current controller status.
func (c *Controller) Snapshot() Status {
	layer := c.renderer.State()
	s := Status{
		State:        c.tracker.State().String(),
		Origin:       c.tracker.Origin(),
		Destination:  c.tracker.Destination(),
		Selection:    c.selection,
		Kind:         c.selection.Kind(),
		Overlay:      c.overlay,
		RouteVisible: layer.Visible,
		Paths:        len(layer.Features),
		LatestToken:  c.issued,
		Pending:      c.inflight != 0,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Close cancels any in-flight fetch.
func (c *Controller) Close() {
	c.abandon()
	c.stop()
}

func (c *Controller) maybeRoute() {
	if !c.tracker.Complete() {
		return
	}
	// Whatever was in flight answers for a superseded selection.
	c.abandon()
	q, err := route.Build(c.tracker.Origin(), c.tracker.Destination(), c.selection)
	if err != nil {
		c.lastErr = err
		c.logger.Error("failed to build route query", "error", err)
		return
	}

	c.issued++
	token := c.issued
	c.inflight = token

	ctx, cancel := context.WithCancel(c.life)
	c.cancel = cancel
	sel := c.selection

	c.logger.Debug("fetching route", "token", token, "kind", q.Kind)
	go func() {
		res, err := c.fetcher.Fetch(ctx, q)
		e := dispatcher.Event{
			Command: CmdRouteResolved,
			Payload: Resolution{Token: token, Query: q, Selection: sel, Result: res, Err: err},
		}
		if perr := c.poster.Send(c.life, e); perr != nil {
			c.logger.Debug("route response not delivered", "token", token, "error", perr)
		}
	}()
}

// abandon cancels the in-flight request so its response is ignored.
func (c *Controller) abandon() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inflight = 0
}

func (c *Controller) publishState() {
	if c.session != nil {
		c.session.SetState(c.tracker.State().String())
	}
}
