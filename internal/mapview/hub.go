// Package mapview bridges the controller to map pages in the browser. The
// Hub is the controller's Surface: layer updates are broadcast to every
// connected page, and page interactions are posted back to the event loop.
package mapview

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	ws "github.com/gorilla/websocket"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/urbanroute/routeview/internal/dispatcher"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/route"
	"github.com/urbanroute/routeview/pkg/streaming"
)

// Poster queues events on the controller's event loop.
type Poster interface {
	Post(e dispatcher.Event) error
}

// Config describes the initial map view sent to each page.
type Config struct {
	Center         route.Endpoint
	Zoom           int
	Bounds         geo.Bounds
	AllowedOrigins []string
}

// Hub fans surface updates out to every connected page.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	// Latest frame per layer, replayed to new pages in this order.
	mapConfig    []byte
	overlay      []byte
	layerData    []byte
	layerVisible []byte

	poster   Poster
	upgrader ws.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub posting page events to p.
func NewHub(cfg Config, p Poster, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		poster:  p,
		logger:  logger.With("component", "mapview"),
	}
	h.upgrader = ws.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)}

	var err error
	h.mapConfig, err = streaming.Marshal(streaming.TypeMapConfig, streaming.MapConfigPayload{
		Center:    [2]float64{cfg.Center.Longitude, cfg.Center.Latitude},
		MaxBounds: cfg.Bounds.Pairs(),
		Zoom:      cfg.Zoom,
	})
	if err != nil {
		return nil, err
	}
	if h.overlay, err = streaming.Marshal(streaming.TypeOverlayVisibility, streaming.VisibilityPayload{}); err != nil {
		return nil, err
	}
	if h.layerVisible, err = streaming.Marshal(streaming.TypeRouteLayerVisibility, streaming.VisibilityPayload{}); err != nil {
		return nil, err
	}
	return h, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// SetRouteLayerData replaces the route layer on every page.
func (h *Hub) SetRouteLayerData(fc geom.GeoJSONFeatureCollection) error {
	data, err := streaming.Marshal(streaming.TypeRouteLayerData, fc)
	if err != nil {
		return err
	}
	h.broadcast(data, &h.layerData)
	return nil
}

// SetRouteLayerVisibility shows or hides the route layer on every page.
func (h *Hub) SetRouteLayerVisibility(visible bool) error {
	data, err := streaming.Marshal(streaming.TypeRouteLayerVisibility, streaming.VisibilityPayload{Visible: visible})
	if err != nil {
		return err
	}
	h.broadcast(data, &h.layerVisible)
	return nil
}

// SetOverlayVisibility shows or hides the background overlay on every page.
func (h *Hub) SetOverlayVisibility(visible bool) error {
	data, err := streaming.Marshal(streaming.TypeOverlayVisibility, streaming.VisibilityPayload{Visible: visible})
	if err != nil {
		return err
	}
	h.broadcast(data, &h.overlay)
	return nil
}

// broadcast caches data in slot and sends it to all pages.
func (h *Hub) broadcast(data []byte, slot *[]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*slot = data
	for c := range h.clients {
		c.send(data)
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves one page.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := newClient(conn, h.logger.With("remote", r.RemoteAddr))

	if err := h.add(c); err != nil {
		c.close()
		return
	}
	h.logger.Info("Map page connected", "remote", r.RemoteAddr)

	go c.writeLoop()
	c.readLoop(h.handle)

	h.remove(c)
	c.close()
	h.logger.Info("Map page disconnected", "remote", r.RemoteAddr)
}

// add registers c and queues the cached layer state for it. Holding the
// lock keeps the replay ahead of any concurrent broadcast.
func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("hub closed")
	}
	h.clients[c] = struct{}{}
	for _, frame := range [][]byte{h.mapConfig, h.overlay, h.layerData, h.layerVisible} {
		if frame != nil {
			c.send(frame)
		}
	}
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) handle(env streaming.Envelope) error {
	e, err := Translate(env)
	if err != nil {
		return err
	}
	return h.poster.Post(e)
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every page and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}
