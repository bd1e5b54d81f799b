package mapview

import (
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Memory is a Surface that only remembers what it was told to show. The
// headless route command draws onto it.
type Memory struct {
	mu           sync.Mutex
	data         geom.GeoJSONFeatureCollection
	routeVisible bool
	overlay      bool
	updates      int
}

// NewMemory creates an empty, hidden surface.
func NewMemory() *Memory {
	return &Memory{data: geom.GeoJSONFeatureCollection{}}
}

func (m *Memory) SetRouteLayerData(fc geom.GeoJSONFeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = fc
	m.updates++
	return nil
}

func (m *Memory) SetRouteLayerVisibility(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeVisible = visible
	m.updates++
	return nil
}

func (m *Memory) SetOverlayVisibility(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = visible
	return nil
}

// RouteLayer returns the route layer contents and visibility.
func (m *Memory) RouteLayer() (geom.GeoJSONFeatureCollection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.routeVisible
}

// Overlay reports whether the overlay is shown.
func (m *Memory) Overlay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlay
}

// Updates counts route layer writes.
func (m *Memory) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}
