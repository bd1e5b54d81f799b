// Package render turns routing results into route-layer GeoJSON and pushes
// it to the map surface.
package render

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/urbanroute/routeview/internal/color"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/route"
)

// Surface is the part of the map widget that displays routes.
type Surface interface {
	SetRouteLayerData(fc geom.GeoJSONFeatureCollection) error
	SetRouteLayerVisibility(visible bool) error
}

// Feature property keys.
const (
	PropColor  = "color"
	PropIndex  = "index"
	PropHue    = "hue"
	PropLength = "lengthMeters"
)

// LayerState mirrors what the route layer currently shows.
type LayerState struct {
	Visible  bool
	Features geom.GeoJSONFeatureCollection
}

// Build converts res into a feature collection. For multi-path algorithms
// every path becomes its own feature, coloured by its ordinal index; all
// other algorithms must yield exactly one path, drawn in the default colour.
// Paths that cannot be drawn (empty, non-finite) are ErrMalformedResult.
func Build(res route.Result, alg route.Algorithm) (geom.GeoJSONFeatureCollection, error) {
	if len(res.Paths) == 0 {
		return nil, fmt.Errorf("%w: no paths", route.ErrMalformedResult)
	}

	if alg.MultiPath() {
		fc := make(geom.GeoJSONFeatureCollection, len(res.Paths))
		for i, p := range res.Paths {
			f, err := pathFeature(p, i, color.ForIndex(i))
			if err != nil {
				return nil, err
			}
			f.Properties[PropHue] = color.Hue(i)
			fc[i] = f
		}
		return fc, nil
	}

	if len(res.Paths) != 1 {
		return nil, fmt.Errorf("%w: %s expects a single path, got %d", route.ErrMalformedResult, alg, len(res.Paths))
	}
	f, err := pathFeature(res.Paths[0], 0, color.Default)
	if err != nil {
		return nil, err
	}
	return geom.GeoJSONFeatureCollection{f}, nil
}

// pathFeature draws p as a line, or as a point when the path never leaves
// its first vertex.
func pathFeature(p route.Path, index int, stroke string) (geom.GeoJSONFeature, error) {
	g, err := geo.PathGeometry(p)
	if err != nil {
		return geom.GeoJSONFeature{}, fmt.Errorf("%w: path %d: %v", route.ErrMalformedResult, index, err)
	}
	return geom.GeoJSONFeature{
		Geometry: g,
		Properties: map[string]interface{}{
			PropColor:  stroke,
			PropIndex:  index,
			PropLength: geo.PathLength(p),
		},
	}, nil
}

// Renderer owns the route layer of one map surface.
type Renderer struct {
	surface Surface
	state   LayerState
}

// New creates a Renderer drawing onto s.
func New(s Surface) *Renderer {
	return &Renderer{
		surface: s,
		state:   LayerState{Features: geom.GeoJSONFeatureCollection{}},
	}
}

// Render replaces the route layer with res and shows it. On error the
// layer keeps whatever it showed before.
func (r *Renderer) Render(res route.Result, alg route.Algorithm) (geom.GeoJSONFeatureCollection, error) {
	fc, err := Build(res, alg)
	if err != nil {
		return nil, err
	}
	if err := r.surface.SetRouteLayerData(fc); err != nil {
		return nil, fmt.Errorf("set route layer data: %w", err)
	}
	r.state.Features = fc
	if err := r.surface.SetRouteLayerVisibility(true); err != nil {
		return fc, fmt.Errorf("show route layer: %w", err)
	}
	r.state.Visible = true
	return fc, nil
}

// Hide empties the route layer and hides it.
func (r *Renderer) Hide() error {
	r.state.Visible = false
	r.state.Features = geom.GeoJSONFeatureCollection{}
	if err := r.surface.SetRouteLayerVisibility(false); err != nil {
		return fmt.Errorf("hide route layer: %w", err)
	}
	if err := r.surface.SetRouteLayerData(r.state.Features); err != nil {
		return fmt.Errorf("clear route layer data: %w", err)
	}
	return nil
}

// State returns the current layer state.
func (r *Renderer) State() LayerState {
	return r.state
}
