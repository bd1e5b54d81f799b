package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/urbanroute/routeview/internal/route"
)

// ErrEmptyPath is returned when a path has no vertices to draw.
var ErrEmptyPath = errors.New("path has no points")

// LineString converts a route path into a geom.LineString in longitude,
// latitude order. The path needs at least two distinct, finite points.
func LineString(p route.Path) (geom.LineString, error) {
	if len(p) == 0 {
		return geom.LineString{}, ErrEmptyPath
	}
	flatCoords := make([]float64, 0, len(p)*2)
	for _, pt := range p {
		flatCoords = append(flatCoords, pt.X, pt.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("line string: %w", err)
	}
	return ls, nil
}

// PathGeometry is the geometry drawn for p. A path whose vertices all
// coincide (source and target snapped to the same node) becomes a Point;
// anything else is a LineString.
func PathGeometry(p route.Path) (geom.Geometry, error) {
	if len(p) > 0 && singleVertex(p) {
		pt, err := geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: p[0].X, Y: p[0].Y},
			Type: geom.DimXY,
		})
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("point: %w", err)
		}
		return pt.AsGeometry(), nil
	}
	ls, err := LineString(p)
	if err != nil {
		return geom.Geometry{}, err
	}
	return ls.AsGeometry(), nil
}

func singleVertex(p route.Path) bool {
	for _, pt := range p[1:] {
		if pt != p[0] {
			return false
		}
	}
	return true
}

// PathFromLineString is the inverse of LineString.
func PathFromLineString(ls geom.LineString) route.Path {
	seq := ls.Coordinates()
	path := make(route.Path, seq.Length())
	for i := range path {
		xy := seq.GetXY(i)
		path[i] = route.Point{X: xy.X, Y: xy.Y}
	}
	return path
}
