// Package route holds the routing domain types shared by the request
// builder, the fetcher and the renderer.
package route

import (
	"fmt"
	"math"
)

// Algorithm selects the search strategy run by the routing service.
type Algorithm string

const (
	AlgorithmDistance      Algorithm = "distance"
	AlgorithmAStar         Algorithm = "A*"
	AlgorithmScalarisation Algorithm = "scalarisation"
	AlgorithmMOSPP         Algorithm = "mospp"
)

// DefaultAlgorithm is active until the user picks another one.
const DefaultAlgorithm = AlgorithmAStar

// Algorithms lists every supported algorithm in UI order.
var Algorithms = []Algorithm{AlgorithmDistance, AlgorithmAStar, AlgorithmScalarisation, AlgorithmMOSPP}

// ParseAlgorithm maps an identifier to an Algorithm. Identifiers are
// matched verbatim since they double as URL path segments.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// MultiPath reports whether the algorithm answers with a set of
// non-dominated paths instead of a single one.
func (a Algorithm) MultiPath() bool {
	return a == AlgorithmMOSPP
}

// Variable is the objective optimised by the default A* strategy.
type Variable string

const (
	VariableDistance  Variable = "distance"
	VariablePollution Variable = "pollution"
)

// DefaultVariable is the objective selected on startup.
const DefaultVariable = VariableDistance

// Variables lists the supported objectives.
var Variables = []Variable{VariableDistance, VariablePollution}

// ParseVariable maps an identifier to a Variable.
func ParseVariable(s string) (Variable, error) {
	for _, v := range Variables {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variable %q", s)
}

// Weight blends two objectives for the scalarised search. Always in [0, 1].
type Weight float64

// DefaultWeight is the slider midpoint.
const DefaultWeight Weight = 0.5

// WeightFromPercent converts a slider position in percent to a Weight,
// clamping out-of-range positions.
func WeightFromPercent(percent int) Weight {
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	return Weight(float64(percent) / 100)
}

// Valid reports whether w lies in [0,1]. NaN is not valid.
func (w Weight) Valid() bool {
	return w >= 0 && w <= 1
}

// Percent returns the slider position for w.
func (w Weight) Percent() int {
	return int(math.Round(float64(w) * 100))
}

// Endpoint is an origin or destination picked on the map.
type Endpoint struct {
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
}

// String formats the endpoint as "lng,lat".
func (e Endpoint) String() string {
	return fmt.Sprintf("%g,%g", e.Longitude, e.Latitude)
}

// Selection is the user's current choice of algorithm, objective and weight.
type Selection struct {
	Algorithm Algorithm `json:"algorithm"`
	Variable  Variable  `json:"variable"`
	Weight    Weight    `json:"weight"`
}

// DefaultSelection returns the selection shown on startup.
func DefaultSelection() Selection {
	return Selection{
		Algorithm: DefaultAlgorithm,
		Variable:  DefaultVariable,
		Weight:    DefaultWeight,
	}
}

// Kind returns the route path segment for the selection. A* is the default
// strategy applied to the chosen variable; any other algorithm names the
// segment itself.
func (s Selection) Kind() string {
	if s.Algorithm == AlgorithmAStar {
		return string(s.Variable)
	}
	return string(s.Algorithm)
}

// Point is a path vertex as returned by the routing service: X is the
// longitude, Y the latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Path is an ordered sequence of points from source to target.
type Path []Point

// Result is a decoded routing response. Multi is set when the service
// answered with an array of paths rather than a single path.
type Result struct {
	Paths []Path
	Multi bool
}

// Single wraps one path as a Result.
func Single(p Path) Result {
	return Result{Paths: []Path{p}}
}

// Multiple wraps a set of alternative paths as a Result.
func Multiple(paths ...Path) Result {
	return Result{Paths: paths, Multi: true}
}
