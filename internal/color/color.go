// Package color assigns stroke colours to route lines.
package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// HueStep is the hue advance between consecutive paths, in degrees.
// 360/HueStep distinct hues exist before the sequence repeats.
const HueStep = 60.0

// Default is the stroke colour used when a single route is shown.
const Default = "#888888"

// Hue returns the hue in degrees for the path at ordinal index i.
// The result is always in [0, 360).
func Hue(i int) float64 {
	h := math.Mod(float64(i)*HueStep, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// ForIndex returns a fully saturated, full value colour for path i as a
// lowercase "#rrggbb" string. Index i and i+6 share a colour.
func ForIndex(i int) string {
	return colorful.Hsv(Hue(i), 1, 1).Hex()
}
