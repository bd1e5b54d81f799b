package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/urbanroute/routeview/internal/route"
	"github.com/wroge/wgs84"
)

// Endpoints arrive as WGS84 longitude/latitude (EPSG:4326). Distances are
// measured in web mercator (EPSG:3857), the projection the map renders in,
// and scaled back to ground metres with the latitude correction.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// DefaultCenter is the initial map centre (central London).
var DefaultCenter = route.Endpoint{Longitude: -0.118092, Latitude: 51.509865}

// DefaultZoom is the initial map zoom level.
const DefaultZoom = 10

// BritishIsles restricts panning and endpoint selection to the British Isles.
var BritishIsles = Bounds{
	MinLongitude: -10.8544921875,
	MinLatitude:  49.82380908513249,
	MaxLongitude: 2.021484375,
	MaxLatitude:  59.478568831926395,
}

// Bounds is a longitude/latitude rectangle.
type Bounds struct {
	MinLongitude float64 `json:"minLongitude"`
	MinLatitude  float64 `json:"minLatitude"`
	MaxLongitude float64 `json:"maxLongitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
}

// Contains reports whether e lies inside b, edges included.
func (b Bounds) Contains(e route.Endpoint) bool {
	return e.Longitude >= b.MinLongitude && e.Longitude <= b.MaxLongitude &&
		e.Latitude >= b.MinLatitude && e.Latitude <= b.MaxLatitude
}

// IsZero reports whether no bounds are set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Pairs returns the bounds in the [[minLng,minLat],[maxLng,maxLat]] form map
// widgets expect.
func (b Bounds) Pairs() [2][2]float64 {
	return [2][2]float64{
		{b.MinLongitude, b.MinLatitude},
		{b.MaxLongitude, b.MaxLatitude},
	}
}

// ParseEndpoint parses a string in the format "long,lat" into an Endpoint
func ParseEndpoint(coords string) (route.Endpoint, error) {
	values, err := parseFloats(coords, 2)
	if err != nil {
		return route.Endpoint{}, err
	}
	e := route.Endpoint{Longitude: values[0], Latitude: values[1]}
	if !(e.Longitude >= -180 && e.Longitude <= 180 && e.Latitude >= -90 && e.Latitude <= 90) {
		return route.Endpoint{}, ErrInvalidCoordinates
	}
	return e, nil
}

// ParseBounds parses "minLong,minLat,maxLong,maxLat".
func ParseBounds(s string) (Bounds, error) {
	values, err := parseFloats(s, 4)
	if err != nil {
		return Bounds{}, err
	}
	b := Bounds{
		MinLongitude: values[0],
		MinLatitude:  values[1],
		MaxLongitude: values[2],
		MaxLatitude:  values[3],
	}
	if b.MinLongitude > b.MaxLongitude || b.MinLatitude > b.MaxLatitude {
		return Bounds{}, ErrInvalidCoordinates
	}
	return b, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, ErrInvalidCoordinates
	}
	values := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, ErrInvalidCoordinates
		}
		values[i] = f
	}
	return values, nil
}

var (
	toMercator     func(a, b, c float64) (float64, float64, float64)
	toMercatorOnce sync.Once
)

// Mercator projects a longitude and latitude to web mercator metres.
func Mercator(longitude, latitude float64) (x, y float64) {
	toMercatorOnce.Do(func() {
		toMercator = wgs84.EPSG().Transform(4326, 3857)
	})
	x, y, _ = toMercator(longitude, latitude, 0)
	return x, y
}

// PathLength returns the approximate ground length of p in metres.
func PathLength(p route.Path) float64 {
	var total float64
	for i := 1; i < len(p); i++ {
		x0, y0 := Mercator(p[i-1].X, p[i-1].Y)
		x1, y1 := Mercator(p[i].X, p[i].Y)
		scale := math.Cos((p[i-1].Y + p[i].Y) / 2 * math.Pi / 180)
		total += math.Hypot(x1-x0, y1-y0) * scale
	}
	return total
}
