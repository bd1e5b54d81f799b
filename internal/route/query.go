package route

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateEndpoint checks that e is a finite WGS84 position. NaN fails
// every range tag.
func ValidateEndpoint(e Endpoint) error {
	if err := validatorInstance().Struct(e); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEndpointState, e, err)
	}
	return nil
}

// Query is the request sent to the routing service. It is derived fresh
// for every fetch.
type Query struct {
	Kind       string
	SourceLat  float64
	SourceLong float64
	TargetLat  float64
	TargetLong float64
	Weight     float64
}

// Build derives a Query from the endpoints and selection. Both endpoints
// must be present.
func Build(origin, destination *Endpoint, sel Selection) (Query, error) {
	if origin == nil || destination == nil {
		return Query{}, fmt.Errorf("%w: both origin and destination are required", ErrInvalidEndpointState)
	}
	if err := ValidateEndpoint(*origin); err != nil {
		return Query{}, fmt.Errorf("origin: %w", err)
	}
	if err := ValidateEndpoint(*destination); err != nil {
		return Query{}, fmt.Errorf("destination: %w", err)
	}
	if !sel.Weight.Valid() {
		return Query{}, fmt.Errorf("%w: weight %v outside [0,1]", ErrInvalidEndpointState, float64(sel.Weight))
	}
	kind := sel.Kind()
	if kind == "" {
		return Query{}, fmt.Errorf("%w: empty route kind", ErrInvalidEndpointState)
	}

	return Query{
		Kind:       kind,
		SourceLat:  origin.Latitude,
		SourceLong: origin.Longitude,
		TargetLat:  destination.Latitude,
		TargetLong: destination.Longitude,
		Weight:     float64(sel.Weight),
	}, nil
}

// Path returns the request path "/{kind}/".
func (q Query) Path() string {
	return "/" + url.PathEscape(q.Kind) + "/"
}

// Values returns the query parameters. weight is always included.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("source_lat", formatFloat(q.SourceLat))
	v.Set("source_long", formatFloat(q.SourceLong))
	v.Set("target_lat", formatFloat(q.TargetLat))
	v.Set("target_long", formatFloat(q.TargetLong))
	v.Set("weight", formatFloat(q.Weight))
	return v
}

// URL joins the query onto the service base URL.
func (q Query) URL(baseURL string) string {
	return baseURL + q.Path() + "?" + q.Values().Encode()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
