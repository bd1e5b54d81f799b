package route

import "errors"

var (
	// ErrInvalidEndpointState is returned when a query is built without
	// both endpoints, or with out-of-range values.
	ErrInvalidEndpointState = errors.New("invalid endpoint state")

	// ErrRouteFetchFailed covers transport errors, non-2xx responses and
	// bodies that are not JSON.
	ErrRouteFetchFailed = errors.New("route fetch failed")

	// ErrMalformedResult is returned for JSON that matches neither
	// accepted response shape.
	ErrMalformedResult = errors.New("malformed route result")
)
