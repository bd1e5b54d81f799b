package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts coordinates as JSON numbers or numeric strings and
// rejects points missing either coordinate.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		X *json.RawMessage `json:"x"`
		Y *json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.X == nil || raw.Y == nil {
		return fmt.Errorf("point %s is missing a coordinate", data)
	}
	x, err := parseCoord(*raw.X)
	if err != nil {
		return fmt.Errorf("x: %w", err)
	}
	y, err := parseCoord(*raw.Y)
	if err != nil {
		return fmt.Errorf("y: %w", err)
	}
	p.X, p.Y = x, y
	return nil
}

func parseCoord(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("coordinate %s is neither a number nor a string", raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q is not numeric", s)
	}
	return f, nil
}

// DecodeResult parses a routing response body. Two shapes are accepted:
// an array of points (one path) and an array of arrays of points (several
// non-dominated paths). Anything else is ErrMalformedResult.
func DecodeResult(body []byte) (Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return Result{}, fmt.Errorf("%w: expected a JSON array: %v", ErrMalformedResult, err)
	}
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: empty path", ErrMalformedResult)
	}

	switch firstByte(items[0]) {
	case '{':
		path, err := decodePath(items)
		if err != nil {
			return Result{}, err
		}
		return Single(path), nil
	case '[':
		paths := make([]Path, 0, len(items))
		for i, item := range items {
			var points []json.RawMessage
			if firstByte(item) != '[' {
				return Result{}, fmt.Errorf("%w: path %d is not an array", ErrMalformedResult, i)
			}
			if err := json.Unmarshal(item, &points); err != nil {
				return Result{}, fmt.Errorf("%w: path %d: %v", ErrMalformedResult, i, err)
			}
			if len(points) == 0 {
				return Result{}, fmt.Errorf("%w: path %d is empty", ErrMalformedResult, i)
			}
			path, err := decodePath(points)
			if err != nil {
				return Result{}, fmt.Errorf("path %d: %w", i, err)
			}
			paths = append(paths, path)
		}
		return Multiple(paths...), nil
	default:
		return Result{}, fmt.Errorf("%w: unexpected element %s", ErrMalformedResult, items[0])
	}
}

func decodePath(items []json.RawMessage) (Path, error) {
	path := make(Path, len(items))
	for i, item := range items {
		if firstByte(item) != '{' {
			return nil, fmt.Errorf("%w: point %d is not an object", ErrMalformedResult, i)
		}
		if err := json.Unmarshal(item, &path[i]); err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrMalformedResult, i, err)
		}
	}
	return path, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
