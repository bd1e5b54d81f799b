// Package streaming defines the websocket protocol spoken between the map
// page and the route view server.
package streaming

import (
	"encoding/json"
	"fmt"
)

// Inbound message types, sent by the map page.
const (
	TypeOrigin      = "origin"
	TypeDestination = "destination"
	TypeClear       = "clear"
	TypeAlgorithm   = "algorithm"
	TypeVariable    = "variable"
	TypeWeight      = "weight"
	TypeOverlay     = "overlay"
)

// Outbound message types, sent by the server.
const (
	TypeRouteLayerData       = "route_layer_data"
	TypeRouteLayerVisibility = "route_layer_visibility"
	TypeOverlayVisibility    = "overlay_visibility"
	TypeMapConfig            = "map_config"
	TypeError                = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorMessage reports an inbound message the server rejected.
type ErrorMessage struct {
	For     string `json:"for"` // the message type being rejected
	Message string `json:"message"`
}

// SelectPayload is the directions widget's result for an origin or
// destination pick: a GeoJSON point feature.
type SelectPayload struct {
	Feature struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"feature"`
}

// LngLat returns the picked longitude and latitude.
func (p SelectPayload) LngLat() (lng, lat float64, err error) {
	c := p.Feature.Geometry.Coordinates
	if len(c) < 2 {
		return 0, 0, fmt.Errorf("expected [lng, lat], got %d coordinates", len(c))
	}
	return c[0], c[1], nil
}

// ClearPayload names the endpoint removed from the directions widget.
type ClearPayload struct {
	Endpoint string `json:"endpoint"`
}

// ValuePayload carries a radio-button selection.
type ValuePayload struct {
	Value string `json:"value"`
}

// WeightPayload carries the weight slider position, 0 to 100.
type WeightPayload struct {
	Percent int `json:"percent"`
}

// VisibilityPayload toggles a map layer.
type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

// MapConfigPayload is sent once on connect so the page can set up the map.
type MapConfigPayload struct {
	Center    [2]float64    `json:"center"`
	MaxBounds [2][2]float64 `json:"maxBounds"`
	Zoom      int           `json:"zoom"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
// A nil payload is omitted.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}
