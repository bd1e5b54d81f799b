package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_OmitsNilPayload(t *testing.T) {
	data, err := Marshal(TypeOverlay, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"overlay"}`, string(data))
}

func TestMarshal_WrapsPayload(t *testing.T) {
	data, err := Marshal(TypeRouteLayerVisibility, VisibilityPayload{Visible: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"route_layer_visibility","payload":{"visible":true}}`, string(data))
}

func TestSelectPayload_LngLat(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(
		`{"type":"origin","payload":{"feature":{"type":"Feature","geometry":{"type":"Point","coordinates":[-0.118,51.51]}}}}`,
	), &env))

	var p SelectPayload
	require.NoError(t, env.Decode(&p))
	lng, lat, err := p.LngLat()
	require.NoError(t, err)
	assert.Equal(t, -0.118, lng)
	assert.Equal(t, 51.51, lat)
}

func TestSelectPayload_MissingCoordinates(t *testing.T) {
	_, _, err := SelectPayload{}.LngLat()
	assert.Error(t, err)
}

func TestEnvelope_DecodeMissingPayload(t *testing.T) {
	var p WeightPayload
	assert.Error(t, Envelope{Type: TypeWeight}.Decode(&p))
}
