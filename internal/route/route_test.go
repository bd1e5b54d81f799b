package route

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	for _, a := range Algorithms {
		got, err := ParseAlgorithm(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseAlgorithm("dijkstra")
	require.Error(t, err)

	_, err = ParseAlgorithm("MOSPP")
	require.Error(t, err, "identifiers are matched verbatim")
}

func TestAlgorithm_MultiPath(t *testing.T) {
	assert.True(t, AlgorithmMOSPP.MultiPath())
	assert.False(t, AlgorithmAStar.MultiPath())
	assert.False(t, AlgorithmDistance.MultiPath())
	assert.False(t, AlgorithmScalarisation.MultiPath())
}

func TestParseVariable(t *testing.T) {
	v, err := ParseVariable("pollution")
	require.NoError(t, err)
	assert.Equal(t, VariablePollution, v)

	_, err = ParseVariable("noise")
	require.Error(t, err)
}

func TestWeightFromPercent(t *testing.T) {
	assert.Equal(t, Weight(0.5), WeightFromPercent(50))
	assert.Equal(t, Weight(0), WeightFromPercent(-10))
	assert.Equal(t, Weight(1), WeightFromPercent(250))
	assert.Equal(t, Weight(0.25), WeightFromPercent(25))
	assert.Equal(t, 25, Weight(0.25).Percent())
}

func TestDefaultSelection(t *testing.T) {
	sel := DefaultSelection()
	assert.Equal(t, AlgorithmAStar, sel.Algorithm)
	assert.Equal(t, VariableDistance, sel.Variable)
	assert.Equal(t, Weight(0.5), sel.Weight)
}

func TestSelection_Kind(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want string
	}{
		{"astar uses variable", Selection{Algorithm: AlgorithmAStar, Variable: VariableDistance}, "distance"},
		{"astar pollution", Selection{Algorithm: AlgorithmAStar, Variable: VariablePollution}, "pollution"},
		{"mospp overrides variable", Selection{Algorithm: AlgorithmMOSPP, Variable: VariablePollution}, "mospp"},
		{"scalarisation", Selection{Algorithm: AlgorithmScalarisation, Variable: VariableDistance}, "scalarisation"},
		{"distance", Selection{Algorithm: AlgorithmDistance, Variable: VariablePollution}, "distance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Kind())
		})
	}
}

func TestBuild_LondonScenario(t *testing.T) {
	origin := &Endpoint{Longitude: -0.118, Latitude: 51.510}
	destination := &Endpoint{Longitude: -0.128, Latitude: 51.500}

	q, err := Build(origin, destination, DefaultSelection())
	require.NoError(t, err)

	assert.Equal(t, "distance", q.Kind)
	assert.Equal(t, "/distance/", q.Path())

	v := q.Values()
	assert.Equal(t, "51.51", v.Get("source_lat"))
	assert.Equal(t, "-0.118", v.Get("source_long"))
	assert.Equal(t, "51.5", v.Get("target_lat"))
	assert.Equal(t, "-0.128", v.Get("target_long"))
	assert.Equal(t, "0.5", v.Get("weight"))
}

func TestBuild_WeightAlwaysIncluded(t *testing.T) {
	sel := Selection{Algorithm: AlgorithmDistance, Variable: VariableDistance, Weight: 0}
	q, err := Build(&Endpoint{}, &Endpoint{}, sel)
	require.NoError(t, err)
	assert.True(t, q.Values().Has("weight"))
	assert.Equal(t, "0", q.Values().Get("weight"))
}

func TestBuild_MissingEndpoint(t *testing.T) {
	e := &Endpoint{Longitude: 1, Latitude: 1}

	_, err := Build(nil, e, DefaultSelection())
	assert.True(t, errors.Is(err, ErrInvalidEndpointState))

	_, err = Build(e, nil, DefaultSelection())
	assert.True(t, errors.Is(err, ErrInvalidEndpointState))

	_, err = Build(nil, nil, DefaultSelection())
	assert.True(t, errors.Is(err, ErrInvalidEndpointState))
}

func TestBuild_OutOfRange(t *testing.T) {
	ok := &Endpoint{Longitude: 0, Latitude: 0}

	_, err := Build(&Endpoint{Longitude: 0, Latitude: 91}, ok, DefaultSelection())
	assert.ErrorIs(t, err, ErrInvalidEndpointState)

	_, err = Build(ok, &Endpoint{Longitude: -181, Latitude: 0}, DefaultSelection())
	assert.ErrorIs(t, err, ErrInvalidEndpointState)

	sel := DefaultSelection()
	sel.Weight = 1.5
	_, err = Build(ok, ok, sel)
	assert.ErrorIs(t, err, ErrInvalidEndpointState)
}

func TestQuery_URL(t *testing.T) {
	q := Query{Kind: "mospp", SourceLat: 1, SourceLong: 2, TargetLat: 3, TargetLong: 4, Weight: 0.5}
	assert.Equal(t,
		"http://localhost:8000/mospp/?source_lat=1&source_long=2&target_lat=3&target_long=4&weight=0.5",
		q.URL("http://localhost:8000"))
}

func TestDecodeResult_SinglePath(t *testing.T) {
	res, err := DecodeResult([]byte(`[{"x":-0.118,"y":51.510},{"x":-0.128,"y":51.500}]`))
	require.NoError(t, err)

	assert.False(t, res.Multi)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, Path{{X: -0.118, Y: 51.51}, {X: -0.128, Y: 51.5}}, res.Paths[0])
}

func TestDecodeResult_MultiPath(t *testing.T) {
	res, err := DecodeResult([]byte(`[[{"x":0,"y":0},{"x":1,"y":1}],[{"x":0,"y":0},{"x":2,"y":2}]]`))
	require.NoError(t, err)

	assert.True(t, res.Multi)
	require.Len(t, res.Paths, 2)
	assert.Equal(t, Point{X: 2, Y: 2}, res.Paths[1][1])
}

func TestDecodeResult_StringCoordinates(t *testing.T) {
	res, err := DecodeResult([]byte(`[{"x":"-0.1167","y":"51.5103"}]`))
	require.NoError(t, err)
	assert.Equal(t, Point{X: -0.1167, Y: 51.5103}, res.Paths[0][0])
}

func TestDecodeResult_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"x":1,"y":2}`},
		{"empty array", `[]`},
		{"numbers", `[1,2,3]`},
		{"missing y", `[{"x":1}]`},
		{"non numeric string", `[{"x":"a","y":"b"}]`},
		{"mixed shapes", `[[{"x":0,"y":0}],{"x":1,"y":1}]`},
		{"empty inner path", `[[{"x":0,"y":0}],[]]`},
		{"nested too deep", `[[[{"x":0,"y":0}]]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResult([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResult)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, ValidateEndpoint(Endpoint{Longitude: -0.118, Latitude: 51.51}))
	assert.ErrorIs(t, ValidateEndpoint(Endpoint{Longitude: 0, Latitude: 95}), ErrInvalidEndpointState)
	assert.ErrorIs(t, ValidateEndpoint(Endpoint{Longitude: math.NaN(), Latitude: 0}), ErrInvalidEndpointState)
	assert.ErrorIs(t, ValidateEndpoint(Endpoint{Longitude: 0, Latitude: math.Inf(1)}), ErrInvalidEndpointState)
}

func TestWeight_Valid(t *testing.T) {
	assert.True(t, Weight(0).Valid())
	assert.True(t, Weight(1).Valid())
	assert.False(t, Weight(-0.1).Valid())
	assert.False(t, Weight(math.NaN()).Valid())

	sel := DefaultSelection()
	sel.Weight = Weight(math.NaN())
	_, err := Build(&Endpoint{}, &Endpoint{}, sel)
	assert.ErrorIs(t, err, ErrInvalidEndpointState)
}
