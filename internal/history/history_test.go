package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/render"
	"github.com/urbanroute/routeview/internal/route"
	"github.com/urbanroute/routeview/internal/session"
)

type recorder struct {
	entries []*Entry
	err     error
}

func (r *recorder) Init() error  { return nil }
func (r *recorder) Close() error { return nil }

func (r *recorder) RecordRoute(_ context.Context, e *Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func rendered(t *testing.T, res route.Result, sel route.Selection) controller.Rendered {
	t.Helper()
	fc, err := render.Build(res, sel.Algorithm)
	require.NoError(t, err)
	return controller.Rendered{
		Token: 4,
		Query: route.Query{
			Kind:       sel.Kind(),
			SourceLat:  51.510,
			SourceLong: -0.118,
			TargetLat:  51.500,
			TargetLong: -0.128,
			Weight:     float64(sel.Weight),
		},
		Selection: sel,
		Features:  fc,
		At:        time.Unix(1700000000, 0),
	}
}

func TestNewEntry(t *testing.T) {
	path := route.Path{{X: -0.118, Y: 51.510}, {X: -0.128, Y: 51.500}}
	r := rendered(t, route.Single(path), route.DefaultSelection())

	e := NewEntry("sess", r)
	assert.Equal(t, "sess", e.SessionID)
	assert.Equal(t, uint64(4), e.Token)
	assert.Equal(t, "distance", e.Kind)
	assert.Equal(t, route.Endpoint{Longitude: -0.118, Latitude: 51.510}, e.Origin)
	assert.Equal(t, route.Endpoint{Longitude: -0.128, Latitude: 51.500}, e.Destination)
	assert.Equal(t, 1, e.Paths)
	assert.InDelta(t, geo.PathLength(path), e.LengthMeters, 1e-6)
	assert.True(t, e.RecordedAt.Equal(time.Unix(1700000000, 0)))
}

func TestNewEntry_ShortestOfSeveralPaths(t *testing.T) {
	long := route.Path{{X: 0, Y: 51}, {X: 0.5, Y: 51.5}, {X: 1, Y: 51}}
	short := route.Path{{X: 0, Y: 51}, {X: 1, Y: 51}}
	sel := route.Selection{Algorithm: route.AlgorithmMOSPP, Variable: route.VariableDistance, Weight: 0.5}

	e := NewEntry("", rendered(t, route.Multiple(long, short), sel))
	assert.Equal(t, 2, e.Paths)
	assert.InDelta(t, geo.PathLength(short), e.LengthMeters, 1e-6)
}

func TestNewEntry_PointPathIsZeroLength(t *testing.T) {
	e := NewEntry("", rendered(t, route.Single(route.Path{{X: -0.118, Y: 51.51}}), route.DefaultSelection()))
	assert.Equal(t, 1, e.Paths)
	assert.Zero(t, e.LengthMeters)

	line := route.Path{{X: 0, Y: 51}, {X: 1, Y: 51}}
	point := route.Path{{X: 0, Y: 51}, {X: 0, Y: 51}}
	sel := route.Selection{Algorithm: route.AlgorithmMOSPP, Variable: route.VariableDistance, Weight: 0.5}
	e = NewEntry("", rendered(t, route.Multiple(line, point), sel))
	assert.Zero(t, e.LengthMeters)
}

func TestJournal_Record(t *testing.T) {
	rec := &recorder{}
	s := session.NewContext()
	j := NewJournal(rec, s)

	r := rendered(t, route.Single(route.Path{{X: 0, Y: 0}, {X: 1, Y: 1}}), route.DefaultSelection())
	require.NoError(t, j.Record(context.Background(), r))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, s.ID(), rec.entries[0].SessionID)
}

func TestJournal_PropagatesError(t *testing.T) {
	boom := errors.New("disk full")
	j := NewJournal(&recorder{err: boom}, nil)

	r := rendered(t, route.Single(route.Path{{X: 0, Y: 0}, {X: 1, Y: 1}}), route.DefaultSelection())
	assert.ErrorIs(t, j.Record(context.Background(), r), boom)
}

var _ controller.Journal = (*Journal)(nil)

func TestGeohash(t *testing.T) {
	westminster := route.Endpoint{Longitude: -0.1276, Latitude: 51.5007}

	assert.Equal(t, "gcpuvp7", Geohash(westminster, GeohashPrecision))
	assert.Equal(t, "gcp", Geohash(westminster, 3))
	assert.Equal(t, "gcpuvp7", Geohash(westminster, 0))
	assert.Equal(t, "gcpuvp7", Geohash(westminster, 12))
}
