// Package history records every route painted on the map so sessions can
// be reviewed later.
package history

import (
	"context"
	"time"

	"github.com/mmcloughlin/geohash"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/route"
	"github.com/urbanroute/routeview/internal/session"
)

// Backend is the interface all history stores must satisfy.
type Backend interface {
	Init() error
	Close() error

	RecordRoute(ctx context.Context, e *Entry) error
}

// Reader is implemented by backends that can answer history queries.
type Reader interface {
	// Session returns the routes recorded in a session, oldest first.
	Session(ctx context.Context, sessionID string) ([]Entry, error)
	// StartingNear returns up to limit routes whose origin shares a geohash
	// prefix of precision characters with e, newest first.
	StartingNear(ctx context.Context, e route.Endpoint, precision uint, limit int) ([]Entry, error)
}

// GeohashPrecision is the number of characters kept per endpoint, about
// 150m of resolution.
const GeohashPrecision = 7

// Geohash encodes e at precision, clamped to [1, GeohashPrecision].
func Geohash(e route.Endpoint, precision uint) string {
	if precision == 0 || precision > GeohashPrecision {
		precision = GeohashPrecision
	}
	return geohash.EncodeWithPrecision(e.Latitude, e.Longitude, precision)
}

// Entry is one rendered route.
type Entry struct {
	SessionID    string                        `json:"sessionId"`
	Token        uint64                        `json:"token"`
	Kind         string                        `json:"kind"`
	Algorithm    route.Algorithm               `json:"algorithm"`
	Variable     route.Variable                `json:"variable"`
	Weight       float64                       `json:"weight"`
	Origin       route.Endpoint                `json:"origin"`
	Destination  route.Endpoint                `json:"destination"`
	Paths        int                           `json:"paths"`
	LengthMeters float64                       `json:"lengthMeters"`
	Features     geom.GeoJSONFeatureCollection `json:"features"`
	RecordedAt   time.Time                     `json:"recordedAt"`
}

// NewEntry builds an Entry from a rendered route. LengthMeters is the
// length of the shortest drawn path; a point path counts as zero.
func NewEntry(sessionID string, r controller.Rendered) *Entry {
	e := &Entry{
		SessionID: sessionID,
		Token:     r.Token,
		Kind:      r.Query.Kind,
		Algorithm: r.Selection.Algorithm,
		Variable:  r.Selection.Variable,
		Weight:    r.Query.Weight,
		Origin: route.Endpoint{
			Longitude: r.Query.SourceLong,
			Latitude:  r.Query.SourceLat,
		},
		Destination: route.Endpoint{
			Longitude: r.Query.TargetLong,
			Latitude:  r.Query.TargetLat,
		},
		Paths:      len(r.Features),
		Features:   r.Features,
		RecordedAt: r.At,
	}

	measured := false
	for _, f := range r.Features {
		var length float64
		if ls, ok := f.Geometry.AsLineString(); ok {
			length = geo.PathLength(geo.PathFromLineString(ls))
		} else if !f.Geometry.IsPoint() {
			continue
		}
		if !measured || length < e.LengthMeters {
			e.LengthMeters = length
			measured = true
		}
	}
	return e
}

// Journal adapts a Backend to the controller's journal hook.
type Journal struct {
	backend Backend
	session *session.Context
}

// NewJournal returns a journal writing to b, tagging entries with the
// session ID of s.
func NewJournal(b Backend, s *session.Context) *Journal {
	return &Journal{backend: b, session: s}
}

// Record stores r.
func (j *Journal) Record(ctx context.Context, r controller.Rendered) error {
	var id string
	if j.session != nil {
		id = j.session.ID()
	}
	return j.backend.RecordRoute(ctx, NewEntry(id, r))
}
