// Package gormstore persists route history through GORM, on either
// Postgres or SQLite.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urbanroute/routeview/internal/database"
	"github.com/urbanroute/routeview/internal/history"
	"github.com/urbanroute/routeview/internal/route"
	"gorm.io/datatypes"
)

// RouteRecord is one rendered route.
type RouteRecord struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"createdAt"`

	SessionID string  `json:"sessionId" gorm:"size:36;index:idx_route_session"`
	Token     uint64  `json:"token"`
	Kind      string  `json:"kind" gorm:"size:32"`
	Algorithm string  `json:"algorithm" gorm:"size:32"`
	Variable  string  `json:"variable" gorm:"size:32"`
	Weight    float64 `json:"weight"`

	OriginLongitude      float64 `json:"originLongitude"`
	OriginLatitude       float64 `json:"originLatitude"`
	OriginGeohash        string  `json:"originGeohash" gorm:"size:12;index:idx_route_origin_geohash"`
	DestinationLongitude float64 `json:"destinationLongitude"`
	DestinationLatitude  float64 `json:"destinationLatitude"`
	DestinationGeohash   string  `json:"destinationGeohash" gorm:"size:12;index:idx_route_destination_geohash"`

	Paths        int            `json:"paths"`
	LengthMeters float64        `json:"lengthMeters"`
	Geometry     datatypes.JSON `json:"geometry"`
	RecordedAt   time.Time      `json:"recordedAt" gorm:"index:idx_route_recorded_at"`
}

// TableName pins the table name.
func (*RouteRecord) TableName() string {
	return "route_records"
}

// NewRouteRecord converts an entry to its table row.
func NewRouteRecord(e *history.Entry) (*RouteRecord, error) {
	geometry, err := json.Marshal(e.Features)
	if err != nil {
		return nil, fmt.Errorf("marshal route geometry: %w", err)
	}
	return &RouteRecord{
		SessionID:            e.SessionID,
		Token:                e.Token,
		Kind:                 e.Kind,
		Algorithm:            string(e.Algorithm),
		Variable:             string(e.Variable),
		Weight:               e.Weight,
		OriginLongitude:      e.Origin.Longitude,
		OriginLatitude:       e.Origin.Latitude,
		OriginGeohash:        history.Geohash(e.Origin, history.GeohashPrecision),
		DestinationLongitude: e.Destination.Longitude,
		DestinationLatitude:  e.Destination.Latitude,
		DestinationGeohash:   history.Geohash(e.Destination, history.GeohashPrecision),
		Paths:                e.Paths,
		LengthMeters:         e.LengthMeters,
		Geometry:             datatypes.JSON(geometry),
		RecordedAt:           e.RecordedAt,
	}, nil
}

// Entry converts the row back to a history entry.
func (r *RouteRecord) Entry() (history.Entry, error) {
	e := history.Entry{
		SessionID:    r.SessionID,
		Token:        r.Token,
		Kind:         r.Kind,
		Algorithm:    route.Algorithm(r.Algorithm),
		Variable:     route.Variable(r.Variable),
		Weight:       r.Weight,
		Origin:       route.Endpoint{Longitude: r.OriginLongitude, Latitude: r.OriginLatitude},
		Destination:  route.Endpoint{Longitude: r.DestinationLongitude, Latitude: r.DestinationLatitude},
		Paths:        r.Paths,
		LengthMeters: r.LengthMeters,
		RecordedAt:   r.RecordedAt,
	}
	if len(r.Geometry) > 0 {
		if err := json.Unmarshal(r.Geometry, &e.Features); err != nil {
			return history.Entry{}, fmt.Errorf("route record %d geometry: %w", r.ID, err)
		}
	}
	return e, nil
}

func entries(recs []RouteRecord) ([]history.Entry, error) {
	out := make([]history.Entry, 0, len(recs))
	for i := range recs {
		e, err := recs[i].Entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Backend writes entries to the route_records table.
type Backend struct {
	db *database.Manager
}

// New creates a backend on a connected manager.
func New(db *database.Manager) *Backend {
	return &Backend{db: db}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	return b.db.Migrate(&RouteRecord{})
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// RecordRoute inserts e.
func (b *Backend) RecordRoute(ctx context.Context, e *history.Entry) error {
	rec, err := NewRouteRecord(e)
	if err != nil {
		return err
	}
	if err := b.db.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert route record: %w", err)
	}
	return nil
}

// Session returns the routes recorded in a session, oldest first.
func (b *Backend) Session(ctx context.Context, sessionID string) ([]history.Entry, error) {
	var recs []RouteRecord
	err := b.db.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query session routes: %w", err)
	}
	return entries(recs)
}

// StartingNear returns routes whose origin shares the first precision
// geohash characters with e, newest first.
func (b *Backend) StartingNear(ctx context.Context, e route.Endpoint, precision uint, limit int) ([]history.Entry, error) {
	var recs []RouteRecord
	err := b.db.DB.WithContext(ctx).
		Where("origin_geohash LIKE ?", history.Geohash(e, precision)+"%").
		Order("recorded_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query routes near %s: %w", e, err)
	}
	return entries(recs)
}
