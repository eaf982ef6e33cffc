package model

import (
	"time"
)

// Observation is a user-submitted plant sighting. Image and Thumbnail hold
// blob names in the configured image storage, never the image bytes.
type Observation struct {
	ID          string     `json:"id" bson:"-"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	Image       string     `json:"image" bson:"image"`
	Thumbnail   string     `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	ContentType string     `json:"contentType,omitempty" bson:"content_type,omitempty"`
	Size        int64      `json:"size,omitempty" bson:"size,omitempty"`
	Location    Point      `json:"location" bson:"location"`
	Timestamp   time.Time  `json:"timestamp" bson:"timestamp"`
	TakenAt     *time.Time `json:"takenAt,omitempty" bson:"taken_at,omitempty"`
	Lang        string     `json:"lang,omitempty" bson:"lang,omitempty"`
}

// Point is a WGS84 coordinate as the browser geolocation API reports it.
type Point struct {
	Lat      float64  `json:"lat" bson:"lat"`
	Lng      float64  `json:"lng" bson:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
}

// IsZero reports whether the point is the {0,0} placeholder used when no
// location was available.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// GeoPoint is the GeoJSON form of a point used for 2dsphere indexes.
type GeoPoint struct {
	Type        string    `bson:"type,omitempty"`
	Coordinates []float64 `bson:"coordinates,omitempty"` // [longitude, latitude]
}

func NewGeoPoint(p Point) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}}
}
