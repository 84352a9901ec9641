package core

import (
	"math"
	"time"
)

const (
	// SessionStateID is the only key session state is ever stored under
	SessionStateID = "active"

	earthRadiusMeters = 6371000.0
)

// Point is a single GPS fix
type Point struct {
	Lat       float64   `json:"lat" msgpack:"lat" validate:"gte=-90,lte=90"`
	Lon       float64   `json:"lon" msgpack:"lon" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy,omitempty" msgpack:"accuracy,omitempty" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Route is a recorded trip. ApproachPath holds the last seconds of walking
// before arrival, extracted from the collector's walking buffer.
type Route struct {
	ID           string        `json:"id"`
	Mode         UserMode      `json:"mode"`
	Points       []Point       `json:"points"`
	ApproachPath []Point       `json:"approach_path,omitempty"`
	Distance     float64       `json:"distance"`
	Duration     time.Duration `json:"duration"`
	Synced       bool          `json:"synced"`
	CreatedAt    time.Time     `json:"created_at"`
}

// StartCoords returns [lon, lat] of the first point, or nil
func (r Route) StartCoords() []float64 {
	if len(r.Points) == 0 {
		return nil
	}
	return []float64{r.Points[0].Lon, r.Points[0].Lat}
}

// EndCoords returns [lon, lat] of the last point, or nil
func (r Route) EndCoords() []float64 {
	if len(r.Points) == 0 {
		return nil
	}
	p := r.Points[len(r.Points)-1]
	return []float64{p.Lon, p.Lat}
}

// Destination is the navigation target of an in-progress session.
// Coords is [lon, lat].
type Destination struct {
	Name   string    `json:"name" msgpack:"name"`
	Coords []float64 `json:"coords" msgpack:"coords" validate:"len=2"`
}

// SessionState is the navigation snapshot persisted so a session can be
// restored after the app is reopened. Only an in-progress navigation with a
// destination is restorable.
type SessionState struct {
	ID           string       `json:"id" msgpack:"id" validate:"eq=active"`
	IsNavigating bool         `json:"isNavigating" msgpack:"is_navigating" validate:"required"`
	Mode         UserMode     `json:"mode,omitempty" msgpack:"mode" validate:"omitempty,oneof=walking wheelchair"`
	Destination  *Destination `json:"destination" msgpack:"destination" validate:"required"`
	RouteHistory []Point      `json:"routeHistory" msgpack:"route_history" validate:"dive"`
	UpdatedAt    time.Time    `json:"lastUpdate" msgpack:"updated_at" validate:"required"`
}

// Distance returns the great-circle distance between two points in meters
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathLength sums the distances between consecutive points
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
