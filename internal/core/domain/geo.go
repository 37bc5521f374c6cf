package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84) in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the point is finite and within latitude/longitude range.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Route is an ordered polyline from origin to destination.
type Route struct {
	Points []GeoPoint `json:"points"`
}

// NewRoute builds a Route from [lat, lon] pairs.
func NewRoute(pairs [][2]float64) Route {
	pts := make([]GeoPoint, len(pairs))
	for i, p := range pairs {
		pts[i] = GeoPoint{Lat: p[0], Lon: p[1]}
	}
	return Route{Points: pts}
}

// Validate checks that the route has at least two valid points.
func (r Route) Validate() error {
	if len(r.Points) < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidRoute, len(r.Points))
	}
	for i, p := range r.Points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: point %d: %w", ErrInvalidRoute, i, err)
		}
	}
	return nil
}

// Segments returns the number of straight segments in the route.
func (r Route) Segments() int {
	if len(r.Points) < 2 {
		return 0
	}
	return len(r.Points) - 1
}

// Bounds returns the smallest box containing every route point.
func (r Route) Bounds() Bounds {
	if len(r.Points) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: r.Points[0].Lat, MaxLat: r.Points[0].Lat,
		MinLon: r.Points[0].Lon, MaxLon: r.Points[0].Lon,
	}
	for _, p := range r.Points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box (edges inclusive).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Place is a named reference point used for human-readable labels.
type Place struct {
	Name     string   `json:"name" mapstructure:"name"`
	Location GeoPoint `json:"location" mapstructure:"location"`
}
