// Package proximity answers distance, corridor, radius and dedup questions
// over caller-supplied snapshots of located entities.
//
// Every function is pure: no I/O, no shared state, no locks. Coordinates are
// degrees and every distance, radius and width is in meters. Invalid input is
// rejected with the sentinel errors from the domain package, never clamped.
package proximity

import (
	"fmt"
	"math"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

// HaversineDistance returns the great-circle distance between a and b in meters.
func HaversineDistance(a, b domain.GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon), nil
}

// PointToSegmentDistance returns the distance in meters from p to the closest
// point of the segment start-end.
//
// The closest point is found by linear projection in (lon, lat) space, so the
// result is only locally accurate: fine for road segments up to a few
// kilometres, increasingly wrong near the poles and undefined for segments
// crossing the antimeridian. A zero-length segment degrades to the point
// distance from p to start.
func PointToSegmentDistance(p, start, end domain.GeoPoint) (float64, error) {
	for _, pt := range []domain.GeoPoint{p, start, end} {
		if err := pt.Validate(); err != nil {
			return 0, err
		}
	}
	d, _ := geospatial.SegmentDistance(p.Lat, p.Lon, start.Lat, start.Lon, end.Lat, end.Lon)
	return d, nil
}

// RouteLength returns the summed great-circle length of the route's segments.
func RouteLength(route domain.Route) (float64, error) {
	if err := route.Validate(); err != nil {
		return 0, err
	}
	var total float64
	for i := 1; i < len(route.Points); i++ {
		a, b := route.Points[i-1], route.Points[i]
		total += geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return total, nil
}

func validateDistance(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s %v", domain.ErrInvalidDistance, name, v)
	}
	return nil
}
