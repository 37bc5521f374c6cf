package proximity

import (
	"fmt"
	"sort"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

// FindNearRoute returns the entities whose closest approach to the route is
// within corridorWidth meters, nearest first.
//
// Each located entity is measured against every segment, so the cost is
// O(entities × segments). Callers with large candidate sets or long
// polylines should pre-filter by status or bounding box, or down-sample the
// route, before calling. Unlocated entities are skipped.
func FindNearRoute(route domain.Route, entities []domain.LocatedEntity, corridorWidth float64) ([]domain.ProximityMatch, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if err := validateDistance("corridor width", corridorWidth); err != nil {
		return nil, err
	}

	matches := make([]domain.ProximityMatch, 0)
	for _, e := range entities {
		if e.Location == nil {
			continue
		}
		p := *e.Location
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.ID, err)
		}

		best, seg := nearestSegment(p, route)
		if best <= corridorWidth {
			matches = append(matches, domain.ProximityMatch{ID: e.ID, DistanceMeters: best, SegmentIndex: seg})
		}
	}

	sortMatches(matches)
	return matches, nil
}

// FindNearPoint returns up to limit entities within radius meters of p,
// nearest first. limit must be positive.
func FindNearPoint(p domain.GeoPoint, entities []domain.LocatedEntity, radius float64, limit int) ([]domain.ProximityMatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateDistance("radius", radius); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidLimit, limit)
	}

	matches := make([]domain.ProximityMatch, 0)
	for _, e := range entities {
		if e.Location == nil {
			continue
		}
		if err := e.Location.Validate(); err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.ID, err)
		}
		d := geospatial.Haversine(p.Lat, p.Lon, e.Location.Lat, e.Location.Lon)
		if d <= radius {
			matches = append(matches, domain.ProximityMatch{ID: e.ID, DistanceMeters: d, SegmentIndex: -1})
		}
	}

	sortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// nearestSegment returns the minimum distance from p to the route and the
// index of the first segment achieving it. The route must be valid.
func nearestSegment(p domain.GeoPoint, route domain.Route) (float64, int) {
	best, seg := -1.0, 0
	for i := 1; i < len(route.Points); i++ {
		a, b := route.Points[i-1], route.Points[i]
		d, _ := geospatial.SegmentDistance(p.Lat, p.Lon, a.Lat, a.Lon, b.Lat, b.Lon)
		if best < 0 || d < best {
			best, seg = d, i-1
		}
	}
	return best, seg
}

func sortMatches(m []domain.ProximityMatch) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].DistanceMeters != m[j].DistanceMeters {
			return m[i].DistanceMeters < m[j].DistanceMeters
		}
		return m[i].ID < m[j].ID
	})
}
