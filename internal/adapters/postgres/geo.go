package postgres

import "github.com/samirrijal/roadwatch/internal/core/domain"

// lonLat returns PostGIS argument order for p, or two NULLs.
func lonLat(p *domain.GeoPoint) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.Lon, p.Lat
}

func pointOrNil(lat, lon *float64) *domain.GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lon: *lon}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
