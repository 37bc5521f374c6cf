package proximity

import (
	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

const (
	labelExactMeters = 100_000
	labelNearMeters  = 300_000
)

// NearestLabel names the area around p using the closest of places.
//
// Under 100 km it returns the place name, under 300 km "Near <name>", and
// beyond that (or with no places) a coarse latitude band. When several places
// are equally close the first one in input order wins.
func NearestLabel(p domain.GeoPoint, places []domain.Place) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	best := -1
	var bestDist float64
	for i, pl := range places {
		d := geospatial.Haversine(p.Lat, p.Lon, pl.Location.Lat, pl.Location.Lon)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}

	switch {
	case best >= 0 && bestDist < labelExactMeters:
		return places[best].Name, nil
	case best >= 0 && bestDist < labelNearMeters:
		return "Near " + places[best].Name, nil
	default:
		return regionBand(p.Lat), nil
	}
}

func regionBand(lat float64) string {
	switch {
	case lat > 28:
		return "Northern India"
	case lat > 20:
		return "Central India"
	case lat > 8:
		return "Southern India"
	default:
		return "India"
	}
}
