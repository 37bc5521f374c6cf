package proximity

import (
	"fmt"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

// DefaultMergeRadius is the distance in meters under which a new detection is
// treated as another sighting of an existing report.
const DefaultMergeRadius = 50.0

// ShouldMerge picks the existing entity a detection at p should merge into.
// It returns the closest located entity within mergeRadius meters; equal
// distances go to the earliest CreatedAt, then the smallest ID. ok is false
// when nothing is close enough and a new entity should be created.
func ShouldMerge(p domain.GeoPoint, existing []domain.LocatedEntity, mergeRadius float64) (id string, ok bool, err error) {
	if err := p.Validate(); err != nil {
		return "", false, err
	}
	if err := validateDistance("merge radius", mergeRadius); err != nil {
		return "", false, err
	}

	var best *mergeCandidate
	for i := range existing {
		e := &existing[i]
		if e.Location == nil {
			continue
		}
		if err := e.Location.Validate(); err != nil {
			return "", false, fmt.Errorf("entity %s: %w", e.ID, err)
		}
		d := geospatial.Haversine(p.Lat, p.Lon, e.Location.Lat, e.Location.Lon)
		if d > mergeRadius {
			continue
		}
		c := mergeCandidate{entity: e, dist: d}
		if best == nil || c.beats(*best) {
			best = &c
		}
	}

	if best == nil {
		return "", false, nil
	}
	return best.entity.ID, true, nil
}

type mergeCandidate struct {
	entity *domain.LocatedEntity
	dist   float64
}

// beats reports whether c is a better merge target than incumbent.
func (c mergeCandidate) beats(incumbent mergeCandidate) bool {
	if c.dist != incumbent.dist {
		return c.dist < incumbent.dist
	}
	if !c.entity.CreatedAt.Equal(incumbent.entity.CreatedAt) {
		return c.entity.CreatedAt.Before(incumbent.entity.CreatedAt)
	}
	return c.entity.ID < incumbent.entity.ID
}
