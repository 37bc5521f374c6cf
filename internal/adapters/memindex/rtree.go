// Package memindex keeps located reports in an in-memory R-tree so merge
// candidates can be shortlisted without a database round trip.
package memindex

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
)

const (
	// tolerance is the half-width in degrees of the box stored for each point.
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialItem wraps a LocatedEntity for R-tree indexing
type spatialItem struct {
	entity domain.LocatedEntity
	rect   *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

// Index is a thread-safe R-tree of located entities keyed by ID.
type Index struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	items map[string]*spatialItem
}

// New creates an empty index.
func New() *Index {
	return &Index{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: make(map[string]*spatialItem),
	}
}

// Upsert adds or replaces an entity. Entities without a valid location are
// removed instead, since they can never match a spatial query.
func (x *Index) Upsert(e domain.LocatedEntity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeLocked(e.ID)
	if e.Location == nil || e.Location.Validate() != nil {
		metrics.CandidateIndexSize.Set(float64(len(x.items)))
		return
	}

	loc := *e.Location
	e.Location = &loc
	item := &spatialItem{
		entity: e,
		rect:   rtreego.Point{loc.Lat, loc.Lon}.ToRect(tolerance),
	}
	x.tree.Insert(item)
	x.items[e.ID] = item
	metrics.CandidateIndexSize.Set(float64(len(x.items)))
}

// Remove drops the entity with the given ID, if present.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
	metrics.CandidateIndexSize.Set(float64(len(x.items)))
}

func (x *Index) removeLocked(id string) {
	if old, ok := x.items[id]; ok {
		x.tree.Delete(old)
		delete(x.items, id)
	}
}

// Within returns entities whose great-circle distance from center is at most
// radiusMeters, ordered by ID. An invalid center or negative radius yields nil.
func (x *Index) Within(center domain.GeoPoint, radiusMeters float64) []domain.LocatedEntity {
	if center.Validate() != nil || !(radiusMeters >= 0) {
		return nil
	}
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(center.Lat, center.Lon, radiusMeters)
	bounds, err := rtreego.NewRect(
		rtreego.Point{minLat - tolerance, minLon - tolerance},
		[]float64{maxLat - minLat + 2*tolerance, maxLon - minLon + 2*tolerance},
	)
	if err != nil {
		return nil
	}

	x.mu.RLock()
	hits := x.tree.SearchIntersect(bounds)
	out := make([]domain.LocatedEntity, 0, len(hits))
	for _, h := range hits {
		item := h.(*spatialItem)
		loc := item.entity.Location
		if geospatial.Haversine(center.Lat, center.Lon, loc.Lat, loc.Lon) > radiusMeters {
			continue
		}
		e := item.entity
		p := *loc
		e.Location = &p
		out = append(out, e)
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of indexed entities.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}
