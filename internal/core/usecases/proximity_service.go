package usecases

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
	"github.com/samirrijal/roadwatch/internal/pkg/telemetry"
)

const (
	// nearbyGeohashPrecision prefixes nearby cache keys with a ~5 m cell.
	nearbyGeohashPrecision = 9
	nearbyCacheTTL         = 30
	routeCacheTTL          = 30

	// prefilterSlack widens database pre-filters to cover the gap between the
	// PostGIS spheroid and the engine's sphere.
	prefilterSlack = 1.02
)

// DefaultRouteStatuses are searched when a route query names no statuses.
var DefaultRouteStatuses = []domain.ReportStatus{domain.StatusPending, domain.StatusAssigned}

// ReportMatch is a report with its distance from the query geometry.
type ReportMatch struct {
	Report         domain.Report `json:"report"`
	DistanceMeters float64       `json:"distance_m"`
	SegmentIndex   int           `json:"segment_index"`
}

// RouteDamages is the result of a route corridor query.
type RouteDamages struct {
	Damages           []ReportMatch `json:"damages"`
	RouteLengthMeters float64       `json:"route_length"`
	DamageCount       int           `json:"damage_count"`
}

// ProximityService runs proximity queries over stored reports.
type ProximityService struct {
	reports ports.ReportRepository
	cache   ports.CacheService
	places  []domain.Place
}

// NewProximityService creates a new ProximityService. places is the gazetteer
// used for labels; nil selects proximity.IndianCities.
func NewProximityService(reports ports.ReportRepository, cache ports.CacheService, places []domain.Place) *ProximityService {
	if len(places) == 0 {
		places = proximity.IndianCities
	}
	return &ProximityService{reports: reports, cache: cache, places: places}
}

// Nearby returns up to limit reports within radiusMeters of center, nearest first.
func (s *ProximityService) Nearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]ReportMatch, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ProximityService.Nearby")
	defer span.End()
	defer observeQuery("nearby", time.Now())

	if err := center.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidLimit, limit)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters < 0 {
		return nil, fmt.Errorf("%w: radius %v", domain.ErrInvalidDistance, radiusMeters)
	}
	span.SetAttributes(
		telemetry.AttrQueryKind.String("nearby"),
		telemetry.AttrRadius.Float64(radiusMeters),
		telemetry.AttrLimit.Int(limit),
	)

	cacheKey := nearbyCacheKey(cacheGeneration(ctx, s.cache), center, radiusMeters, limit)
	var cached []ReportMatch
	if getCached(ctx, s.cache, "nearby", cacheKey, &cached) {
		span.SetAttributes(telemetry.AttrCacheHit.Bool(true))
		return cached, nil
	}

	candidates, err := s.reports.FindWithin(ctx, center, radiusMeters*prefilterSlack+1, limit*2+10)
	if err != nil {
		return nil, fmt.Errorf("find candidate reports: %w", err)
	}
	metrics.ProximityCandidates.WithLabelValues("nearby").Observe(float64(len(candidates)))

	matches, err := proximity.FindNearPoint(center, entities(candidates), radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrCandidates.Int(len(candidates)), telemetry.AttrMatches.Int(len(matches)))

	result := joinMatches(matches, candidates)
	setCached(ctx, s.cache, cacheKey, result, nearbyCacheTTL)
	return result, nil
}

// AlongRoute returns reports within widthMeters of the route, nearest first.
// Only reports in one of statuses are considered; nil means DefaultRouteStatuses.
func (s *ProximityService) AlongRoute(ctx context.Context, route domain.Route, widthMeters float64, statuses []domain.ReportStatus) (*RouteDamages, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ProximityService.AlongRoute")
	defer span.End()
	defer observeQuery("route", time.Now())

	if err := route.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(widthMeters) || math.IsInf(widthMeters, 0) || widthMeters < 0 {
		return nil, fmt.Errorf("%w: corridor width %v", domain.ErrInvalidDistance, widthMeters)
	}
	if len(statuses) == 0 {
		statuses = DefaultRouteStatuses
	}
	span.SetAttributes(
		telemetry.AttrQueryKind.String("route"),
		telemetry.AttrSegments.Int(route.Segments()),
		telemetry.AttrRadius.Float64(widthMeters),
	)

	cacheKey := routeCacheKey(cacheGeneration(ctx, s.cache), route, widthMeters, statuses)
	var cached RouteDamages
	if getCached(ctx, s.cache, "route", cacheKey, &cached) {
		span.SetAttributes(telemetry.AttrCacheHit.Bool(true))
		return &cached, nil
	}

	bounds := expandBounds(route.Bounds(), widthMeters*prefilterSlack+1)
	candidates, err := s.reports.FindInBounds(ctx, bounds, statuses)
	if err != nil {
		return nil, fmt.Errorf("find candidate reports: %w", err)
	}
	metrics.ProximityCandidates.WithLabelValues("route").Observe(float64(len(candidates)))

	matches, err := proximity.FindNearRoute(route, entities(candidates), widthMeters)
	if err != nil {
		return nil, err
	}
	length, err := proximity.RouteLength(route)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrCandidates.Int(len(candidates)), telemetry.AttrMatches.Int(len(matches)))

	result := &RouteDamages{
		Damages:           joinMatches(matches, candidates),
		RouteLengthMeters: length,
		DamageCount:       len(matches),
	}
	setCached(ctx, s.cache, cacheKey, result, routeCacheTTL)
	return result, nil
}

// Label returns a human-readable area name for p.
func (s *ProximityService) Label(ctx context.Context, p domain.GeoPoint) (string, error) {
	_, span := telemetry.Tracer().Start(ctx, "ProximityService.Label")
	defer span.End()
	return proximity.NearestLabel(p, s.places)
}

func observeQuery(kind string, start time.Time) {
	metrics.ProximityQueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func entities(reports []domain.Report) []domain.LocatedEntity {
	out := make([]domain.LocatedEntity, len(reports))
	for i, r := range reports {
		out[i] = r.Entity()
	}
	return out
}

func joinMatches(matches []domain.ProximityMatch, reports []domain.Report) []ReportMatch {
	byID := make(map[string]domain.Report, len(reports))
	for _, r := range reports {
		byID[r.ID] = r
	}
	out := make([]ReportMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, ReportMatch{
			Report:         byID[m.ID],
			DistanceMeters: m.DistanceMeters,
			SegmentIndex:   m.SegmentIndex,
		})
	}
	return out
}

// expandBounds grows b by meters on every side, using the latitude edge
// farthest from the equator so the longitude margin is never too small.
func expandBounds(b domain.Bounds, meters float64) domain.Bounds {
	refLat := b.MaxLat
	if math.Abs(b.MinLat) > math.Abs(b.MaxLat) {
		refLat = b.MinLat
	}
	_, _, _, lonDelta := geospatial.BoundingBox(refLat, 0, meters)
	minLat, _, _, _ := geospatial.BoundingBox(b.MinLat, 0, meters)
	_, _, maxLat, _ := geospatial.BoundingBox(b.MaxLat, 0, meters)
	return domain.Bounds{
		MinLat: minLat,
		MinLon: math.Max(-180, b.MinLon-lonDelta),
		MaxLat: maxLat,
		MaxLon: math.Min(180, b.MaxLon+lonDelta),
	}
}

// nearbyCacheKey keys on the exact center and radius; the geohash cell only
// groups related keys.
func nearbyCacheKey(gen string, center domain.GeoPoint, radius float64, limit int) string {
	return fmt.Sprintf("reports:nearby:%s:%s:%s,%s:%s:%d",
		gen,
		geohash.EncodeWithPrecision(center.Lat, center.Lon, nearbyGeohashPrecision),
		strconv.FormatFloat(center.Lat, 'g', -1, 64),
		strconv.FormatFloat(center.Lon, 'g', -1, 64),
		strconv.FormatFloat(radius, 'g', -1, 64),
		limit)
}

func routeCacheKey(gen string, route domain.Route, width float64, statuses []domain.ReportStatus) string {
	data, _ := json.Marshal(struct {
		R domain.Route          `json:"r"`
		W float64               `json:"w"`
		S []domain.ReportStatus `json:"s"`
	}{route, width, statuses})
	sum := sha1.Sum(data)
	return "reports:route:" + gen + ":" + hex.EncodeToString(sum[:])
}
