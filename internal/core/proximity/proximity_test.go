package proximity_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

var (
	delhi  = domain.GeoPoint{Lat: 28.6139, Lon: 77.2090}
	mumbai = domain.GeoPoint{Lat: 19.0760, Lon: 72.8777}
)

// north returns p shifted meters due north.
func north(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/geospatial.MetersPerDegree, Lon: p.Lon}
}

func located(id string, p domain.GeoPoint) domain.LocatedEntity {
	return domain.LocatedEntity{ID: id, Location: &p, CreatedAt: time.Unix(0, 0)}
}

func randomPoint(r *rand.Rand) domain.GeoPoint {
	return domain.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
}

func TestHaversineDelhiMumbai(t *testing.T) {
	d, err := proximity.HaversineDistance(delhi, mumbai)
	require.NoError(t, err)
	assert.InDelta(t, 1153.0, d/1000, 5.0)
}

func TestHaversineSymmetryAndIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a, b := randomPoint(r), randomPoint(r)

		ab, err := proximity.HaversineDistance(a, b)
		require.NoError(t, err)
		ba, err := proximity.HaversineDistance(b, a)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-6)

		aa, err := proximity.HaversineDistance(a, a)
		require.NoError(t, err)
		assert.Zero(t, aa)
	}
}

func TestHaversineTriangleInequality(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a, b, c := randomPoint(r), randomPoint(r), randomPoint(r)
		ac, _ := proximity.HaversineDistance(a, c)
		ab, _ := proximity.HaversineDistance(a, b)
		bc, _ := proximity.HaversineDistance(b, c)
		assert.LessOrEqual(t, ac, (ab+bc)*(1+1e-6)+1e-6)
	}
}

func TestInvalidCoordinateRejected(t *testing.T) {
	bad := domain.GeoPoint{Lat: 200, Lon: 0}
	route := domain.Route{Points: []domain.GeoPoint{delhi, mumbai}}

	_, err := proximity.HaversineDistance(bad, delhi)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.PointToSegmentDistance(bad, delhi, mumbai)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.NearestLabel(bad, proximity.IndianCities)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.FindNearPoint(bad, nil, 100, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, _, err = proximity.ShouldMerge(bad, nil, proximity.DefaultMergeRadius)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.FindNearRoute(route, []domain.LocatedEntity{located("x", bad)}, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.FindNearPoint(delhi, []domain.LocatedEntity{located("x", bad)}, 100, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestNonFiniteCoordinateRejected(t *testing.T) {
	for _, p := range []domain.GeoPoint{
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: math.Inf(1)},
		{Lat: 0, Lon: -180.5},
	} {
		_, err := proximity.HaversineDistance(delhi, p)
		assert.ErrorIs(t, err, domain.ErrInvalidCoordinate, "%v", p)
	}
}

func TestPointToSegmentDegenerate(t *testing.T) {
	p := domain.GeoPoint{Lat: 20.5, Lon: 75.1}
	seg, err := proximity.PointToSegmentDistance(p, delhi, delhi)
	require.NoError(t, err)
	direct, err := proximity.HaversineDistance(p, delhi)
	require.NoError(t, err)
	assert.Equal(t, direct, seg)
}

func TestPointToSegmentClampsToEndpoints(t *testing.T) {
	start := domain.GeoPoint{Lat: 12.0, Lon: 77.0}
	end := domain.GeoPoint{Lat: 12.0, Lon: 77.1}

	beyond := domain.GeoPoint{Lat: 12.0, Lon: 77.2}
	d, err := proximity.PointToSegmentDistance(beyond, start, end)
	require.NoError(t, err)
	want, _ := proximity.HaversineDistance(beyond, end)
	assert.InDelta(t, want, d, 1e-6)

	above := domain.GeoPoint{Lat: 12.001, Lon: 77.05}
	d, err = proximity.PointToSegmentDistance(above, start, end)
	require.NoError(t, err)
	assert.InDelta(t, 0.001*geospatial.MetersPerDegree, d, 0.5)
}

func TestRouteLength(t *testing.T) {
	mid := domain.GeoPoint{Lat: 23.0225, Lon: 72.5714}
	total, err := proximity.RouteLength(domain.Route{Points: []domain.GeoPoint{delhi, mid, mumbai}})
	require.NoError(t, err)

	a, _ := proximity.HaversineDistance(delhi, mid)
	b, _ := proximity.HaversineDistance(mid, mumbai)
	assert.InDelta(t, a+b, total, 1e-6)

	_, err = proximity.RouteLength(domain.Route{Points: []domain.GeoPoint{delhi}})
	assert.ErrorIs(t, err, domain.ErrInvalidRoute)
}

func TestFindNearRouteEndpoint(t *testing.T) {
	route := domain.Route{Points: []domain.GeoPoint{delhi, mumbai}}
	matches, err := proximity.FindNearRoute(route, []domain.LocatedEntity{located("r1", delhi)}, 50_000)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "r1", matches[0].ID)
	assert.InDelta(t, 0, matches[0].DistanceMeters, 1e-6)
	assert.Equal(t, 0, matches[0].SegmentIndex)
}

func TestFindNearRouteMultiSegment(t *testing.T) {
	a := domain.GeoPoint{Lat: 12.0, Lon: 77.0}
	b := domain.GeoPoint{Lat: 12.0, Lon: 77.1}
	c := domain.GeoPoint{Lat: 12.1, Lon: 77.1}
	route := domain.Route{Points: []domain.GeoPoint{a, b, c}}

	entities := []domain.LocatedEntity{
		located("far", domain.GeoPoint{Lat: 13.0, Lon: 78.0}),
		located("seg1", domain.GeoPoint{Lat: 12.05, Lon: 77.1003}),
		located("seg0", north(domain.GeoPoint{Lat: 12.0, Lon: 77.05}, 10)),
		{ID: "unlocated"},
	}

	matches, err := proximity.FindNearRoute(route, entities, 100)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "seg0", matches[0].ID)
	assert.Equal(t, 0, matches[0].SegmentIndex)
	assert.InDelta(t, 10, matches[0].DistanceMeters, 0.1)

	assert.Equal(t, "seg1", matches[1].ID)
	assert.Equal(t, 1, matches[1].SegmentIndex)
	assert.Less(t, matches[0].DistanceMeters, matches[1].DistanceMeters)
}

func TestFindNearRouteErrors(t *testing.T) {
	_, err := proximity.FindNearRoute(domain.Route{Points: []domain.GeoPoint{delhi}}, nil, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidRoute)

	_, err = proximity.FindNearRoute(domain.Route{Points: []domain.GeoPoint{delhi, {Lat: 95}}}, nil, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidRoute)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = proximity.FindNearRoute(domain.Route{Points: []domain.GeoPoint{delhi, mumbai}}, nil, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidDistance)

	matches, err := proximity.FindNearRoute(domain.Route{Points: []domain.GeoPoint{delhi, mumbai}}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindNearPointRadiusZero(t *testing.T) {
	exact := []domain.LocatedEntity{located("here", delhi)}
	matches, err := proximity.FindNearPoint(delhi, exact, 0, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "here", matches[0].ID)
	assert.Zero(t, matches[0].DistanceMeters)
	assert.Equal(t, -1, matches[0].SegmentIndex)

	oneMeter := []domain.LocatedEntity{located("near", north(delhi, 1))}
	matches, err = proximity.FindNearPoint(delhi, oneMeter, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindNearPointSortsAndCaps(t *testing.T) {
	entities := []domain.LocatedEntity{
		located("c", north(delhi, 300)),
		located("a", north(delhi, 100)),
		located("out", north(delhi, 5000)),
		located("b", north(delhi, 200)),
		{ID: "unlocated"},
	}

	matches, err := proximity.FindNearPoint(delhi, entities, 1000, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)

	_, err = proximity.FindNearPoint(delhi, entities, 1000, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)

	_, err = proximity.FindNearPoint(delhi, entities, math.NaN(), 5)
	assert.ErrorIs(t, err, domain.ErrInvalidDistance)
}

func TestShouldMergePicksClosest(t *testing.T) {
	existing := []domain.LocatedEntity{
		located("forty", north(delhi, 40)),
		located("ten", north(delhi, 10)),
	}
	id, ok, err := proximity.ShouldMerge(delhi, existing, proximity.DefaultMergeRadius)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ten", id)
}

func TestShouldMergeNoneInRange(t *testing.T) {
	existing := []domain.LocatedEntity{
		located("sixty", north(delhi, 60)),
		located("ninety", north(delhi, 90)),
		{ID: "unlocated"},
	}
	id, ok, err := proximity.ShouldMerge(delhi, existing, 50)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)

	_, ok, err = proximity.ShouldMerge(delhi, nil, 50)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldMergeTieBreaksOnCreatedAt(t *testing.T) {
	p := north(delhi, 20)
	older := domain.LocatedEntity{ID: "z-older", Location: &p, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := domain.LocatedEntity{ID: "a-newer", Location: &p, CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}

	id, ok, err := proximity.ShouldMerge(delhi, []domain.LocatedEntity{newer, older}, 50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "z-older", id)
}

func TestShouldMergeTieBreaksOnID(t *testing.T) {
	p := north(delhi, 20)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []domain.LocatedEntity{
		{ID: "r-b", Location: &p, CreatedAt: at},
		{ID: "r-a", Location: &p, CreatedAt: at},
		located("r-0", north(delhi, 30)),
	}

	id, ok, err := proximity.ShouldMerge(delhi, existing, 50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r-a", id)
}

func TestNearestLabel(t *testing.T) {
	tests := []struct {
		name string
		p    domain.GeoPoint
		want string
	}{
		{"inside city", domain.GeoPoint{Lat: 28.7, Lon: 77.3}, "Delhi"},
		{"near city", domain.GeoPoint{Lat: 27.5, Lon: 71.0}, "Near Jodhpur"},
		{"north band", domain.GeoPoint{Lat: 37.5, Lon: 79.5}, "Northern India"},
		{"central band", domain.GeoPoint{Lat: 24.0, Lon: 66.5}, "Central India"},
		{"south band", domain.GeoPoint{Lat: 18.0, Lon: 68.0}, "Southern India"},
		{"far south", domain.GeoPoint{Lat: 4.0, Lon: 78.0}, "India"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proximity.NearestLabel(tt.p, proximity.IndianCities)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNearestLabelFirstTieWins(t *testing.T) {
	places := []domain.Place{
		{Name: "First", Location: delhi},
		{Name: "Second", Location: delhi},
	}
	got, err := proximity.NearestLabel(delhi, places)
	require.NoError(t, err)
	assert.Equal(t, "First", got)

	got, err = proximity.NearestLabel(delhi, nil)
	require.NoError(t, err)
	assert.Equal(t, "Northern India", got)
}
