package geospatial

import "math"

// EarthRadiusMeters is the mean Earth radius used by every distance in this package.
const EarthRadiusMeters = 6371000.0

// MetersPerDegree is the length of one degree of latitude on the same sphere.
const MetersPerDegree = EarthRadiusMeters * math.Pi / 180

// Haversine calculates the great-circle distance in meters between two points.
// Inputs are not validated; callers check ranges first.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// SegmentDistance returns the distance in meters from (lat, lon) to the closest
// point of the segment (lat1, lon1)-(lat2, lon2), and the projection parameter t.
//
// The segment is treated as a straight line in (lon, lat) degree space and the
// closest point is found by clamped linear projection; only the final leg is a
// great-circle distance. This is accurate for short road segments at mid
// latitudes. It degrades near the poles, where a degree of longitude shrinks
// towards zero, and is wrong for segments that cross the antimeridian, since
// the interpolation takes the long way round.
func SegmentDistance(lat, lon, lat1, lon1, lat2, lon2 float64) (float64, float64) {
	dx := lon2 - lon1
	dy := lat2 - lat1
	if dx == 0 && dy == 0 {
		return Haversine(lat, lon, lat1, lon1), 0
	}

	t := ((lon-lon1)*dx + (lat-lat1)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	return Haversine(lat, lon, lat1+t*dy, lon1+t*dx), t
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / MetersPerDegree
	cos := math.Cos(toRad(lat))
	if cos < 1e-6 {
		cos = 1e-6
	}
	lonDelta := radiusMeters / (MetersPerDegree * cos)

	minLat, maxLat = math.Max(-90, lat-latDelta), math.Min(90, lat+latDelta)
	minLon, maxLon = math.Max(-180, lon-lonDelta), math.Min(180, lon+lonDelta)
	return minLat, minLon, maxLat, maxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
