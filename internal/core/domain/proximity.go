package domain

import "time"

// LocatedEntity is the read-only view the proximity engine works on.
// A nil Location means the entity has no coordinates and is skipped by searches.
type LocatedEntity struct {
	ID        string    `json:"id"`
	Location  *GeoPoint `json:"location,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProximityMatch is a single search hit. SegmentIndex is the nearest route
// segment for corridor searches and -1 for point searches.
type ProximityMatch struct {
	ID             string  `json:"id"`
	DistanceMeters float64 `json:"distance_m"`
	SegmentIndex   int     `json:"segment_index"`
}
