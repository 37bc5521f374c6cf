package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used for instrumentation.
const (
	// Query shape
	AttrQueryKind  = attribute.Key("proximity.query")
	AttrRadius     = attribute.Key("proximity.radius_m")
	AttrLimit      = attribute.Key("proximity.limit")
	AttrSegments   = attribute.Key("proximity.route_segments")
	AttrCandidates = attribute.Key("proximity.candidates")
	AttrMatches    = attribute.Key("proximity.matches")

	// Cache
	AttrCacheHit = attribute.Key("cache.hit")

	// Ingestion
	AttrCameraID = attribute.Key("detection.camera_id")
	AttrMerged   = attribute.Key("detection.merged")
	AttrReportID = attribute.Key("report.id")
)
