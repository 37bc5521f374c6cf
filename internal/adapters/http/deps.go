package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/roadwatch/internal/adapters/postgres"
	"github.com/samirrijal/roadwatch/internal/adapters/valkey"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Reports    *usecases.ReportService
	Proximity  *usecases.ProximityService
	Detections *usecases.DetectionService
	Cameras    *usecases.CameraRegistry
	Queue      ports.DetectionQueue // accepts ?async=true submissions; nil disables them
	Index      ports.CandidateIndex // reported by /v1/health when set
	Limits     QueryLimits
	RateLimit  int    // requests per minute per IP; 0 selects 120
	SpecPath   string // OpenAPI document served at /docs/openapi.yaml
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}

// QueryLimits are the defaults and caps applied to proximity query parameters.
type QueryLimits struct {
	NearbyRadius   float64
	NearbyLimit    int
	NearbyMaxLimit int
	CorridorWidth  float64
}

// DefaultQueryLimits returns the limits used when none are configured.
func DefaultQueryLimits() QueryLimits {
	return QueryLimits{
		NearbyRadius:   5000,
		NearbyLimit:    50,
		NearbyMaxLimit: 200,
		CorridorWidth:  500,
	}
}

func (l QueryLimits) withDefaults() QueryLimits {
	d := DefaultQueryLimits()
	if l.NearbyRadius <= 0 {
		l.NearbyRadius = d.NearbyRadius
	}
	if l.NearbyLimit <= 0 {
		l.NearbyLimit = d.NearbyLimit
	}
	if l.NearbyMaxLimit <= 0 {
		l.NearbyMaxLimit = d.NearbyMaxLimit
	}
	if l.CorridorWidth <= 0 {
		l.CorridorWidth = d.CorridorWidth
	}
	return l
}
