package ports

import (
	"context"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishReportCreated(ctx context.Context, report *domain.Report) error
	PublishReportUpdated(ctx context.Context, report *domain.Report) error
	PublishDetection(ctx context.Context, det *domain.Detection) error
	PublishMapUpdate(ctx context.Context, kind string, report *domain.Report) error
	PublishCameraStream(ctx context.Context, cam *domain.Camera) error
}

// DetectionSubmission is a raw camera submission awaiting ingestion.
type DetectionSubmission struct {
	CameraID    string                    `json:"camera_id"`
	Location    *domain.GeoPoint          `json:"location,omitempty"`
	Image       []byte                    `json:"image,omitempty"`
	ImageURL    string                    `json:"image_url,omitempty"`
	Observation *domain.DefectObservation `json:"observation,omitempty"`
}

// DetectionQueue hands submissions to an asynchronous consumer.
type DetectionQueue interface {
	SubmitDetection(ctx context.Context, sub *DetectionSubmission) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeDetectionSubmissions(ctx context.Context, handler func(ctx context.Context, sub *DetectionSubmission) error) error
	SubscribeReportCreated(ctx context.Context, handler func(ctx context.Context, report *domain.Report) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Detector classifies a camera frame. A nil observation with a nil error
// means nothing was found.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*domain.DefectObservation, error)
}

// CandidateIndex is an in-memory spatial index of located reports used to
// shortlist merge candidates without a database round trip.
type CandidateIndex interface {
	Upsert(entity domain.LocatedEntity)
	Remove(id string)
	Within(center domain.GeoPoint, radiusMeters float64) []domain.LocatedEntity
	Len() int
}
