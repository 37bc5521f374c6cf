package ports

import (
	"context"
	"time"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// ReportRepository persists road damage reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Report, error)
	Update(ctx context.Context, report *domain.Report) error
	List(ctx context.Context, filter domain.ReportFilter, offset, limit int) ([]domain.Report, int, error)
	// FindWithin returns located reports whose stored point lies within
	// radiusMeters of center. It is a candidate query; ranking is done by
	// the proximity engine.
	FindWithin(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Report, error)
	// FindInBounds returns located reports inside the box, restricted to the
	// given statuses when any are supplied.
	FindInBounds(ctx context.Context, bounds domain.Bounds, statuses []domain.ReportStatus) ([]domain.Report, error)
	// CreateForDetection stores report and attaches the detection to it
	// atomically. It returns the report the detection ends up attached to,
	// which differs from report.ID only when it was attached already.
	CreateForDetection(ctx context.Context, report *domain.Report, detectionID string) (string, error)
	// MergeDetection attaches the detection to report id and raises its
	// verification score by delta, capped at ceiling, atomically. An
	// already attached detection changes nothing.
	MergeDetection(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error)
	Statistics(ctx context.Context, since time.Time) (*domain.Statistics, error)
}

// DetectionRepository persists camera detections.
type DetectionRepository interface {
	Insert(ctx context.Context, det *domain.Detection) error
	Delete(ctx context.Context, id string) error
	Recent(ctx context.Context, limit int) ([]domain.Detection, error)
}

// CameraRepository persists registered cameras.
type CameraRepository interface {
	Upsert(ctx context.Context, cam *domain.Camera) error
	List(ctx context.Context) ([]domain.Camera, error)
	Delete(ctx context.Context, id string) error
}
