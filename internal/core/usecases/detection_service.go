package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
	"github.com/samirrijal/roadwatch/internal/pkg/telemetry"
)

const (
	// VerificationStep is added to a report each time a detection merges into it.
	VerificationStep = 0.1
	// VerificationCeiling caps the verification score.
	VerificationCeiling = 1.0

	mergeCandidateLimit = 20
)

// Resolution is the report a detection ended up attached to.
type Resolution struct {
	Report *domain.Report `json:"report"`
	Merged bool           `json:"merged"`
}

// DetectionOutcome summarises one ingestion.
type DetectionOutcome struct {
	Detection *domain.Detection `json:"detection,omitempty"`
	Report    *domain.Report    `json:"report,omitempty"`
	Merged    bool              `json:"merged"`
	Ignored   bool              `json:"ignored"`
}

// DetectionService turns camera detections into reports, merging repeat
// sightings of the same defect.
type DetectionService struct {
	detections  ports.DetectionRepository
	reports     ports.ReportRepository
	events      ports.EventPublisher
	detector    ports.Detector
	index       ports.CandidateIndex
	cache       ports.CacheService
	mergeRadius float64
	places      []domain.Place
	now         func() time.Time
}

// DetectionOptions tunes a DetectionService. Zero values select defaults.
type DetectionOptions struct {
	Detector    ports.Detector       // nil rejects image-only submissions
	Index       ports.CandidateIndex // nil looks up merge candidates in the repository
	Cache       ports.CacheService   // proximity cache to invalidate on merge and create
	MergeRadius float64
	Places      []domain.Place
}

// NewDetectionService creates a new DetectionService.
func NewDetectionService(
	detections ports.DetectionRepository,
	reports ports.ReportRepository,
	events ports.EventPublisher,
	opts DetectionOptions,
) *DetectionService {
	if opts.MergeRadius <= 0 {
		opts.MergeRadius = proximity.DefaultMergeRadius
	}
	if len(opts.Places) == 0 {
		opts.Places = proximity.IndianCities
	}
	return &DetectionService{
		detections:  detections,
		reports:     reports,
		events:      events,
		detector:    opts.Detector,
		index:       opts.Index,
		cache:       opts.Cache,
		mergeRadius: opts.MergeRadius,
		places:      opts.Places,
		now:         time.Now,
	}
}

// Ingest runs a submission through Classify, Record, Resolve and Announce.
// Low-confidence or empty observations are reported as Ignored, not as errors.
// If Resolve fails the recorded detection is deleted again.
func (s *DetectionService) Ingest(ctx context.Context, sub *ports.DetectionSubmission) (*DetectionOutcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "DetectionService.Ingest")
	defer span.End()
	span.SetAttributes(telemetry.AttrCameraID.String(sub.CameraID))

	obs, err := s.Classify(ctx, sub)
	if err != nil {
		metrics.DetectionsIngested.WithLabelValues("failed").Inc()
		return nil, err
	}
	if obs == nil {
		metrics.DetectionsIngested.WithLabelValues("ignored").Inc()
		return &DetectionOutcome{Ignored: true}, nil
	}

	det, err := s.Record(ctx, sub, obs)
	if err != nil {
		metrics.DetectionsIngested.WithLabelValues("failed").Inc()
		return nil, err
	}

	res, err := s.Resolve(ctx, det)
	if err != nil {
		if derr := s.Discard(ctx, det.ID); derr != nil {
			err = errors.Join(err, derr)
		}
		metrics.DetectionsIngested.WithLabelValues("failed").Inc()
		return nil, err
	}
	det.ReportID = res.Report.ID

	if err := s.Announce(ctx, det, res); err != nil {
		slog.WarnContext(ctx, "announce detection failed", "detection_id", det.ID, "error", err)
	}

	span.SetAttributes(telemetry.AttrMerged.Bool(res.Merged), telemetry.AttrReportID.String(res.Report.ID))
	if res.Merged {
		metrics.DetectionsIngested.WithLabelValues("merged").Inc()
	} else {
		metrics.DetectionsIngested.WithLabelValues("created").Inc()
	}
	return &DetectionOutcome{Detection: det, Report: res.Report, Merged: res.Merged}, nil
}

// Classify returns the submission's observation, running the detector on the
// image when none was supplied. It returns nil when nothing usable was found.
func (s *DetectionService) Classify(ctx context.Context, sub *ports.DetectionSubmission) (*domain.DefectObservation, error) {
	if sub.CameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", domain.ErrInvalidDetection)
	}
	if sub.Location != nil {
		if err := sub.Location.Validate(); err != nil {
			return nil, err
		}
	}

	obs := sub.Observation
	if obs == nil {
		if len(sub.Image) == 0 {
			return nil, fmt.Errorf("%w: observation or image is required", domain.ErrInvalidDetection)
		}
		if s.detector == nil {
			return nil, fmt.Errorf("%w: no detector configured for image submissions", domain.ErrInvalidDetection)
		}
		var err error
		obs, err = s.detector.Detect(ctx, sub.Image)
		if err != nil {
			return nil, fmt.Errorf("detect defects: %w", err)
		}
	}

	if obs == nil || obs.Type == domain.IssueNormalRoad || obs.Confidence < domain.MinDetectionConfidence {
		return nil, nil
	}
	if !obs.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown defect type %q", domain.ErrInvalidDetection, obs.Type)
	}
	return obs, nil
}

// Record persists a classified detection.
func (s *DetectionService) Record(ctx context.Context, sub *ports.DetectionSubmission, obs *domain.DefectObservation) (*domain.Detection, error) {
	det := &domain.Detection{
		ID:         uuid.NewString(),
		CameraID:   sub.CameraID,
		Location:   sub.Location,
		Defect:     *obs,
		Severity:   domain.ClassifySeverity(*obs),
		ImageURL:   sub.ImageURL,
		DetectedAt: s.now().UTC(),
	}
	if err := s.detections.Insert(ctx, det); err != nil {
		return nil, fmt.Errorf("insert detection: %w", err)
	}
	return det, nil
}

// Resolve merges the detection into the closest existing report within the
// merge radius, or creates a new report when there is none. The attach and the
// report write commit together, so a failed or retried Resolve never leaves a
// stray verification bump or an orphan report.
func (s *DetectionService) Resolve(ctx context.Context, det *domain.Detection) (*Resolution, error) {
	if det.Location != nil {
		id, ok, err := s.mergeTarget(ctx, *det.Location)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.merge(ctx, det, id)
		}
	}
	return s.create(ctx, det)
}

// Announce broadcasts the detection and the resulting report change.
func (s *DetectionService) Announce(ctx context.Context, det *domain.Detection, res *Resolution) error {
	if s.events == nil {
		return nil
	}
	kind := "new_report"
	publish := s.events.PublishReportCreated
	if res.Merged {
		kind = "report_updated"
		publish = s.events.PublishReportUpdated
	}
	return errors.Join(
		s.events.PublishDetection(ctx, det),
		publish(ctx, res.Report),
		s.events.PublishMapUpdate(ctx, kind, res.Report),
	)
}

// Discard deletes a recorded detection. It undoes Record.
func (s *DetectionService) Discard(ctx context.Context, detectionID string) error {
	if err := s.detections.Delete(ctx, detectionID); err != nil {
		return fmt.Errorf("delete detection %s: %w", detectionID, err)
	}
	return nil
}

// Recent returns the latest detections.
func (s *DetectionService) Recent(ctx context.Context, limit int) ([]domain.Detection, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.detections.Recent(ctx, limit)
}

// mergeTarget picks the report a detection at p merges into. The index is
// asked first; when it has nothing in range the repository is, since reports
// written by other processes may not have reached the index yet.
func (s *DetectionService) mergeTarget(ctx context.Context, p domain.GeoPoint) (string, bool, error) {
	radius := s.mergeRadius*prefilterSlack + 1
	if s.index != nil && s.index.Len() > 0 {
		id, ok, err := proximity.ShouldMerge(p, s.index.Within(p, radius), s.mergeRadius)
		if err != nil || ok {
			return id, ok, err
		}
	}
	reports, err := s.reports.FindWithin(ctx, p, radius, mergeCandidateLimit)
	if err != nil {
		return "", false, fmt.Errorf("find merge candidates: %w", err)
	}
	for _, r := range reports {
		if s.index != nil {
			s.index.Upsert(r.Entity())
		}
	}
	return proximity.ShouldMerge(p, entities(reports), s.mergeRadius)
}

func (s *DetectionService) merge(ctx context.Context, det *domain.Detection, reportID string) (*Resolution, error) {
	attachedTo, err := s.reports.MergeDetection(ctx, reportID, det.ID, VerificationStep, VerificationCeiling)
	if err != nil {
		return nil, fmt.Errorf("merge detection %s into report %s: %w", det.ID, reportID, err)
	}
	bumpGeneration(ctx, s.cache)
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "reports:id:"+attachedTo)
	}
	report, err := s.reports.GetByID(ctx, attachedTo)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", attachedTo, err)
	}
	return &Resolution{Report: report, Merged: true}, nil
}

func (s *DetectionService) create(ctx context.Context, det *domain.Detection) (*Resolution, error) {
	now := s.now().UTC()
	report := &domain.Report{
		ID:                uuid.NewString(),
		Location:          det.Location,
		IssueType:         det.Defect.Type,
		Severity:          det.Severity,
		Description:       fmt.Sprintf("Automatically detected by camera %s. Confidence: %.2f", det.CameraID, det.Defect.Confidence),
		Status:            domain.StatusPending,
		Priority:          domain.PriorityFor(det.Severity),
		VerificationScore: det.Defect.Confidence,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if det.ImageURL != "" {
		report.Images = []string{det.ImageURL}
	}
	if det.Location != nil {
		report.Address, _ = proximity.NearestLabel(*det.Location, s.places)
	}

	attachedTo, err := s.reports.CreateForDetection(ctx, report, det.ID)
	if err != nil {
		return nil, fmt.Errorf("create report for detection %s: %w", det.ID, err)
	}
	if attachedTo != report.ID {
		// An earlier attempt already resolved this detection.
		existing, err := s.reports.GetByID(ctx, attachedTo)
		if err != nil {
			return nil, fmt.Errorf("get report %s: %w", attachedTo, err)
		}
		return &Resolution{Report: existing, Merged: false}, nil
	}
	bumpGeneration(ctx, s.cache)
	if s.index != nil && report.Location != nil {
		s.index.Upsert(report.Entity())
	}
	metrics.ReportsCreated.WithLabelValues("camera").Inc()
	return &Resolution{Report: report, Merged: false}, nil
}
