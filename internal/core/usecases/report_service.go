package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
)

const (
	reportCacheTTL = 60
	statsCacheKey  = "reports:stats"
	statsCacheTTL  = 60
)

// NewReport is the input for a citizen report.
type NewReport struct {
	ReporterID  string           `json:"reporter_id"`
	Location    *domain.GeoPoint `json:"location"`
	Address     string           `json:"address"`
	IssueType   domain.IssueType `json:"issue_type"`
	Severity    domain.Severity  `json:"severity"`
	Description string           `json:"description"`
	Images      []string         `json:"images"`
}

// ReportService handles report lifecycle business logic.
type ReportService struct {
	reports ports.ReportRepository
	events  ports.EventPublisher
	cache   ports.CacheService
	index   ports.CandidateIndex
	places  []domain.Place
	now     func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(reports ports.ReportRepository, events ports.EventPublisher, cache ports.CacheService, places []domain.Place) *ReportService {
	if len(places) == 0 {
		places = proximity.IndianCities
	}
	return &ReportService{reports: reports, events: events, cache: cache, places: places, now: time.Now}
}

// WithIndex makes Create add new reports to idx, the merge candidate index
// shared with the DetectionService.
func (s *ReportService) WithIndex(idx ports.CandidateIndex) *ReportService {
	s.index = idx
	return s
}

// Create validates and stores a citizen report, then announces it.
func (s *ReportService) Create(ctx context.Context, in NewReport) (*domain.Report, error) {
	if in.Location == nil {
		return nil, fmt.Errorf("%w: location is required", domain.ErrInvalidReport)
	}
	if err := in.Location.Validate(); err != nil {
		return nil, err
	}
	if !in.IssueType.Valid() {
		return nil, fmt.Errorf("%w: unknown issue type %q", domain.ErrInvalidReport, in.IssueType)
	}
	if in.Severity == "" {
		in.Severity = domain.SeverityMedium
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidReport, in.Severity)
	}

	address := in.Address
	if address == "" {
		address, _ = proximity.NearestLabel(*in.Location, s.places)
	}

	now := s.now().UTC()
	report := &domain.Report{
		ID:          uuid.NewString(),
		ReporterID:  in.ReporterID,
		Location:    in.Location,
		Address:     address,
		IssueType:   in.IssueType,
		Severity:    in.Severity,
		Description: in.Description,
		Images:      in.Images,
		Status:      domain.StatusPending,
		Priority:    domain.PriorityFor(in.Severity),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	metrics.ReportsCreated.WithLabelValues("citizen").Inc()
	if s.index != nil {
		s.index.Upsert(report.Entity())
	}
	s.invalidate(ctx, "")

	s.announce(ctx, "new_report", report)
	return report, nil
}

// Get returns a single report.
func (s *ReportService) Get(ctx context.Context, id string) (*domain.Report, error) {
	cacheKey := "reports:id:" + id
	var cached domain.Report
	if getCached(ctx, s.cache, "report", cacheKey, &cached) {
		return &cached, nil
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	setCached(ctx, s.cache, cacheKey, report, reportCacheTTL)
	return report, nil
}

// List returns one page of reports matching filter and the total match count.
func (s *ReportService) List(ctx context.Context, filter domain.ReportFilter, offset, limit int) ([]domain.Report, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.reports.List(ctx, filter, offset, limit)
}

// Update applies an authority's changes to a report.
func (s *ReportService) Update(ctx context.Context, id string, patch domain.ReportPatch) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidReport, *patch.Status)
		}
		report.Status = *patch.Status
		if report.Status == domain.StatusResolved {
			report.ResolvedAt = &now
		}
	}
	if patch.ResolutionNotes != nil {
		report.ResolutionNotes = *patch.ResolutionNotes
	}
	if patch.AssignedTo != nil {
		report.AssignedTo = *patch.AssignedTo
		report.AssignedAt = &now
		report.Status = domain.StatusAssigned
	}
	if patch.Priority != nil {
		if *patch.Priority < 1 {
			return nil, fmt.Errorf("%w: priority must be positive", domain.ErrInvalidReport)
		}
		report.Priority = *patch.Priority
	}
	report.UpdatedAt = now

	if err := s.reports.Update(ctx, report); err != nil {
		return nil, fmt.Errorf("update report %s: %w", id, err)
	}
	s.invalidate(ctx, id)

	s.announce(ctx, "report_updated", report)
	return report, nil
}

// Statistics returns the dashboard summary for the current UTC day.
func (s *ReportService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	var cached domain.Statistics
	if getCached(ctx, s.cache, "stats", statsCacheKey, &cached) {
		return &cached, nil
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.reports.Statistics(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("report statistics: %w", err)
	}
	setCached(ctx, s.cache, statsCacheKey, stats, statsCacheTTL)
	return stats, nil
}

// invalidate drops the statistics and report id entries and moves proximity
// results to a new cache generation.
func (s *ReportService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	bumpGeneration(ctx, s.cache)
	_ = s.cache.Delete(ctx, statsCacheKey)
	if id != "" {
		_ = s.cache.Delete(ctx, "reports:id:"+id)
	}
}

// announce publishes a report event and the matching map update. Failures
// are logged; the report is already stored.
func (s *ReportService) announce(ctx context.Context, kind string, r *domain.Report) {
	if s.events == nil {
		return
	}
	publish := s.events.PublishReportUpdated
	if kind == "new_report" {
		publish = s.events.PublishReportCreated
	}
	if err := publish(ctx, r); err != nil {
		slog.WarnContext(ctx, "publish report event failed", "event", kind, "report_id", r.ID, "error", err)
	}
	if err := s.events.PublishMapUpdate(ctx, kind, r); err != nil {
		slog.WarnContext(ctx, "publish map update failed", "event", kind, "report_id", r.ID, "error", err)
	}
}
