package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/pkg/geospatial"
)

// --- Mock ReportRepository ---

type mockReportRepo struct {
	createFn         func(ctx context.Context, r *domain.Report) error
	getByIDFn        func(ctx context.Context, id string) (*domain.Report, error)
	updateFn         func(ctx context.Context, r *domain.Report) error
	listFn           func(ctx context.Context, f domain.ReportFilter, offset, limit int) ([]domain.Report, int, error)
	findWithinFn     func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error)
	findInBoundsFn   func(ctx context.Context, b domain.Bounds, statuses []domain.ReportStatus) ([]domain.Report, error)
	createForDetFn   func(ctx context.Context, r *domain.Report, detectionID string) (string, error)
	mergeDetectionFn func(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error)
	statisticsFn     func(ctx context.Context, since time.Time) (*domain.Statistics, error)
}

func (m *mockReportRepo) Create(ctx context.Context, r *domain.Report) error {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockReportRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Report, error) {
	return nil, nil
}

func (m *mockReportRepo) Update(ctx context.Context, r *domain.Report) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, r)
	}
	return nil
}

func (m *mockReportRepo) List(ctx context.Context, f domain.ReportFilter, offset, limit int) ([]domain.Report, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockReportRepo) FindWithin(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
	if m.findWithinFn != nil {
		return m.findWithinFn(ctx, center, radius, limit)
	}
	return nil, nil
}

func (m *mockReportRepo) FindInBounds(ctx context.Context, b domain.Bounds, statuses []domain.ReportStatus) ([]domain.Report, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, statuses)
	}
	return nil, nil
}

// CreateForDetection falls back to createFn so tests can observe the report.
func (m *mockReportRepo) CreateForDetection(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
	if m.createForDetFn != nil {
		return m.createForDetFn(ctx, r, detectionID)
	}
	if err := m.Create(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (m *mockReportRepo) MergeDetection(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error) {
	if m.mergeDetectionFn != nil {
		return m.mergeDetectionFn(ctx, id, detectionID, delta, ceiling)
	}
	return id, nil
}

func (m *mockReportRepo) Statistics(ctx context.Context, since time.Time) (*domain.Statistics, error) {
	if m.statisticsFn != nil {
		return m.statisticsFn(ctx, since)
	}
	return &domain.Statistics{}, nil
}

// --- Mock DetectionRepository ---

type mockDetectionRepo struct {
	insertFn func(ctx context.Context, d *domain.Detection) error
	deleted  []string
}

func (m *mockDetectionRepo) Insert(ctx context.Context, d *domain.Detection) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, d)
	}
	return nil
}

func (m *mockDetectionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDetectionRepo) Recent(ctx context.Context, limit int) ([]domain.Detection, error) {
	return nil, nil
}

// --- Mock CameraRepository ---

type mockCameraRepo struct {
	listFn  func(ctx context.Context) ([]domain.Camera, error)
	saved   []domain.Camera
	deleted []string
}

func (m *mockCameraRepo) Upsert(ctx context.Context, cam *domain.Camera) error {
	m.saved = append(m.saved, *cam)
	return nil
}

func (m *mockCameraRepo) List(ctx context.Context) ([]domain.Camera, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockCameraRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Recording EventPublisher ---

type publishedEvent struct {
	subject string
	id      string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) record(subject, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, id: id})
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}

func (p *recordingPublisher) PublishReportCreated(_ context.Context, r *domain.Report) error {
	return p.record("reports.created", r.ID)
}

func (p *recordingPublisher) PublishReportUpdated(_ context.Context, r *domain.Report) error {
	return p.record("reports.updated", r.ID)
}

func (p *recordingPublisher) PublishDetection(_ context.Context, d *domain.Detection) error {
	return p.record("detections.new", d.ID)
}

func (p *recordingPublisher) PublishMapUpdate(_ context.Context, kind string, r *domain.Report) error {
	return p.record("map.update:"+kind, r.ID)
}

func (p *recordingPublisher) PublishCameraStream(_ context.Context, cam *domain.Camera) error {
	return p.record("cameras.stream", cam.ID)
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Stub Detector ---

type stubDetector struct {
	obs   *domain.DefectObservation
	err   error
	calls int
}

func (d *stubDetector) Detect(context.Context, []byte) (*domain.DefectObservation, error) {
	d.calls++
	return d.obs, d.err
}

// --- Slice-backed CandidateIndex ---

type sliceIndex struct {
	entities []domain.LocatedEntity
	queries  int
}

func (x *sliceIndex) Upsert(e domain.LocatedEntity) { x.entities = append(x.entities, e) }
func (x *sliceIndex) Remove(string)                 {}
func (x *sliceIndex) Len() int                      { return len(x.entities) }

func (x *sliceIndex) Within(domain.GeoPoint, float64) []domain.LocatedEntity {
	x.queries++
	return x.entities
}

var (
	_ ports.ReportRepository    = (*mockReportRepo)(nil)
	_ ports.DetectionRepository = (*mockDetectionRepo)(nil)
	_ ports.CameraRepository    = (*mockCameraRepo)(nil)
	_ ports.EventPublisher      = (*recordingPublisher)(nil)
	_ ports.CacheService        = (*memCache)(nil)
	_ ports.Detector            = (*stubDetector)(nil)
	_ ports.CandidateIndex      = (*sliceIndex)(nil)
)

// --- Fixtures ---

var delhi = domain.GeoPoint{Lat: 28.6139, Lon: 77.2090}

// north returns p moved meters due north.
func north(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/geospatial.MetersPerDegree, Lon: p.Lon}
}

func reportAt(id string, p domain.GeoPoint) domain.Report {
	loc := p
	return domain.Report{
		ID:        id,
		Location:  &loc,
		IssueType: domain.IssuePothole,
		Severity:  domain.SeverityHigh,
		Status:    domain.StatusPending,
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}
