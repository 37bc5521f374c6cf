package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/roadwatch/internal/adapters/memindex"
	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
)

func submission(p domain.GeoPoint, typ domain.IssueType, confidence float64) *ports.DetectionSubmission {
	loc := p
	return &ports.DetectionSubmission{
		CameraID:    "cam-1",
		Location:    &loc,
		ImageURL:    "https://img.example/1.jpg",
		Observation: &domain.DefectObservation{Type: typ, Confidence: confidence},
	}
}

func TestDetectionService_Ingest_CreatesReport(t *testing.T) {
	var created *domain.Report
	var attachedDetection string
	reports := &mockReportRepo{
		createForDetFn: func(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
			created, attachedDetection = r, detectionID
			return r.ID, nil
		},
	}
	detections := &mockDetectionRepo{}
	events := &recordingPublisher{}
	index := &sliceIndex{}
	svc := usecases.NewDetectionService(detections, reports, events, usecases.DetectionOptions{Index: index})

	out, err := svc.Ingest(context.Background(), submission(delhi, domain.IssuePothole, 0.85))
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.False(t, out.Merged)
	assert.False(t, out.Ignored)
	assert.Equal(t, created.ID, out.Report.ID)
	assert.Equal(t, out.Detection.ID, attachedDetection)
	assert.Equal(t, created.ID, out.Detection.ReportID)

	assert.Equal(t, domain.SeverityHigh, created.Severity)
	assert.Equal(t, 1, created.Priority)
	assert.InDelta(t, 0.85, created.VerificationScore, 1e-9)
	assert.Equal(t, "Automatically detected by camera cam-1. Confidence: 0.85", created.Description)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, created.Images)
	assert.NotEmpty(t, created.Address)

	require.Equal(t, 1, index.Len())
	assert.Equal(t, created.ID, index.entities[0].ID)
	assert.Equal(t, []string{"detections.new", "reports.created", "map.update:new_report"}, events.subjects())
}

func TestDetectionService_Ingest_MergesNearbyReport(t *testing.T) {
	existing := reportAt("r-existing", north(delhi, 40))
	var gotDelta, gotCeiling float64
	var gotDetection string
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			return []domain.Report{existing, reportAt("r-far", north(delhi, 400))}, nil
		},
		mergeDetectionFn: func(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error) {
			gotDelta, gotCeiling, gotDetection = delta, ceiling, detectionID
			return id, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			r := existing
			r.VerificationScore = 0.6
			return &r, nil
		},
		createFn: func(ctx context.Context, r *domain.Report) error {
			t.Fatal("merge must not create a report")
			return nil
		},
	}
	events := &recordingPublisher{}
	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, events, usecases.DetectionOptions{})

	out, err := svc.Ingest(context.Background(), submission(north(delhi, 10), domain.IssueCrack, 0.75))
	require.NoError(t, err)

	assert.True(t, out.Merged)
	assert.Equal(t, "r-existing", out.Report.ID)
	assert.Equal(t, usecases.VerificationStep, gotDelta)
	assert.Equal(t, usecases.VerificationCeiling, gotCeiling)
	assert.Equal(t, out.Detection.ID, gotDetection)
	assert.Equal(t, []string{"detections.new", "reports.updated", "map.update:report_updated"}, events.subjects())
}

func TestDetectionService_Resolve_UsesIndex(t *testing.T) {
	index := &sliceIndex{entities: []domain.LocatedEntity{reportAt("r-indexed", north(delhi, 20)).Entity()}}
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			t.Fatal("repository lookup must be skipped when the index is populated")
			return nil, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			r := reportAt(id, north(delhi, 20))
			return &r, nil
		},
	}
	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{Index: index})

	loc := delhi
	res, err := svc.Resolve(context.Background(), &domain.Detection{ID: "d1", Location: &loc})
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, "r-indexed", res.Report.ID)
	assert.Equal(t, 1, index.queries)
}

func TestDetectionService_Ingest_Ignored(t *testing.T) {
	insertCalled := false
	detections := &mockDetectionRepo{
		insertFn: func(ctx context.Context, d *domain.Detection) error {
			insertCalled = true
			return nil
		},
	}
	svc := usecases.NewDetectionService(detections, &mockReportRepo{}, nil, usecases.DetectionOptions{})

	for _, sub := range []*ports.DetectionSubmission{
		submission(delhi, domain.IssuePothole, 0.69),
		submission(delhi, domain.IssueNormalRoad, 0.99),
	} {
		out, err := svc.Ingest(context.Background(), sub)
		require.NoError(t, err)
		assert.True(t, out.Ignored)
		assert.Nil(t, out.Report)
	}
	assert.False(t, insertCalled)
}

func TestDetectionService_Classify(t *testing.T) {
	ctx := context.Background()

	t.Run("requires camera id", func(t *testing.T) {
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{})
		sub := submission(delhi, domain.IssuePothole, 0.9)
		sub.CameraID = ""
		_, err := svc.Classify(ctx, sub)
		assert.ErrorIs(t, err, domain.ErrInvalidDetection)
	})

	t.Run("image without detector", func(t *testing.T) {
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{})
		_, err := svc.Classify(ctx, &ports.DetectionSubmission{CameraID: "cam-1", Image: []byte{0xff, 0xd8}})
		assert.ErrorIs(t, err, domain.ErrInvalidDetection)
	})

	t.Run("image runs detector", func(t *testing.T) {
		det := &stubDetector{obs: &domain.DefectObservation{Type: domain.IssueDebris, Confidence: 0.8}}
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{Detector: det})
		obs, err := svc.Classify(ctx, &ports.DetectionSubmission{CameraID: "cam-1", Image: []byte{0xff, 0xd8}})
		require.NoError(t, err)
		require.NotNil(t, obs)
		assert.Equal(t, domain.IssueDebris, obs.Type)
		assert.Equal(t, 1, det.calls)
	})

	t.Run("detector finds nothing", func(t *testing.T) {
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{Detector: &stubDetector{}})
		obs, err := svc.Classify(ctx, &ports.DetectionSubmission{CameraID: "cam-1", Image: []byte{1}})
		require.NoError(t, err)
		assert.Nil(t, obs)
	})

	t.Run("unknown type", func(t *testing.T) {
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{})
		_, err := svc.Classify(ctx, submission(delhi, "graffiti", 0.95))
		assert.ErrorIs(t, err, domain.ErrInvalidDetection)
	})

	t.Run("invalid location", func(t *testing.T) {
		svc := usecases.NewDetectionService(&mockDetectionRepo{}, &mockReportRepo{}, nil, usecases.DetectionOptions{})
		_, err := svc.Classify(ctx, submission(domain.GeoPoint{Lat: 0, Lon: 181}, domain.IssuePothole, 0.95))
		assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
	})
}

func TestDetectionService_Ingest_DiscardsOnResolveFailure(t *testing.T) {
	boom := errors.New("postgres unavailable")
	reports := &mockReportRepo{
		createFn: func(ctx context.Context, r *domain.Report) error { return boom },
	}
	detections := &mockDetectionRepo{}
	events := &recordingPublisher{}
	svc := usecases.NewDetectionService(detections, reports, events, usecases.DetectionOptions{})

	_, err := svc.Ingest(context.Background(), submission(delhi, domain.IssueFlooding, 0.95))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, detections.deleted, 1)
	assert.Empty(t, events.subjects())
}

func TestDetectionService_Ingest_WithoutLocationCreatesReport(t *testing.T) {
	var created *domain.Report
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			t.Fatal("unlocated detections have no merge candidates")
			return nil, nil
		},
		createFn: func(ctx context.Context, r *domain.Report) error {
			created = r
			return nil
		},
	}
	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{})

	sub := submission(delhi, domain.IssueSpeedHump, 0.95)
	sub.Location = nil
	out, err := svc.Ingest(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, out.Merged)
	assert.Nil(t, created.Location)
	assert.Empty(t, created.Address)
	// speed_hump is medium; confidence above 0.9 promotes it.
	assert.Equal(t, domain.SeverityHigh, created.Severity)
}

func TestDetectionService_Resolve_IndexMissFallsBackToRepository(t *testing.T) {
	index := &sliceIndex{entities: []domain.LocatedEntity{reportAt("r-far", north(delhi, 300)).Entity()}}
	repoCalls := 0
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			repoCalls++
			return []domain.Report{reportAt("r-elsewhere", north(delhi, 15))}, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			r := reportAt(id, north(delhi, 15))
			return &r, nil
		},
		createForDetFn: func(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
			t.Fatal("a report within the merge radius exists in the repository")
			return "", nil
		},
	}
	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{Index: index})

	loc := delhi
	res, err := svc.Resolve(context.Background(), &domain.Detection{ID: "d1", Location: &loc})
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, "r-elsewhere", res.Report.ID)
	assert.Equal(t, 1, repoCalls)
	assert.Equal(t, 2, index.Len(), "repository hits are added to the index")
}

func TestDetectionService_MergesIntoCitizenReportCreatedAfterWarmUp(t *testing.T) {
	index := memindex.New()
	bangalore := domain.GeoPoint{Lat: 12.9716, Lon: 77.5946}
	index.Upsert(reportAt("r-bangalore", bangalore).Entity())

	stored := map[string]domain.Report{}
	reports := &mockReportRepo{
		createFn: func(ctx context.Context, r *domain.Report) error {
			stored[r.ID] = *r
			return nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			r, ok := stored[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return &r, nil
		},
	}
	ctx := context.Background()

	citizen := usecases.NewReportService(reports, nil, nil, nil).WithIndex(index)
	loc := delhi
	report, err := citizen.Create(ctx, usecases.NewReport{Location: &loc, IssueType: domain.IssuePothole})
	require.NoError(t, err)

	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{Index: index})
	out, err := svc.Ingest(ctx, submission(north(delhi, 10), domain.IssuePothole, 0.8))
	require.NoError(t, err)
	assert.True(t, out.Merged)
	assert.Equal(t, report.ID, out.Report.ID)
	assert.Len(t, stored, 1)
}

func TestDetectionService_Ingest_MergeFailureLeavesNoPartialWrite(t *testing.T) {
	boom := errors.New("db down")
	existing := reportAt("r-existing", north(delhi, 10))
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			return []domain.Report{existing}, nil
		},
		mergeDetectionFn: func(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error) {
			return "", boom
		},
		createForDetFn: func(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
			t.Fatal("a failed merge must not fall through to create")
			return "", nil
		},
	}
	detections := &mockDetectionRepo{}
	events := &recordingPublisher{}
	svc := usecases.NewDetectionService(detections, reports, events, usecases.DetectionOptions{})

	_, err := svc.Ingest(context.Background(), submission(delhi, domain.IssuePothole, 0.8))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, detections.deleted, 1)
	assert.Empty(t, events.subjects())
}

func TestDetectionService_Ingest_CreateFailureSkipsIndex(t *testing.T) {
	boom := errors.New("db down")
	reports := &mockReportRepo{
		createForDetFn: func(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
			return "", boom
		},
	}
	detections := &mockDetectionRepo{}
	index := &sliceIndex{}
	svc := usecases.NewDetectionService(detections, reports, nil, usecases.DetectionOptions{Index: index})

	_, err := svc.Ingest(context.Background(), submission(delhi, domain.IssuePothole, 0.8))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, detections.deleted, 1)
	assert.Zero(t, index.Len())
}

func TestDetectionService_Resolve_AlreadyAttachedIsIdempotent(t *testing.T) {
	earlier := reportAt("r-earlier", delhi)
	reports := &mockReportRepo{
		createForDetFn: func(ctx context.Context, r *domain.Report, detectionID string) (string, error) {
			return earlier.ID, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			require.Equal(t, earlier.ID, id)
			r := earlier
			return &r, nil
		},
	}
	index := &sliceIndex{}
	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{Index: index})

	loc := delhi
	res, err := svc.Resolve(context.Background(), &domain.Detection{ID: "d1", Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, earlier.ID, res.Report.ID)
	assert.False(t, res.Merged)
	assert.Zero(t, index.Len())
}

func TestDetectionService_MergeInvalidatesProximityCache(t *testing.T) {
	cache := newMemCache()
	existing := reportAt("r-existing", north(delhi, 10))
	reports := &mockReportRepo{
		findWithinFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
			return []domain.Report{existing}, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Report, error) {
			r := existing
			return &r, nil
		},
	}
	ctx := context.Background()
	prox := usecases.NewProximityService(reports, cache, nil)
	_, err := prox.Nearby(ctx, delhi, 100, 10)
	require.NoError(t, err)
	cached := len(cache.data)

	svc := usecases.NewDetectionService(&mockDetectionRepo{}, reports, nil, usecases.DetectionOptions{Cache: cache})
	_, err = svc.Ingest(ctx, submission(delhi, domain.IssuePothole, 0.8))
	require.NoError(t, err)

	calls := 0
	reports.findWithinFn = func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.Report, error) {
		calls++
		return []domain.Report{existing}, nil
	}
	_, err = prox.Nearby(ctx, delhi, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Greater(t, len(cache.data), cached)
}
