//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/samirrijal/roadwatch/internal/adapters/http"
	"github.com/samirrijal/roadwatch/internal/adapters/postgres"
	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
	"github.com/samirrijal/roadwatch/internal/pkg/config"
)

// setupTestDB connects to the database named by the ROADWATCH_DATABASE_*
// environment and expects cmd/migrate to have been run against it.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("roadwatch-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with real DB and repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	reports := postgres.NewReportRepo(db)
	detections := postgres.NewDetectionRepo(db)

	return &handler.Dependencies{
		Reports:    usecases.NewReportService(reports, nil, nil, nil),
		Proximity:  usecases.NewProximityService(reports, nil, nil),
		Detections: usecases.NewDetectionService(detections, reports, nil, usecases.DetectionOptions{}),
		Cameras:    usecases.NewCameraRegistry(postgres.NewCameraRepo(db), nil),
		DB:         db,
	}
}

// seedReport inserts a pending report at p and removes it when the test ends.
func seedReport(t *testing.T, db *postgres.DB, p domain.GeoPoint, status domain.ReportStatus) string {
	t.Helper()
	now := time.Now().UTC()
	loc := p
	r := &domain.Report{
		ID:        uuid.NewString(),
		Location:  &loc,
		IssueType: domain.IssuePothole,
		Severity:  domain.SeverityMedium,
		Status:    status,
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := postgres.NewReportRepo(db).Create(context.Background(), r); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM reports WHERE id = $1`, r.ID)
	})
	return r.ID
}

func TestNearbyReports_Integration(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	// A spot in the Thar desert nothing else should be reported at.
	center := domain.GeoPoint{Lat: 26.9, Lon: 70.9}
	here := seedReport(t, db, center, domain.StatusPending)
	near := seedReport(t, db, north(center, 1500), domain.StatusPending)
	seedReport(t, db, north(center, 8000), domain.StatusPending)

	resp, err := app.Test(httptest.NewRequest("GET",
		fmt.Sprintf("/v1/reports/nearby?lat=%f&lon=%f&distance=2000", center.Lat, center.Lon), nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Reports []usecases.ReportMatch `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Reports) != 2 {
		t.Fatalf("expected 2 reports within 2 km, got %d", len(result.Reports))
	}
	if result.Reports[0].Report.ID != here || result.Reports[1].Report.ID != near {
		t.Errorf("unexpected order %s, %s", result.Reports[0].Report.ID, result.Reports[1].Report.ID)
	}
}

func TestRouteDamages_Integration(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	start := domain.GeoPoint{Lat: 26.5, Lon: 70.5}
	end := north(start, 10000)
	open := seedReport(t, db, north(start, 4000), domain.StatusPending)
	seedReport(t, db, north(start, 6000), domain.StatusResolved)

	resp, body := doJSON(t, app, "POST", "/v1/routes/damages", map[string]interface{}{
		"route": [][2]float64{{start.Lat, start.Lon}, {end.Lat, end.Lon}},
		"width": 200,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result usecases.RouteDamages
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.DamageCount != 1 || result.Damages[0].Report.ID != open {
		t.Errorf("expected only the open report, got %+v", result.Damages)
	}
}

func TestGetReport_Integration_NotFound(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		resp, _ := doGet(t, app, "/v1/reports/"+id)
		if resp.StatusCode != 404 {
			t.Errorf("%s: expected 404, got %d", id, resp.StatusCode)
		}
	}
}
