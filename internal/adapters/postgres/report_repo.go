package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

const reportColumns = `
	id, COALESCE(reporter_id, ''),
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	COALESCE(address, ''), issue_type, severity, COALESCE(description, ''),
	COALESCE(images, '{}'), status, priority, verification_score,
	COALESCE(assigned_to, ''), assigned_at, resolved_at, COALESCE(resolution_notes, ''),
	created_at, updated_at`

// ReportRepo implements ports.ReportRepository with pgx and PostGIS.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new ReportRepo.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts a report. A nil location is stored as NULL.
func (r *ReportRepo) Create(ctx context.Context, rep *domain.Report) error {
	lon, lat := lonLat(rep.Location)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO reports (id, reporter_id, location, address, issue_type, severity, description,
		                     images, status, priority, verification_score, created_at, updated_at)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3::float8, $4::float8), 4326)::geography, $5, $6, $7, $8,
		        $9, $10, $11, $12, $13, $14)
	`, rep.ID, nilIfEmpty(rep.ReporterID), lon, lat, rep.Address, rep.IssueType, rep.Severity, rep.Description,
		rep.Images, rep.Status, rep.Priority, rep.VerificationScore, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID returns a report by UUID. Malformed ids are reported as not found.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	row := r.db.Pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// GetByIDs returns multiple reports by UUID, newest first.
func (r *ReportRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports WHERE id = ANY($1)
		ORDER BY created_at DESC
	`, ids)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

// Update writes the mutable triage fields of a report.
func (r *ReportRepo) Update(ctx context.Context, rep *domain.Report) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE reports
		SET status = $2, priority = $3, assigned_to = $4, assigned_at = $5,
		    resolved_at = $6, resolution_notes = $7, updated_at = $8
		WHERE id = $1
	`, rep.ID, rep.Status, rep.Priority, nilIfEmpty(rep.AssignedTo), rep.AssignedAt,
		rep.ResolvedAt, nilIfEmpty(rep.ResolutionNotes), rep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w", rep.ID, domain.ErrNotFound)
	}
	return nil
}

// List returns one page of reports matching filter, newest first, and the total match count.
func (r *ReportRepo) List(ctx context.Context, f domain.ReportFilter, offset, limit int) ([]domain.Report, int, error) {
	const where = `
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR severity = $2)
		  AND ($3 = '' OR issue_type = $3)`

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM reports`+where,
		string(f.Status), string(f.Severity), string(f.IssueType)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports`+where+`
		ORDER BY created_at DESC, id
		OFFSET $4 LIMIT $5
	`, string(f.Status), string(f.Severity), string(f.IssueType), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// FindWithin returns located reports within radiusMeters using PostGIS ST_DWithin.
func (r *ReportRepo) FindWithin(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Report, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE location IS NOT NULL
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
		LIMIT $4
	`, center.Lon, center.Lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

// FindInBounds returns located reports inside the box, optionally restricted to statuses.
func (r *ReportRepo) FindInBounds(ctx context.Context, b domain.Bounds, statuses []domain.ReportStatus) ([]domain.Report, error) {
	var filter []string
	for _, s := range statuses {
		filter = append(filter, string(s))
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE location IS NOT NULL
		  AND ST_Intersects(location::geometry, ST_MakeEnvelope($1, $2, $3, $4, 4326))
		  AND (COALESCE(cardinality($5::text[]), 0) = 0 OR status = ANY($5))
	`, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, filter)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

// CreateForDetection inserts report and attaches detectionID to it in one
// transaction. If the detection is already attached, nothing is written and
// the existing report ID is returned.
func (r *ReportRepo) CreateForDetection(ctx context.Context, rep *domain.Report, detectionID string) (string, error) {
	attachedTo := rep.ID
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		current, err := lockDetection(ctx, tx, detectionID)
		if err != nil {
			return err
		}
		if current != "" {
			attachedTo = current
			return nil
		}

		lon, lat := lonLat(rep.Location)
		if _, err := tx.Exec(ctx, `
			INSERT INTO reports (id, reporter_id, location, address, issue_type, severity, description,
			                     images, status, priority, verification_score, created_at, updated_at)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3::float8, $4::float8), 4326)::geography, $5, $6, $7, $8,
			        $9, $10, $11, $12, $13, $14)
		`, rep.ID, nilIfEmpty(rep.ReporterID), lon, lat, rep.Address, rep.IssueType, rep.Severity, rep.Description,
			rep.Images, rep.Status, rep.Priority, rep.VerificationScore, rep.CreatedAt, rep.UpdatedAt); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		return attachDetection(ctx, tx, detectionID, rep.ID)
	})
	if err != nil {
		return "", err
	}
	return attachedTo, nil
}

// MergeDetection attaches detectionID to report id and raises the report's
// verification score by delta, capped at ceiling, in one transaction. A
// detection that is already attached is left alone and its report ID returned.
func (r *ReportRepo) MergeDetection(ctx context.Context, id, detectionID string, delta, ceiling float64) (string, error) {
	attachedTo := id
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		current, err := lockDetection(ctx, tx, detectionID)
		if err != nil {
			return err
		}
		if current != "" {
			attachedTo = current
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE reports
			SET verification_score = LEAST($3::float8, verification_score + $2), updated_at = now()
			WHERE id = $1
		`, id, delta, ceiling)
		if err != nil {
			return fmt.Errorf("add verification: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
		}
		return attachDetection(ctx, tx, detectionID, id)
	})
	if err != nil {
		return "", err
	}
	return attachedTo, nil
}

// lockDetection row-locks a detection and returns the report it is attached
// to, or "" when it is unattached.
func lockDetection(ctx context.Context, tx pgx.Tx, detectionID string) (string, error) {
	var reportID string
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(report_id::text, '') FROM detections WHERE id = $1 FOR UPDATE`, detectionID,
	).Scan(&reportID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("detection %s: %w", detectionID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock detection: %w", err)
	}
	return reportID, nil
}

func attachDetection(ctx context.Context, tx pgx.Tx, detectionID, reportID string) error {
	if _, err := tx.Exec(ctx, `UPDATE detections SET report_id = $2 WHERE id = $1`, detectionID, reportID); err != nil {
		return fmt.Errorf("attach detection: %w", err)
	}
	return nil
}

// Statistics returns dashboard counters; "today" counts start at since.
func (r *ReportRepo) Statistics(ctx context.Context, since time.Time) (*domain.Statistics, error) {
	var s domain.Statistics
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE created_at >= $1),
		       count(*) FILTER (WHERE status = 'pending'),
		       count(*) FILTER (WHERE status = 'resolved' AND resolved_at >= $1),
		       count(*) FILTER (WHERE priority = 1 AND status <> 'resolved'),
		       (SELECT count(*) FROM detections)
		FROM reports
	`, since).Scan(&s.TotalReports, &s.ReportsToday, &s.Pending, &s.ResolvedToday, &s.HighPriority, &s.AIDetections)
	if err != nil {
		return nil, fmt.Errorf("report statistics: %w", err)
	}
	return &s, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var rep domain.Report
	var lat, lon *float64
	if err := row.Scan(
		&rep.ID, &rep.ReporterID, &lat, &lon,
		&rep.Address, &rep.IssueType, &rep.Severity, &rep.Description,
		&rep.Images, &rep.Status, &rep.Priority, &rep.VerificationScore,
		&rep.AssignedTo, &rep.AssignedAt, &rep.ResolvedAt, &rep.ResolutionNotes,
		&rep.CreatedAt, &rep.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rep.Location = pointOrNil(lat, lon)
	return &rep, nil
}

func collectReports(rows pgx.Rows) ([]domain.Report, error) {
	defer rows.Close()
	var reports []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}
