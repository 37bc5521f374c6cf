package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// DetectionRepo implements ports.DetectionRepository.
type DetectionRepo struct {
	db *DB
}

func NewDetectionRepo(db *DB) *DetectionRepo {
	return &DetectionRepo{db: db}
}

func (r *DetectionRepo) Insert(ctx context.Context, d *domain.Detection) error {
	lon, lat := lonLat(d.Location)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO detections (id, camera_id, location, defect_type, confidence,
		                        bbox_x, bbox_y, bbox_width, bbox_height, severity, image_url, detected_at)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3::float8, $4::float8), 4326)::geography, $5, $6,
		        $7, $8, $9, $10, $11, $12, $13)
	`, d.ID, d.CameraID, lon, lat, d.Defect.Type, d.Defect.Confidence,
		d.Defect.BBox.X, d.Defect.BBox.Y, d.Defect.BBox.Width, d.Defect.BBox.Height,
		d.Severity, nilIfEmpty(d.ImageURL), d.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

func (r *DetectionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM detections WHERE id = $1`, id)
	return err
}

// Recent returns the newest detections first.
func (r *DetectionRepo) Recent(ctx context.Context, limit int) ([]domain.Detection, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, camera_id,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       defect_type, confidence, bbox_x, bbox_y, bbox_width, bbox_height,
		       severity, COALESCE(image_url, ''), COALESCE(report_id::text, ''), detected_at
		FROM detections
		ORDER BY detected_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dets []domain.Detection
	for rows.Next() {
		var d domain.Detection
		var lat, lon *float64
		if err := rows.Scan(
			&d.ID, &d.CameraID, &lat, &lon,
			&d.Defect.Type, &d.Defect.Confidence,
			&d.Defect.BBox.X, &d.Defect.BBox.Y, &d.Defect.BBox.Width, &d.Defect.BBox.Height,
			&d.Severity, &d.ImageURL, &d.ReportID, &d.DetectedAt,
		); err != nil {
			return nil, err
		}
		d.Location = pointOrNil(lat, lon)
		dets = append(dets, d)
	}
	return dets, rows.Err()
}
