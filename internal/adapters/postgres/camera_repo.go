package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// CameraRepo implements ports.CameraRepository.
type CameraRepo struct {
	db *DB
}

func NewCameraRepo(db *DB) *CameraRepo {
	return &CameraRepo{db: db}
}

// Upsert inserts or updates a camera by id.
func (r *CameraRepo) Upsert(ctx context.Context, c *domain.Camera) error {
	lon, lat := lonLat(c.Location)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cameras (id, ip, port, location, streaming, created_at)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4::float8, $5::float8), 4326)::geography, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET ip = EXCLUDED.ip, port = EXCLUDED.port,
		    location = EXCLUDED.location, streaming = EXCLUDED.streaming
	`, c.ID, c.IP, c.Port, lon, lat, c.Streaming, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert camera: %w", err)
	}
	return nil
}

func (r *CameraRepo) List(ctx context.Context) ([]domain.Camera, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ip, port,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       streaming, created_at
		FROM cameras
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cams []domain.Camera
	for rows.Next() {
		var c domain.Camera
		var lat, lon *float64
		if err := rows.Scan(&c.ID, &c.IP, &c.Port, &lat, &lon, &c.Streaming, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Location = pointOrNil(lat, lon)
		cams = append(cams, c)
	}
	return cams, rows.Err()
}

func (r *CameraRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	return err
}
