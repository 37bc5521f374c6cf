// Command importer bulk-loads road damage reports from a CSV export into
// PostGIS. Rows are upserted by id, so re-running an import is safe.
//
// Recognised columns: id, lat, lon, issue_type, severity, description,
// address, status, reporter_id, created_at (RFC 3339). Only lat, lon and
// issue_type are required.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/roadwatch/internal/pkg/config"
	"github.com/samirrijal/roadwatch/internal/pkg/logging"
)

const batchSize = 500

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: importer <reports.csv>")
	}

	cfg, err := config.Load("roadwatch-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open %s: %v", os.Args[1], err)
	}
	defer f.Close()

	imp := newRowParser(cfg.Proximity.Gazetteer())
	total, skipped, err := importReports(ctx, pool, f, imp)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	slog.Info("import finished", "imported", total, "skipped", skipped)
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func importReports(ctx context.Context, pool *pgxpool.Pool, r io.Reader, parser *rowParser) (total, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"lat", "lon", "issue_type"} {
		if _, ok := cols[required]; !ok {
			return 0, 0, fmt.Errorf("missing column %q", required)
		}
	}

	batch := &pgx.Batch{}
	count := 0
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping unreadable row", "line", line, "error", err)
			skipped++
			continue
		}

		rep, err := parser.parse(record, cols)
		if err != nil {
			slog.Warn("skipping invalid row", "line", line, "error", err)
			skipped++
			continue
		}

		batch.Queue(`
			INSERT INTO reports (id, reporter_id, location, address, issue_type, severity, description,
			                     status, priority, verification_score, resolved_at, created_at, updated_at)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8,
			        $9, $10, $11, $12, $13, $13)
			ON CONFLICT (id) DO UPDATE
			SET location = EXCLUDED.location, address = EXCLUDED.address,
			    issue_type = EXCLUDED.issue_type, severity = EXCLUDED.severity,
			    description = EXCLUDED.description, status = EXCLUDED.status,
			    priority = EXCLUDED.priority, updated_at = now()
		`, rep.ID, nilEmpty(rep.ReporterID), rep.Location.Lon, rep.Location.Lat, nilEmpty(rep.Address),
			rep.IssueType, rep.Severity, nilEmpty(rep.Description), rep.Status, rep.Priority,
			rep.VerificationScore, rep.ResolvedAt, rep.CreatedAt)

		count++
		total++

		if count >= batchSize {
			if err := flushBatch(ctx, pool, batch, count); err != nil {
				return total - count, skipped, err
			}
			batch = &pgx.Batch{}
			count = 0
		}
	}

	if count > 0 {
		if err := flushBatch(ctx, pool, batch, count); err != nil {
			return total - count, skipped, err
		}
	}
	return total, skipped, nil
}

func flushBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, count int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < count; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}
