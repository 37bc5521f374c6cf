package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samirrijal/roadwatch/internal/adapters/detector"
	"github.com/samirrijal/roadwatch/internal/adapters/memindex"
	natsadapter "github.com/samirrijal/roadwatch/internal/adapters/nats"
	"github.com/samirrijal/roadwatch/internal/adapters/postgres"
	"github.com/samirrijal/roadwatch/internal/adapters/valkey"
	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
	"github.com/samirrijal/roadwatch/internal/pkg/config"
	"github.com/samirrijal/roadwatch/internal/pkg/logging"
	"github.com/samirrijal/roadwatch/internal/pkg/telemetry"
)

// realtime consumes camera submissions from JetStream, ingests them, and keeps
// its merge candidate index in step with newly created reports.
func main() {
	cfg, err := config.Load("roadwatch-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	reportRepo := postgres.NewReportRepo(db)

	opts := usecases.DetectionOptions{
		MergeRadius: cfg.Proximity.MergeRadiusMeters,
		Places:      cfg.Proximity.Gazetteer(),
	}
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, proximity cache will not be invalidated", "error", err)
	} else {
		defer cache.Close()
		opts.Cache = cache
	}
	if cfg.Detector.URL != "" {
		opts.Detector = detector.New(cfg.Detector.URL, time.Duration(cfg.Detector.TimeoutSeconds)*time.Second)
	}
	var idx *memindex.Index
	if cfg.Proximity.UseIndex {
		idx = memindex.New()
		n, err := memindex.Warm(ctx, idx, reportRepo)
		if err != nil {
			slog.Warn("candidate index warm-up failed", "error", err)
		}
		slog.Info("candidate index ready", "reports", n)
		opts.Index = idx
	}

	detections := usecases.NewDetectionService(postgres.NewDetectionRepo(db), reportRepo, pub, opts)

	err = sub.SubscribeDetectionSubmissions(ctx, func(ctx context.Context, s *ports.DetectionSubmission) error {
		outcome, err := detections.Ingest(ctx, s)
		if err != nil {
			if domain.IsInvalidInput(err) {
				// Redelivery cannot fix a bad submission.
				slog.WarnContext(ctx, "rejected detection", "camera_id", s.CameraID, "error", err)
				return nil
			}
			return err
		}
		if outcome.Ignored {
			slog.DebugContext(ctx, "detection ignored", "camera_id", s.CameraID)
			return nil
		}
		slog.InfoContext(ctx, "detection ingested",
			"camera_id", s.CameraID,
			"report_id", outcome.Report.ID,
			"merged", outcome.Merged,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe detections: %v", err)
	}

	if idx != nil {
		if err := memindex.Follow(ctx, idx, sub); err != nil {
			log.Fatalf("subscribe reports: %v", err)
		}
	}

	slog.Info("realtime consumer started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down realtime consumer", "signal", sig.String())
}
