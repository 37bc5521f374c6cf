package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/roadwatch/internal/adapters/detector"
	"github.com/samirrijal/roadwatch/internal/adapters/memindex"
	natsadapter "github.com/samirrijal/roadwatch/internal/adapters/nats"
	"github.com/samirrijal/roadwatch/internal/adapters/postgres"
	"github.com/samirrijal/roadwatch/internal/adapters/valkey"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
	"github.com/samirrijal/roadwatch/internal/pkg/config"
	"github.com/samirrijal/roadwatch/internal/pkg/logging"
	"github.com/samirrijal/roadwatch/internal/workflows"
)

func main() {
	cfg, err := config.Load("roadwatch-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, detections will not be announced", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

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
	if cfg.Proximity.UseIndex {
		idx := memindex.New()
		if _, err := memindex.Warm(ctx, idx, reportRepo); err != nil {
			slog.Warn("candidate index warm-up failed", "error", err)
		}
		followReports(ctx, cfg.NATS.URL, idx)
		opts.Index = idx
	}
	detections := usecases.NewDetectionService(postgres.NewDetectionRepo(db), reportRepo, events, opts)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.DetectionWorkflow)
	w.RegisterActivity(&workflows.DetectionActivities{Detections: detections})

	slog.Info("detection worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// followReports keeps idx current with reports created elsewhere. Without
// NATS the index only sees this worker's reports and merge lookups fall back
// to the database on a miss.
func followReports(ctx context.Context, url string, idx *memindex.Index) {
	sub, err := natsadapter.NewSubscriber(url)
	if err != nil {
		slog.Warn("nats unavailable, candidate index will not follow new reports", "error", err)
		return
	}
	if err := memindex.Follow(ctx, idx, sub); err != nil {
		slog.Warn("follow new reports failed", "error", err)
		sub.Close()
	}
}
