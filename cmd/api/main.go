package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/roadwatch/internal/adapters/detector"
	"github.com/samirrijal/roadwatch/internal/adapters/http"
	"github.com/samirrijal/roadwatch/internal/adapters/memindex"
	natsadapter "github.com/samirrijal/roadwatch/internal/adapters/nats"
	"github.com/samirrijal/roadwatch/internal/adapters/postgres"
	"github.com/samirrijal/roadwatch/internal/adapters/valkey"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
	"github.com/samirrijal/roadwatch/internal/pkg/config"
	"github.com/samirrijal/roadwatch/internal/pkg/logging"
	"github.com/samirrijal/roadwatch/internal/pkg/telemetry"
	"github.com/samirrijal/roadwatch/internal/workflows"
)

func main() {
	cfg, err := config.Load("roadwatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
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
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				db.RecordPoolStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	var (
		events ports.EventPublisher
		queue  ports.DetectionQueue
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
		queue = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Temporal takes over async ingestion when enabled
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, queuing detections over nats", "error", err)
		} else {
			defer tc.Close()
			queue = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Repos
	reportRepo := postgres.NewReportRepo(db)
	detectionRepo := postgres.NewDetectionRepo(db)
	cameraRepo := postgres.NewCameraRepo(db)

	places := cfg.Proximity.Gazetteer()

	// Detector and merge candidate index
	opts := usecases.DetectionOptions{
		MergeRadius: cfg.Proximity.MergeRadiusMeters,
		Places:      places,
	}
	if cfg.Detector.URL != "" {
		opts.Detector = detector.New(cfg.Detector.URL, time.Duration(cfg.Detector.TimeoutSeconds)*time.Second)
	}
	if cfg.Proximity.UseIndex {
		idx := memindex.New()
		n, err := memindex.Warm(ctx, idx, reportRepo)
		if err != nil {
			slog.Warn("candidate index warm-up failed", "error", err)
		}
		slog.Info("candidate index ready", "reports", n)
		if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
			slog.Warn("nats unavailable, candidate index will not follow new reports", "error", err)
		} else {
			defer sub.Close()
			if err := memindex.Follow(ctx, idx, sub); err != nil {
				slog.Warn("follow new reports failed", "error", err)
			}
		}
		opts.Index = idx
	}
	opts.Cache = cacheSvc

	// Use cases
	reportSvc := usecases.NewReportService(reportRepo, events, cacheSvc, places)
	if opts.Index != nil {
		reportSvc.WithIndex(opts.Index)
	}
	proximitySvc := usecases.NewProximityService(reportRepo, cacheSvc, places)
	detectionSvc := usecases.NewDetectionService(detectionRepo, reportRepo, events, opts)
	cameras := usecases.NewCameraRegistry(cameraRepo, events)
	if err := cameras.Load(ctx); err != nil {
		slog.Warn("camera registry load failed", "error", err)
	}

	deps := &http.Dependencies{
		Reports:    reportSvc,
		Proximity:  proximitySvc,
		Detections: detectionSvc,
		Cameras:    cameras,
		Queue:      queue,
		Index:      opts.Index,
		Limits: http.QueryLimits{
			NearbyRadius:   cfg.Proximity.NearbyRadiusMeters,
			NearbyLimit:    cfg.Proximity.NearbyLimit,
			NearbyMaxLimit: cfg.Proximity.NearbyMaxLimit,
			CorridorWidth:  cfg.Proximity.CorridorWidthMeters,
		},
		RateLimit: cfg.Server.RateLimit,
		SpecPath:  http.DefaultSpecPath,
		NATS:      natsConn,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // camera frames
		AppName:      "Roadwatch API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
