package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/roadwatch/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting per client IP
	app.Use(limiter.New(limiter.Config{
		Max:        rateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// The two-point GET form predates polyline routes.
	app.Use(DeprecationMiddleware([]DeprecatedRoute{{
		Method:      fiber.MethodGet,
		Path:        "/v1/routes/damages",
		SunsetDate:  LegacyRouteSunset,
		Alternative: "/v1/routes/damages",
	}}))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Post("/reports", withTimeout(CreateReportHandler(deps)))
	v1.Get("/reports", withTimeout(ListReportsHandler(deps)))
	v1.Get("/reports/nearby", withTimeout(NearbyReportsHandler(deps)))
	v1.Get("/reports/stats", withTimeout(StatisticsHandler(deps)))
	v1.Get("/reports/:id", withTimeout(GetReportHandler(deps)))
	v1.Patch("/reports/:id", withTimeout(UpdateReportHandler(deps)))

	v1.Post("/routes/damages", withTimeout(RouteDamagesHandler(deps)))
	v1.Get("/routes/damages", withTimeout(LegacyRouteDamagesHandler(deps)))
	v1.Get("/label", withTimeout(LabelHandler(deps)))

	v1.Post("/detections", withTimeout(SubmitDetectionHandler(deps)))
	v1.Get("/detections", withTimeout(RecentDetectionsHandler(deps)))

	v1.Post("/cameras", withTimeout(RegisterCameraHandler(deps)))
	v1.Get("/cameras", withTimeout(ListCamerasHandler(deps)))
	v1.Get("/cameras/:id", withTimeout(GetCameraHandler(deps)))
	v1.Delete("/cameras/:id", withTimeout(DeleteCameraHandler(deps)))
	v1.Post("/cameras/:id/stream", withTimeout(CameraStreamHandler(deps)))

	// GraphQL
	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.SpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

// LegacyRouteSunset is when GET /v1/routes/damages is removed.
var LegacyRouteSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}

const requestTimeout = 15 * time.Second
