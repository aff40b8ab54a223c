package bootstrap

import (
	"context"
	"strings"
	"time"

	"triage_server/adapter/in/http"
	"triage_server/config"
	"triage_server/infra/middleware"
	"triage_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI builds the fiber app on top of shared dependencies.
func NewAPI(cfg *config.Config, deps *Dependencies) *fiber.App {
	log := deps.Log

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: cfg.IsProduction(),
		AppName:               "triage",

		// go-json: 표준 encoding/json 대비 빠른 JSON 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
		BodyLimit:       4 * 1024 * 1024,
		// SSE batches can run for minutes; only reads are bounded.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover(log))
	app.Use(middleware.RequestLogger(log))
	app.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	// compress buffers the whole body, so the SSE stream is skipped
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "-stream")
		},
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	app.Use(middleware.Audit(middleware.NewAuditSink(deps.Redis, log)))

	// Health check (no auth required)
	health := http.NewHealthHandler(deps.Postgres.Pool, deps.Redis)
	if deps.Mongo != nil {
		health.WithCheck("mongodb", func(ctx context.Context) error {
			return deps.Mongo.Ping(ctx, nil)
		})
	}
	if deps.Neo4j != nil {
		health.WithCheck("neo4j", deps.Neo4j.VerifyConnectivity)
	}
	health.Register(app)

	api := app.Group("/api")

	// OAuth (no auth required - Google redirects here)
	http.NewAuthHandler(deps.MailboxAuth, cfg.FrontendURL, log).Register(api.Group("/auth"))

	auth := middleware.JWTAuth(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, /api routes are unauthenticated")
	}
	limiter := middleware.RateLimit(ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.APIRateLimit, time.Minute), "llm")

	emailHandler := http.NewEmailHandler(deps.Triage)
	emails := api.Group("/emails", auth)
	// prefix match: covers the stream route too
	emails.Use("/fetch-and-process", limiter)
	emailHandler.Register(emails)
	http.NewStreamHandler(deps.Triage, deps.ZLog).Register(emails)
	api.Post("/classify", auth, limiter, emailHandler.Classify)

	http.NewDashboardHandler(deps.Dashboard, deps.Roster).Register(api.Group("/dashboard", auth))

	log.Info("API server initialized")
	return app
}
