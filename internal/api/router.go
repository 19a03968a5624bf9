// Package api provides the HTTP API for the advisor service.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgsteward/pgsteward/internal/api/handlers"
	"github.com/pgsteward/pgsteward/internal/api/middleware"
	"github.com/pgsteward/pgsteward/internal/auth"
	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/services"
	"github.com/pgsteward/pgsteward/pkg/config"
)

// RouterConfig holds the configuration for the router.
type RouterConfig struct {
	Store        *db.DB
	JWTManager   *auth.JWTManager
	AuthConfig   *config.AuthConfig
	Databases    *services.DatabaseService
	Analysis     *services.AnalysisService
	Maintenance  *services.MaintenanceService
	Partition    *services.PartitionService
	Signals      *services.SignalService
	Proposals    *services.ProposalService
	Reports      *services.ReportService
	Orchestrator *jobs.Orchestrator
	Logger       *slog.Logger

	// AllowedOrigins specifies CORS allowed origins.
	// If empty, defaults to environment variable ALLOWED_ORIGINS or localhost only.
	AllowedOrigins []string

	// RequestTimeout is the maximum duration for request processing.
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" {
			allowedOrigins = strings.Split(envOrigins, ",")
			for i := range allowedOrigins {
				allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
			}
		} else {
			// Default to localhost only for security
			allowedOrigins = []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			}
		}
	}

	// Global middleware - order matters!
	// 1. RealIP must be first to get correct client IP
	r.Use(chimiddleware.RealIP)

	// 2. Request ID for tracing
	r.Use(middleware.RequestID)

	// 3. Panic recovery (early to catch any middleware panics)
	r.Use(middleware.Recoverer(cfg.Logger))

	// 4. Security headers - applies to all responses
	r.Use(middleware.SecurityHeaders)

	// 5. CORS - must be before other response-writing middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// 6. Request timeout - after CORS to ensure preflight responses work
	r.Use(chimiddleware.Timeout(requestTimeout))

	// 7. Logging - after timeout to capture accurate durations
	r.Use(middleware.Logger(cfg.Logger))

	// 8. Rate limiting
	rateLimiter := middleware.NewRateLimiter(100, time.Minute)
	r.Use(rateLimiter.Limit)

	// Create handlers
	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.Logger)
	authHandler := handlers.NewAuthHandler(cfg.JWTManager, cfg.AuthConfig, cfg.Logger)
	databaseHandler := handlers.NewDatabaseHandler(cfg.Databases, cfg.Logger)
	pipelineHandler := handlers.NewPipelineHandler(cfg.Databases, cfg.Analysis, cfg.Maintenance, cfg.Partition, cfg.Orchestrator, cfg.Logger)
	signalHandler := handlers.NewSignalHandler(cfg.Signals, cfg.Logger)
	proposalHandler := handlers.NewProposalHandler(cfg.Proposals, cfg.Logger)
	reportHandler := handlers.NewReportHandler(cfg.Reports, cfg.Analysis, cfg.Logger)
	jobHandler := handlers.NewJobHandler(cfg.Orchestrator, cfg.Logger)

	// Bearer auth is enforced only when an API key is configured.
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTManager, cfg.AuthConfig.APIKeyHash != "")

	// Probes and metrics (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Custom 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"NOT_FOUND","message":"The requested resource was not found"}`))
	})

	// Custom 405 handler
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"code":"METHOD_NOT_ALLOWED","message":"The request method is not allowed for this resource"}`))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// API info endpoint (no auth required)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version":"v1","status":"available"}`))
		})

		// Token issuance (no auth required)
		r.Post("/auth/token", authHandler.Token)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/databases", func(r chi.Router) {
				r.Get("/", databaseHandler.List)
				r.Post("/", databaseHandler.Register)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", databaseHandler.Get)
					r.Delete("/", databaseHandler.Delete)
					r.Get("/autonomy", databaseHandler.GetAutonomy)
					r.Put("/autonomy", databaseHandler.SetAutonomy)

					// Pipeline triggers
					r.Post("/analyze", pipelineHandler.Analyze)
					r.Post("/maintenance", pipelineHandler.Maintenance)
					r.Post("/partition", pipelineHandler.Partition)

					// Per-database views
					r.Get("/signals", signalHandler.ListByDatabase)
					r.Get("/proposals", proposalHandler.ListByDatabase)
					r.Get("/actions", reportHandler.Actions)
					r.Get("/schema/review", reportHandler.SchemaReview)
					r.Get("/report", reportHandler.Report)
				})
			})

			r.Route("/signals/{id}", func(r chi.Router) {
				r.Get("/", signalHandler.Get)
				r.Get("/explain", signalHandler.Explain)
			})

			r.Route("/proposals/{id}", func(r chi.Router) {
				r.Get("/", proposalHandler.Get)
				r.Post("/approve", proposalHandler.Approve)
				r.Post("/reject", proposalHandler.Reject)
				r.Post("/execute", proposalHandler.Execute)
				r.Get("/explain", proposalHandler.Explain)
			})

			r.Post("/maintenance/explain", pipelineHandler.ExplainTask)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobHandler.List)
				r.Get("/{id}", jobHandler.Get)
				r.Post("/{id}/cancel", jobHandler.Cancel)
			})
		})
	})

	return r
}
