// Package httpapi exposes the Job lifecycle, human-review decisions, model
// bundle recommendation/install, and case-knowledge search over HTTP.
// Routing is chi, with go-chi/cors for browser-facing deployments,
// go-playground/validator for request struct validation, and
// santhosh-tekuri/jsonschema for the free-form metadata payload.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/clipforge/editpipeline/internal/config"
	"github.com/clipforge/editpipeline/internal/health"
	"github.com/clipforge/editpipeline/internal/knowledge"
	"github.com/clipforge/editpipeline/internal/modelmanager"
	"github.com/clipforge/editpipeline/internal/orchestrator"
	"github.com/clipforge/editpipeline/internal/store"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

// Server wires the HTTP surface's dependencies: the orchestrator service
// that owns the Job state machine, the Store for read-only lookups the
// orchestrator doesn't itself expose, the knowledge base for case search,
// the health Checker for /health/ready, and the device detector backing
// the model-recommendation endpoints.
type Server struct {
	Orchestrator *orchestrator.Service
	Store        store.Store
	Knowledge    *knowledge.Store
	Health       health.Checker

	Config config.Config

	DeviceDetector modelmanager.DeviceDetector

	Logger telemetry.Logger

	validate       *validator.Validate
	metadataSchema *jsonschema.Schema
}

// New constructs a Server and compiles the fixed metadata JSON Schema used
// to reject a JobCreateRequest.Metadata payload that is not a JSON object
// before it ever reaches the orchestrator. The schema accepts any keys and
// values inside the object.
func New(srv Server) (*Server, error) {
	s := srv
	s.validate = validator.New(validator.WithRequiredStructEnabled())

	compiler := jsonschema.NewCompiler()
	var schemaDoc any = map[string]any{
		"type":                 "object",
		"additionalProperties": true,
	}
	if err := compiler.AddResource("metadata.json", schemaDoc); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("metadata.json")
	if err != nil {
		return nil, err
	}
	s.metadataSchema = schema

	if s.DeviceDetector == nil {
		s.DeviceDetector = modelmanager.NoGPUDetector{}
	}
	return &s, nil
}

// Router builds the chi mux: CORS, request-id/logging, recovery, then the
// versioned route groups. The health endpoints are unauthenticated; every
// /api/v1/* route requires a configured API token when tokens are set.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestContext(s.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Token", "Authorization", "X-Admin-Token", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.requireToken)

		api.Route("/jobs", func(jr chi.Router) {
			jr.Post("/", s.handleCreateJob)
			jr.Get("/", s.handleListJobs)
			jr.Get("/{jobID}", s.handleGetJob)
			jr.Get("/{jobID}/events", s.handleJobEvents)
			jr.Get("/{jobID}/artifacts", s.handleJobArtifacts)
			jr.Get("/{jobID}/qa-report", s.handleJobQAReport)
		})

		api.Route("/reviews", func(rr chi.Router) {
			rr.Post("/{jobID}/decision", s.handleReviewDecision)
		})

		api.Route("/models", func(mr chi.Router) {
			mr.Post("/recommend", s.handleRecommendModels)
			mr.Post("/install", s.handleInstallModel)
		})

		api.Route("/cases", func(cr chi.Router) {
			cr.Post("/search", s.handleSearchCases)
			cr.Get("/{caseID}", s.handleGetCase)
		})
	})

	return r
}
