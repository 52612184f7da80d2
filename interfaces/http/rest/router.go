package rest

import (
	"net/http"

	"phenotag-backend/application/sequence"
	"phenotag-backend/application/sync"
	"phenotag-backend/infrastructure/config"
	"phenotag-backend/interfaces/http/rest/handlers"
	"phenotag-backend/interfaces/http/rest/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg       *config.Config
	sequencer *sequence.Sequencer
	engine    *sync.Engine
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, sequencer *sequence.Sequencer, engine *sync.Engine, logger *zap.Logger) *Router {
	return &Router{
		cfg:       cfg,
		sequencer: sequencer,
		engine:    engine,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.phenotag.io"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg.JWTSecret, rt.cfg.JWTIssuer))

		sequenceHandler := handlers.NewSequenceHandler(rt.sequencer, rt.logger)
		r.Route("/plants/{plantID}/views/{viewAngle}", func(r chi.Router) {
			r.Post("/sequence", sequenceHandler.Initialize)
			r.Get("/stats", sequenceHandler.GetStats)
			r.Route("/images/{imageID}", func(r chi.Router) {
				r.Post("/annotations", sequenceHandler.Save)
				r.Get("/annotations", sequenceHandler.GetAnnotations)
				r.Get("/metadata", sequenceHandler.GetMetadata)
			})
		})

		syncHandler := handlers.NewSyncHandler(rt.engine, rt.logger)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/toggle", syncHandler.Toggle)
			r.Post("/operations", syncHandler.Trigger)
			r.Get("/status", syncHandler.Status)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
