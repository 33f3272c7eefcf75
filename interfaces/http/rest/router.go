package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/services"
	"github.com/BajKull/Valks-backend/infrastructure/observability"
	"github.com/BajKull/Valks-backend/interfaces/http/rest/middleware"
	"github.com/BajKull/Valks-backend/interfaces/websocket"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router creates and configures the HTTP router
type Router struct {
	channels    *services.ChannelStore
	ws          *websocket.Server
	collector   *observability.Collector
	checks      []ReadinessCheck
	corsOrigins []string
	logger      *zap.Logger
}

// NewRouter creates a new router instance. A nil collector disables the
// metrics endpoint.
func NewRouter(
	channels *services.ChannelStore,
	ws *websocket.Server,
	collector *observability.Collector,
	checks []ReadinessCheck,
	corsOrigins []string,
	logger *zap.Logger,
) *Router {
	return &Router{
		channels:    channels,
		ws:          ws,
		collector:   collector,
		checks:      checks,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, "/health", "/ready", "/metrics"))
	if rt.collector != nil {
		router.Use(rt.collector.HTTPMiddleware)
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/channels/public", rt.publicChannels)
	})

	router.Get("/ws", rt.ws.HandleWebSocket)

	return router
}

// healthCheck handles liveness probes
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether every dependency answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
	defer cancel()

	failed := map[string]string{}
	for _, check := range rt.checks {
		if err := check.Check(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("dependency", check.Name), zap.Error(err))
			failed[check.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// publicChannels lists the Public rooms with their online counts
func (rt *Router) publicChannels(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, rt.channels.PublicSummaries())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
