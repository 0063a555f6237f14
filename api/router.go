package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"github.com/vainnor/session-stats/types"
)

type SessionAnalyzer interface {
	Analyze(ctx context.Context, userID string) types.AnalysisResult
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Analyzer SessionAnalyzer
	Health   HealthChecker
	Limiter  *RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// TracerProvider enables request spans when set.
	TracerProvider trace.TracerProvider
}

// NewRouter creates and configures a new router with all API endpoints
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	if cfg.TracerProvider != nil {
		r.Use(Tracing(cfg.TracerProvider))
	}
	r.Use(RequestLogger)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	if cfg.Limiter != nil {
		api.Use(cfg.Limiter.Middleware)
	}

	api.HandleFunc("/health", GetHealth(cfg.Health)).Methods("GET")
	api.HandleFunc("/users/{user_id}/sessions/stats", GetSessionStats(cfg.Analyzer)).Methods("GET")

	return r
}
