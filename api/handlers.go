package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vainnor/session-stats/analyzer"
	"github.com/vainnor/session-stats/logger"
	"github.com/vainnor/session-stats/types"
)

const healthTimeout = 3 * time.Second

// GetSessionStats returns the session duration statistics for one user.
func GetSessionStats(a SessionAnalyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["user_id"]

		result := a.Analyze(r.Context(), userID)

		writeJSON(r.Context(), w, statusFor(result), result)
	}
}

// GetHealth pings the session store.
func GetHealth(h HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil {
			writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.Ping(ctx); err != nil {
			logger.Ctx(r.Context()).Warn("health check failed", "error", err)
			writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func statusFor(result types.AnalysisResult) int {
	switch result.Shape {
	case types.ShapeSuccess:
		return http.StatusOK
	case types.ShapeEmpty:
		return http.StatusNotFound
	}

	switch result.ErrorKind {
	case analyzer.KindConnectivity.String():
		return http.StatusServiceUnavailable
	case analyzer.KindParse.String(), analyzer.KindEmptyStatistics.String():
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Ctx(ctx).Error("failed to encode response", "error", err)
	}
}
