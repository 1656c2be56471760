package handler

import (
	"log/slog"
	"net/http"

	"github.com/oddslab/syntharb/internal/stats"
)

// EngineSource exposes the covariance engine's observability snapshot.
type EngineSource interface {
	GetStatistics() stats.EngineStatistics
}

// StatsHandler serves engine and detector statistics.
type StatsHandler struct {
	engine   EngineSource
	detector RelationshipSource
	logger   *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(engine EngineSource, detector RelationshipSource, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{engine: engine, detector: detector, logger: logger}
}

// statsResponse combines engine and detector counters.
type statsResponse struct {
	Engine        stats.EngineStatistics `json:"engine"`
	Relationships int                    `json:"relationships"`
}

// GetStats returns a snapshot of the statistical core's state.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Engine:        h.engine.GetStatistics(),
		Relationships: h.detector.RelationshipCount(),
	})
}
