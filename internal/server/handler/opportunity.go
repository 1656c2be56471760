package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oddslab/syntharb/internal/domain"
)

// OpportunityLister is the service surface the opportunity handler needs.
type OpportunityLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// OpportunityHandler serves detected opportunities.
type OpportunityHandler struct {
	opps   OpportunityLister
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps OpportunityLister, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// listOpportunitiesResponse wraps the opportunity list response.
type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ListRecent returns the most recently detected opportunities.
// GET /api/opportunities/recent?limit=20
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 200)

	opps, err := h.opps.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}
