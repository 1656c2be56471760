package handler

import (
	"log/slog"
	"net/http"

	"github.com/oddslab/syntharb/internal/domain"
)

// RelationshipSource provides the currently installed relationship table.
type RelationshipSource interface {
	Relationships() []domain.MarketRelationship
	RelationshipCount() int
}

// RelationshipHandler serves the fitted relationship table.
type RelationshipHandler struct {
	source RelationshipSource
	logger *slog.Logger
}

// NewRelationshipHandler creates a RelationshipHandler.
func NewRelationshipHandler(source RelationshipSource, logger *slog.Logger) *RelationshipHandler {
	return &RelationshipHandler{source: source, logger: logger}
}

// listRelationshipsResponse wraps the relationship list response.
type listRelationshipsResponse struct {
	Count         int                         `json:"count"`
	Relationships []domain.MarketRelationship `json:"relationships"`
}

// List returns every relationship currently installed in the detector,
// optionally filtered by game.
// GET /api/relationships?game_id=nba-lal-bos
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	rels := h.source.Relationships()

	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		filtered := rels[:0]
		for _, rel := range rels {
			if rel.GameID == gameID {
				filtered = append(filtered, rel)
			}
		}
		rels = filtered
	}

	if rels == nil {
		rels = []domain.MarketRelationship{}
	}
	writeJSON(w, http.StatusOK, listRelationshipsResponse{
		Count:         len(rels),
		Relationships: rels,
	})
}
