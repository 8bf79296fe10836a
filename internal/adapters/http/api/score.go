package api

import (
	"context"
	"net/http"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/types"
	"github.com/okian/clash/pkg/logger"
)

// ScoreDependencies defines the interface for scoring operations.
type ScoreDependencies interface {
	ScoreEvent(ctx context.Context, guid string) (model.EventScore, error)
}

// ScoreHandler handles event score requests.
type ScoreHandler struct {
	deps ScoreDependencies
	log  logger.Logger
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, log logger.Logger) *ScoreHandler {
	return &ScoreHandler{deps: deps, log: log}
}

// HandleGetScore handles GET /events/{guid}/score requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	sc, err := h.deps.ScoreEvent(r.Context(), r.PathValue("guid"))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromScore(sc))
}
