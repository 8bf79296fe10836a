package api

import (
	"context"
	"net/http"

	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/types"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
)

// ConfigDependencies defines the interface for rule and weight settings.
type ConfigDependencies interface {
	Rules(ctx context.Context) (rules.ConflictRule, int64, error)
	UpdateRules(ctx context.Context, p rules.Patch) (rules.ConflictRule, int64, error)
	Weights(ctx context.Context) (weights.ScoringWeights, int64, error)
	UpdateWeights(ctx context.Context, p weights.Patch) (weights.ScoringWeights, int64, error)
}

// ConfigHandler handles the /config endpoints.
type ConfigHandler struct {
	deps ConfigDependencies
	log  logger.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(deps ConfigDependencies, log logger.Logger) *ConfigHandler {
	return &ConfigHandler{deps: deps, log: log}
}

// HandleGetRules handles GET /config/conflict_rules.
func (h *ConfigHandler) HandleGetRules(w http.ResponseWriter, r *http.Request) {
	rule, v, err := h.deps.Rules(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RulesResponse{ConflictRule: rule, Version: v})
}

// HandlePutRules handles PUT /config/conflict_rules. Omitted fields keep
// their current value.
func (h *ConfigHandler) HandlePutRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_rules"
	var p rules.Patch
	if err := decodeJSON(w, r, op, &p); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	rule, v, err := h.deps.UpdateRules(r.Context(), p)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RulesResponse{ConflictRule: rule, Version: v})
}

// HandleGetWeights handles GET /config/scoring_weights.
func (h *ConfigHandler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	sw, v, err := h.deps.Weights(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.WeightsResponse{ScoringWeights: sw, Version: v})
}

// HandlePutWeights handles PUT /config/scoring_weights. Omitted dimensions
// are rescaled so the total stays 100.
func (h *ConfigHandler) HandlePutWeights(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_weights"
	var p weights.Patch
	if err := decodeJSON(w, r, op, &p); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	sw, v, err := h.deps.UpdateWeights(r.Context(), p)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.WeightsResponse{ScoringWeights: sw, Version: v})
}
