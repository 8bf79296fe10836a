package api

import (
	"context"
	"net/http"
	"time"

	service "github.com/okian/clash/internal/app"
	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/types"
	"github.com/okian/clash/pkg/logger"
)

// ConflictDependencies defines the interface for conflict operations.
type ConflictDependencies interface {
	DetectConflicts(ctx context.Context, start, end time.Time) (service.DetectionReport, error)
	Group(ctx context.Context, id string) (model.ConflictGroup, error)
	Resolve(ctx context.Context, groupID string, decisions []resolution.DecisionInput) (resolution.Outcome, error)
}

// ConflictsHandler handles conflict detection and resolution requests.
type ConflictsHandler struct {
	deps ConflictDependencies
	log  logger.Logger
}

// NewConflictsHandler creates a new conflicts handler.
func NewConflictsHandler(deps ConflictDependencies, log logger.Logger) *ConflictsHandler {
	return &ConflictsHandler{deps: deps, log: log}
}

// HandleDetect handles GET /conflicts?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD.
func (h *ConflictsHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	const op = "api.detect_conflicts"
	ctx := r.Context()
	q := r.URL.Query()
	start, err := dateParam(op, q.Get("start_date"), "start_date")
	if err != nil {
		writeError(ctx, h.log, w, err)
		return
	}
	end, err := dateParam(op, q.Get("end_date"), "end_date")
	if err != nil {
		writeError(ctx, h.log, w, err)
		return
	}

	rep, err := h.deps.DetectConflicts(ctx, start, end)
	if err != nil {
		writeError(ctx, h.log, w, err)
		return
	}
	sum := types.Summary{
		TotalGroups:       rep.Summary.TotalGroups,
		Unresolved:        rep.Summary.Unresolved,
		PartiallyResolved: rep.Summary.PartiallyResolved,
		Resolved:          rep.Summary.Resolved,
	}
	writeJSON(w, http.StatusOK, types.NewConflictsResponse(rep.Groups, rep.Scores, sum, rep.Unlocated))
}

// HandleGetGroup handles GET /conflicts/{group_id}.
func (h *ConflictsHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.Group(r.Context(), r.PathValue("group_id"))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromGroup(g))
}

// HandleResolve handles POST /conflicts/resolve.
func (h *ConflictsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve"
	ctx := r.Context()
	var req types.ResolveRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(ctx, h.log, w, err)
		return
	}
	out, err := h.deps.Resolve(ctx, req.GroupID, req.Inputs())
	if err != nil {
		writeError(ctx, h.log, w, err)
		return
	}
	h.log.Info(ctx, "group resolved",
		logger.String("request_id", RequestID(ctx)),
		logger.String("group_id", req.GroupID),
		logger.Int("updated", out.UpdatedCount),
		logger.String("status", string(out.Status)))
	writeJSON(w, http.StatusOK, types.NewResolveResponse(out))
}

// dateParam parses a required YYYY-MM-DD query value.
func dateParam(op, v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, WrapKind(op, ErrBadRequest, errMissing(name))
	}
	return geotime.ParseDate(v)
}
