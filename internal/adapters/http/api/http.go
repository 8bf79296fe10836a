// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/clash/internal/domain/types"
	"github.com/okian/clash/pkg/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ConflictDependencies
	ScoreDependencies
	ConfigDependencies
	CatalogDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	conflictsHandler *ConflictsHandler
	scoreHandler     *ScoreHandler
	configHandler    *ConfigHandler
	catalogHandler   *CatalogHandler
	log              logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger handed to every handler.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, s.log)
	s.conflictsHandler = NewConflictsHandler(deps, s.log)
	s.scoreHandler = NewScoreHandler(deps, s.log)
	s.configHandler = NewConfigHandler(deps, s.log)
	s.catalogHandler = NewCatalogHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint), s.log))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("GET /conflicts", "conflicts", s.conflictsHandler.HandleDetect)
	route("GET /conflicts/{group_id}", "conflict_group", s.conflictsHandler.HandleGetGroup)
	route("POST /conflicts/resolve", "resolve", s.conflictsHandler.HandleResolve)

	route("GET /events/{guid}/score", "event_score", s.scoreHandler.HandleGetScore)

	route("GET /config/conflict_rules", "conflict_rules", s.configHandler.HandleGetRules)
	route("PUT /config/conflict_rules", "conflict_rules", s.configHandler.HandlePutRules)
	route("GET /config/scoring_weights", "scoring_weights", s.configHandler.HandleGetWeights)
	route("PUT /config/scoring_weights", "scoring_weights", s.configHandler.HandlePutWeights)

	route("POST /catalog/refresh", "catalog_refresh", s.catalogHandler.HandleRefresh)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the {code, message} body.
// Server-side failures are logged with the request id; their cause never
// reaches the client.
func writeError(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed",
			logger.String("request_id", RequestID(ctx)),
			logger.String("code", code),
			logger.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: publicMessage(status, err)})
}

// decodeJSON reads a single JSON object from r into dst. Unknown fields
// and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return NewKind(op, ErrBodyTooLarge)
		case errors.Is(err, io.EOF):
			return WrapKind(op, ErrBadRequest, errors.New("empty body"))
		default:
			return WrapKind(op, ErrBadRequest, err)
		}
	}
	if dec.More() {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("unexpected data after JSON object"))
	}
	return nil
}
