// Package types contains the JSON shapes exchanged over the HTTP API and
// their conversions from domain models.
package types

import (
	"sort"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
)

// ConflictEdge is one reason two events conflict.
type ConflictEdge struct {
	EventA string `json:"event_a"`
	EventB string `json:"event_b"`
	Reason string `json:"reason"`
}

// ConflictGroup is a connected set of conflicting events.
type ConflictGroup struct {
	GroupID   string            `json:"group_id"`
	Members   []string          `json:"members"`
	Status    string            `json:"status"`
	Edges     []ConflictEdge    `json:"edges"`
	Decisions map[string]string `json:"decisions"`
}

// EventScore is the per-dimension and composite score of an event.
type EventScore struct {
	GUID                  string   `json:"guid"`
	VenueQuality          int      `json:"venue_quality"`
	OrganizerReputation   int      `json:"organizer_reputation"`
	PerformerLineup       int      `json:"performer_lineup"`
	LogisticsEase         int      `json:"logistics_ease"`
	Readiness             int      `json:"readiness"`
	Composite             int      `json:"composite"`
	UnavailableDimensions []string `json:"unavailable_dimensions"`
}

// ScoredEvent pairs a guid with its score.
type ScoredEvent struct {
	GUID   string     `json:"guid"`
	Scores EventScore `json:"scores"`
}

// Summary counts groups by status.
type Summary struct {
	TotalGroups       int `json:"total_groups"`
	Unresolved        int `json:"unresolved"`
	PartiallyResolved int `json:"partially_resolved"`
	Resolved          int `json:"resolved"`
}

// ConflictsResponse is the body of GET /conflicts.
type ConflictsResponse struct {
	ConflictGroups  []ConflictGroup `json:"conflict_groups"`
	ScoredEvents    []ScoredEvent   `json:"scored_events"`
	Summary         Summary         `json:"summary"`
	UnlocatedEvents []string        `json:"unlocated_events,omitempty"`
}

// DecisionRequest is one attendance choice in a resolve request.
type DecisionRequest struct {
	EventGUID  string `json:"event_guid"`
	Attendance string `json:"attendance"`
}

// ResolveRequest is the body of POST /conflicts/resolve.
type ResolveRequest struct {
	GroupID   string            `json:"group_id"`
	Decisions []DecisionRequest `json:"decisions"`
}

// ResolveResponse is the reply to POST /conflicts/resolve.
type ResolveResponse struct {
	Success      bool   `json:"success"`
	UpdatedCount int    `json:"updated_count"`
	Status       string `json:"status"`
}

// RulesResponse is a rule set with its version.
type RulesResponse struct {
	rules.ConflictRule
	Version int64 `json:"version"`
}

// WeightsResponse is a weight set with its version.
type WeightsResponse struct {
	weights.ScoringWeights
	Version int64 `json:"version"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromGroup converts a domain group. Nil slices and maps become empty so
// clients always see arrays and objects.
func FromGroup(g model.ConflictGroup) ConflictGroup {
	out := ConflictGroup{
		GroupID:   g.ID,
		Members:   append([]string{}, g.Members...),
		Status:    string(g.Status),
		Edges:     make([]ConflictEdge, 0, len(g.Edges)),
		Decisions: make(map[string]string, len(g.Decisions)),
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, ConflictEdge{EventA: e.A, EventB: e.B, Reason: string(e.Reason)})
	}
	for guid, a := range g.Decisions {
		out.Decisions[guid] = string(a)
	}
	return out
}

// FromScore converts a domain score.
func FromScore(s model.EventScore) EventScore {
	out := EventScore{
		GUID:                  s.GUID,
		VenueQuality:          s.VenueQuality,
		OrganizerReputation:   s.OrganizerReputation,
		PerformerLineup:       s.PerformerLineup,
		LogisticsEase:         s.LogisticsEase,
		Readiness:             s.Readiness,
		Composite:             s.Composite,
		UnavailableDimensions: make([]string, 0, len(s.Unavailable)),
	}
	for _, d := range s.Unavailable {
		out.UnavailableDimensions = append(out.UnavailableDimensions, string(d))
	}
	sort.Strings(out.UnavailableDimensions)
	return out
}

// NewConflictsResponse assembles the GET /conflicts body.
func NewConflictsResponse(groups []model.ConflictGroup, scores []model.EventScore, sum Summary, unlocated []string) ConflictsResponse {
	out := ConflictsResponse{
		ConflictGroups:  make([]ConflictGroup, 0, len(groups)),
		ScoredEvents:    make([]ScoredEvent, 0, len(scores)),
		Summary:         sum,
		UnlocatedEvents: unlocated,
	}
	for _, g := range groups {
		out.ConflictGroups = append(out.ConflictGroups, FromGroup(g))
	}
	for _, s := range scores {
		out.ScoredEvents = append(out.ScoredEvents, ScoredEvent{GUID: s.GUID, Scores: FromScore(s)})
	}
	return out
}

// Inputs converts the request decisions for the resolution manager.
// Attendance values are validated there.
func (r ResolveRequest) Inputs() []resolution.DecisionInput {
	out := make([]resolution.DecisionInput, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		out = append(out, resolution.DecisionInput{
			EventGUID:  d.EventGUID,
			Attendance: model.Attendance(d.Attendance),
		})
	}
	return out
}

// NewResolveResponse converts a resolution outcome.
func NewResolveResponse(o resolution.Outcome) ResolveResponse {
	return ResolveResponse{Success: true, UpdatedCount: o.UpdatedCount, Status: string(o.Status)}
}
