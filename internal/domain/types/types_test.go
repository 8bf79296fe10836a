package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/rules"
	types "github.com/okian/clash/internal/domain/types"
	"github.com/okian/clash/internal/domain/weights"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromGroup(t *testing.T) {
	Convey("Given a domain group", t, func() {
		g := model.ConflictGroup{
			ID:        "g-1",
			Members:   []string{"E1", "E2"},
			Status:    model.StatusPartiallyResolved,
			Edges:     []model.ConflictEdge{model.NewEdge("E2", "E1", model.ReasonColocationSameWindow)},
			Decisions: map[string]model.Attendance{"E1": model.AttendancePlanned},
		}

		Convey("When it is converted", func() {
			out := types.FromGroup(g)

			Convey("Then every field carries over", func() {
				So(out.GroupID, ShouldEqual, "g-1")
				So(out.Members, ShouldResemble, []string{"E1", "E2"})
				So(out.Status, ShouldEqual, "partially_resolved")
				So(out.Edges, ShouldResemble, []types.ConflictEdge{{EventA: "E1", EventB: "E2", Reason: "colocation_same_window"}})
				So(out.Decisions, ShouldResemble, map[string]string{"E1": "planned"})
			})
		})

		Convey("When it has no decisions", func() {
			g.Decisions = nil
			raw, err := json.Marshal(types.FromGroup(g))
			So(err, ShouldBeNil)

			Convey("Then decisions encode as an empty object", func() {
				So(string(raw), ShouldContainSubstring, `"decisions":{}`)
			})
		})
	})
}

func TestFromScore(t *testing.T) {
	Convey("Given a score with unavailable dimensions", t, func() {
		s := model.EventScore{
			GUID:         "e1",
			VenueQuality: 80,
			Composite:    20,
			Unavailable:  []model.Dimension{model.DimReadiness, model.DimLogisticsEase},
		}

		Convey("When it is converted", func() {
			out := types.FromScore(s)

			Convey("Then unavailable dimensions are listed in name order", func() {
				So(out.UnavailableDimensions, ShouldResemble, []string{"logistics_ease", "readiness"})
				So(out.Composite, ShouldEqual, 20)
			})
		})

		Convey("When every dimension is available", func() {
			s.Unavailable = nil
			raw, err := json.Marshal(types.FromScore(s))
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"unavailable_dimensions":[]`)
		})
	})
}

func TestConflictsResponse(t *testing.T) {
	Convey("Given an empty detection", t, func() {
		resp := types.NewConflictsResponse(nil, nil, types.Summary{}, nil)
		raw, err := json.Marshal(resp)
		So(err, ShouldBeNil)

		Convey("Then lists encode as arrays and unlocated is omitted", func() {
			So(string(raw), ShouldContainSubstring, `"conflict_groups":[]`)
			So(string(raw), ShouldContainSubstring, `"scored_events":[]`)
			So(string(raw), ShouldNotContainSubstring, "unlocated_events")
		})
	})

	Convey("Given scores", t, func() {
		resp := types.NewConflictsResponse(nil, []model.EventScore{{GUID: "a", Composite: 50}}, types.Summary{TotalGroups: 1, Unresolved: 1}, []string{"x"})

		Convey("Then each is wrapped with its guid", func() {
			So(resp.ScoredEvents, ShouldHaveLength, 1)
			So(resp.ScoredEvents[0].GUID, ShouldEqual, "a")
			So(resp.ScoredEvents[0].Scores.Composite, ShouldEqual, 50)
			So(resp.UnlocatedEvents, ShouldResemble, []string{"x"})
		})
	})
}

func TestResolveRequest(t *testing.T) {
	Convey("Given a decoded resolve request", t, func() {
		var req types.ResolveRequest
		err := json.Unmarshal([]byte(`{"group_id":"g","decisions":[{"event_guid":"E1","attendance":"planned"},{"event_guid":"E2","attendance":"skipped"}]}`), &req)
		So(err, ShouldBeNil)

		Convey("Then its inputs keep order and attendance", func() {
			So(req.Inputs(), ShouldResemble, []resolution.DecisionInput{
				{EventGUID: "E1", Attendance: model.AttendancePlanned},
				{EventGUID: "E2", Attendance: model.AttendanceSkipped},
			})
		})

		Convey("Then an outcome converts to a successful response", func() {
			out := types.NewResolveResponse(resolution.Outcome{UpdatedCount: 2, Status: model.StatusResolved})
			So(out, ShouldResemble, types.ResolveResponse{Success: true, UpdatedCount: 2, Status: "resolved"})
		})
	})
}

func TestVersionedSettings(t *testing.T) {
	Convey("Given a rules response", t, func() {
		raw, err := json.Marshal(types.RulesResponse{ConflictRule: rules.Defaults(), Version: 3})
		So(err, ShouldBeNil)

		Convey("Then rule fields and version sit side by side", func() {
			var m map[string]any
			So(json.Unmarshal(raw, &m), ShouldBeNil)
			So(m["version"], ShouldEqual, 3)
			So(m["colocation_radius_miles"], ShouldEqual, 5)
			So(m["performer_ceiling"], ShouldEqual, 12)
		})
	})

	Convey("Given a weights response", t, func() {
		raw, err := json.Marshal(types.WeightsResponse{ScoringWeights: weights.Defaults(), Version: 2})
		So(err, ShouldBeNil)

		Convey("Then every weight carries the weight_ prefix", func() {
			var m map[string]any
			So(json.Unmarshal(raw, &m), ShouldBeNil)
			So(m, ShouldHaveLength, 6)
			So(m["version"], ShouldEqual, 2)
			So(m["weight_venue_quality"], ShouldEqual, weights.Defaults().VenueQuality)
			for _, k := range []string{"weight_organizer_reputation", "weight_performer_lineup", "weight_logistics_ease", "weight_readiness"} {
				So(m, ShouldContainKey, k)
			}
		})
	})
}
