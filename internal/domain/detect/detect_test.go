package detect_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/clash/internal/domain/detect"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	base    = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	denver  = &model.Coordinate{Lat: 39.7392, Lon: -104.9903}
	boulder = &model.Coordinate{Lat: 40.0150, Lon: -105.2705}
	chicago = &model.Coordinate{Lat: 41.8781, Lon: -87.6298}
	sameBlk = &model.Coordinate{Lat: 39.7400, Lon: -104.9910}
)

func event(guid string, day int, c *model.Coordinate, performers ...string) model.Event {
	return model.Event{
		GUID:       guid,
		Date:       base.AddDate(0, 0, day),
		Location:   model.Location{Name: guid + "-venue", Coordinate: c},
		Performers: performers,
	}
}

func performers(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d", prefix, i)
	}
	return out
}

func TestDistanceRules(t *testing.T) {
	Convey("Given the default rule set", t, func() {
		d := detect.New()
		rule := rules.Defaults()
		ctx := context.Background()

		Convey("When two events are far apart on consecutive days", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("b", 1, chicago),
				event("a", 0, denver),
			}, rule)

			Convey("Then a single travel edge is raised with normalized endpoints", func() {
				So(err, ShouldBeNil)
				So(res.Edges, ShouldResemble, []model.ConflictEdge{
					{A: "a", B: "b", Reason: model.ReasonDistanceTravel},
				})
			})
		})

		Convey("When the far events are outside the travel buffer", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("a", 0, denver),
				event("b", 2, chicago),
			}, rule)
			So(err, ShouldBeNil)
			So(res.Edges, ShouldBeEmpty)
		})

		Convey("When two events share a block on the same day", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("E1", 0, denver),
				event("E2", 0, sameBlk),
			}, rule)

			Convey("Then a colocation edge is raised", func() {
				So(err, ShouldBeNil)
				So(res.Edges, ShouldResemble, []model.ConflictEdge{
					{A: "E1", B: "E2", Reason: model.ReasonColocationSameWindow},
				})
			})
		})

		Convey("When nearby events are on different days", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("a", 0, denver),
				event("b", 1, sameBlk),
			}, rule)
			So(err, ShouldBeNil)
			So(res.Edges, ShouldBeEmpty)
		})

		Convey("When events are mid-distance on the same day", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("a", 0, denver),
				event("b", 0, boulder),
			}, rule)
			So(err, ShouldBeNil)
			So(res.Edges, ShouldBeEmpty)
		})

		Convey("When one event has no coordinate", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("a", 0, denver),
				event("b", 0, nil),
			}, rule)

			Convey("Then it is skipped by the distance rules and reported", func() {
				So(err, ShouldBeNil)
				So(res.Edges, ShouldBeEmpty)
				So(res.Unlocated, ShouldResemble, []string{"b"})
			})
		})

		Convey("When the same guid appears twice", func() {
			res, err := d.Detect(ctx, []model.Event{
				event("a", 0, denver),
				event("a", 0, denver),
				event("b", 1, chicago),
			}, rule)
			So(err, ShouldBeNil)
			So(len(res.Edges), ShouldEqual, 1)
		})

		Convey("When the rule set is invalid", func() {
			bad := rule
			bad.PerformerCeiling = 0
			_, err := d.Detect(ctx, nil, bad)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPerformerOverload(t *testing.T) {
	Convey("Given a ceiling of 12 performers over a 2-day window", t, func() {
		rule := rules.Defaults()
		ctx := context.Background()

		Convey("When three events across the window hold 13 performers in total", func() {
			evs := []model.Event{
				event("a", 0, nil, performers("x", 5)...),
				event("b", 1, nil, performers("y", 5)...),
				event("c", 2, nil, performers("z", 3)...),
				event("d", 5, nil, performers("w", 13)...),
			}

			Convey("Then the sliding mode flags every pair inside the window", func() {
				res, err := detect.New().Detect(ctx, evs, rule)
				So(err, ShouldBeNil)
				So(res.Edges, ShouldResemble, []model.ConflictEdge{
					{A: "a", B: "b", Reason: model.ReasonPerformerOverload},
					{A: "a", B: "c", Reason: model.ReasonPerformerOverload},
					{A: "b", B: "c", Reason: model.ReasonPerformerOverload},
				})
			})

			Convey("Then the pairwise mode sees no pair above the ceiling", func() {
				res, err := detect.New(detect.WithWindowMode(detect.WindowPairwise)).Detect(ctx, evs, rule)
				So(err, ShouldBeNil)
				So(res.Edges, ShouldBeEmpty)
			})
		})

		Convey("When performers repeat across events", func() {
			evs := []model.Event{
				event("a", 0, nil, performers("x", 8)...),
				event("b", 1, nil, performers("x", 8)...),
			}
			res, err := detect.New().Detect(ctx, evs, rule)

			Convey("Then they are counted once", func() {
				So(err, ShouldBeNil)
				So(res.Edges, ShouldBeEmpty)
			})
		})

		Convey("When two close events together exceed the ceiling", func() {
			evs := []model.Event{
				event("a", 0, nil, performers("x", 7)...),
				event("b", 2, nil, performers("y", 7)...),
			}
			for _, mode := range []detect.WindowMode{detect.WindowSliding, detect.WindowPairwise} {
				res, err := detect.New(detect.WithWindowMode(mode)).Detect(ctx, evs, rule)
				So(err, ShouldBeNil)
				So(res.Edges, ShouldResemble, []model.ConflictEdge{
					{A: "a", B: "b", Reason: model.ReasonPerformerOverload},
				})
			}
		})
	})
}

func TestMultipleReasons(t *testing.T) {
	Convey("Given a far apart pair with a crowded lineup", t, func() {
		evs := []model.Event{
			event("a", 0, denver, performers("x", 7)...),
			event("b", 1, chicago, performers("y", 7)...),
		}
		res, err := detect.New().Detect(context.Background(), evs, rules.Defaults())

		Convey("Then both reasons are kept in deterministic order", func() {
			So(err, ShouldBeNil)
			So(res.Edges, ShouldResemble, []model.ConflictEdge{
				{A: "a", B: "b", Reason: model.ReasonDistanceTravel},
				{A: "a", B: "b", Reason: model.ReasonPerformerOverload},
			})
		})
	})
}

func TestIndexedMatchesExhaustive(t *testing.T) {
	Convey("Given a few hundred random events", t, func() {
		rng := rand.New(rand.NewSource(7))
		evs := make([]model.Event, 300)
		for i := range evs {
			c := &model.Coordinate{Lat: 30 + rng.Float64()*15, Lon: -120 + rng.Float64()*40}
			if rng.Intn(10) == 0 {
				c = nil
			}
			evs[i] = event(fmt.Sprintf("e-%03d", i), rng.Intn(90), c, performers("p", rng.Intn(4))...)
		}
		rule := rules.Defaults()
		rule.TravelBufferDays = 9
		rule.ColocationRadiusMiles = 60

		Convey("Then the weekly index yields the same edges as the exhaustive scan", func() {
			plain, err := detect.New(detect.WithIndexThreshold(100000)).Detect(context.Background(), evs, rule)
			So(err, ShouldBeNil)
			So(plain.Indexed, ShouldBeFalse)

			indexed, err := detect.New(detect.WithIndexThreshold(0)).Detect(context.Background(), evs, rule)
			So(err, ShouldBeNil)
			So(indexed.Indexed, ShouldBeTrue)

			So(len(plain.Edges), ShouldBeGreaterThan, 0)
			So(indexed.Edges, ShouldResemble, plain.Edges)
		})
	})
}
