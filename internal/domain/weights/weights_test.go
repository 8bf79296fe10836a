package weights_test

import (
	"errors"
	"testing"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/weights"
	. "github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

func TestDefaults(t *testing.T) {
	Convey("Default weights are valid and total 100", t, func() {
		d := weights.Defaults()
		So(d.Validate(), ShouldBeNil)
		So(d.Sum(), ShouldEqual, 100)
	})
}

func TestFullPatch(t *testing.T) {
	Convey("Given a full weight patch", t, func() {
		cur := weights.Defaults()

		Convey("When it sums to 100", func() {
			next, err := weights.Patch{
				VenueQuality: intp(20), OrganizerReputation: intp(20), PerformerLineup: intp(20),
				LogisticsEase: intp(20), Readiness: intp(20),
			}.Apply(cur)
			So(err, ShouldBeNil)
			So(next, ShouldResemble, weights.ScoringWeights{VenueQuality: 20, OrganizerReputation: 20, PerformerLineup: 20, LogisticsEase: 20, Readiness: 20})
		})

		Convey("When it sums to 99", func() {
			next, err := weights.Patch{
				VenueQuality: intp(20), OrganizerReputation: intp(20), PerformerLineup: intp(20),
				LogisticsEase: intp(20), Readiness: intp(19),
			}.Apply(cur)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			So(next, ShouldResemble, cur)
		})
	})
}

func TestPartialPatch(t *testing.T) {
	Convey("Given the default weights 25/20/25/15/15", t, func() {
		cur := weights.Defaults()

		Convey("When venue quality is raised to 40", func() {
			next, err := weights.Patch{VenueQuality: intp(40)}.Apply(cur)

			Convey("Then the other four fill 60 in proportion 20:25:15:15", func() {
				So(err, ShouldBeNil)
				So(next.Sum(), ShouldEqual, 100)
				So(next.VenueQuality, ShouldEqual, 40)
				// 60*20/75=16, 60*25/75=20, 60*15/75=12, 12
				So(next.OrganizerReputation, ShouldEqual, 16)
				So(next.PerformerLineup, ShouldEqual, 20)
				So(next.LogisticsEase, ShouldEqual, 12)
				So(next.Readiness, ShouldEqual, 12)
			})
		})

		Convey("When the remainder does not divide evenly", func() {
			next, err := weights.Patch{VenueQuality: intp(33)}.Apply(cur)

			Convey("Then largest remainders win and the total is exact", func() {
				So(err, ShouldBeNil)
				So(next.Sum(), ShouldEqual, 100)
				// 67 over 20:25:15:15 -> 17.87, 22.33, 13.4, 13.4
				So(next.OrganizerReputation, ShouldEqual, 18)
				So(next.PerformerLineup, ShouldEqual, 22)
				So(next.LogisticsEase, ShouldEqual, 14)
				So(next.Readiness, ShouldEqual, 13)
			})
		})

		Convey("When the given weights exceed 100", func() {
			_, err := weights.Patch{VenueQuality: intp(60), Readiness: intp(50)}.Apply(cur)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When a given weight is out of range", func() {
			_, err := weights.Patch{LogisticsEase: intp(-5)}.Apply(cur)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			_, err = weights.Patch{LogisticsEase: intp(101)}.Apply(cur)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When the given weights take the whole 100", func() {
			next, err := weights.Patch{VenueQuality: intp(100)}.Apply(cur)
			So(err, ShouldBeNil)
			So(next, ShouldResemble, weights.ScoringWeights{VenueQuality: 100})
		})

		Convey("When the untouched weights were all zero", func() {
			zeroed := weights.ScoringWeights{VenueQuality: 100}
			next, err := weights.Patch{VenueQuality: intp(1)}.Apply(zeroed)

			Convey("Then the remainder is spread evenly with canonical tie-break", func() {
				So(err, ShouldBeNil)
				So(next, ShouldResemble, weights.ScoringWeights{VenueQuality: 1, OrganizerReputation: 25, PerformerLineup: 25, LogisticsEase: 25, Readiness: 24})
			})
		})

		Convey("When the patch is empty", func() {
			next, err := weights.Patch{}.Apply(cur)
			So(err, ShouldBeNil)
			So(next, ShouldResemble, cur)
		})

		Convey("When many partial updates are chained", func() {
			w := cur
			for v := 0; v <= 100; v += 7 {
				var err error
				w, err = weights.Patch{PerformerLineup: intp(v)}.Apply(w)
				So(err, ShouldBeNil)
				So(w.Sum(), ShouldEqual, 100)
				w, err = weights.Patch{Readiness: intp(100 - v)}.Apply(w)
				So(err, ShouldBeNil)
				So(w.Sum(), ShouldEqual, 100)
			}
		})
	})
}
