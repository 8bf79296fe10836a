package rules_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestDefaults(t *testing.T) {
	Convey("The default rule set is valid", t, func() {
		d := rules.Defaults()
		So(d.Validate(), ShouldBeNil)
		So(d.DistanceThresholdMiles, ShouldEqual, 150)
		So(d.ConsecutiveWindowDays, ShouldEqual, 2)
		So(d.TravelBufferDays, ShouldEqual, 1)
		So(d.ColocationRadiusMiles, ShouldEqual, 5)
		So(d.PerformerCeiling, ShouldEqual, 12)
	})
}

func TestPatchApply(t *testing.T) {
	Convey("Given the default rules", t, func() {
		cur := rules.Defaults()

		Convey("When a single field is patched", func() {
			next, err := rules.Patch{TravelBufferDays: intp(3)}.Apply(cur)

			Convey("Then only that field changes", func() {
				So(err, ShouldBeNil)
				So(next.TravelBufferDays, ShouldEqual, 3)
				So(next.DistanceThresholdMiles, ShouldEqual, cur.DistanceThresholdMiles)
				So(next.PerformerCeiling, ShouldEqual, cur.PerformerCeiling)
			})
		})

		Convey("When the colocation radius would exceed the threshold", func() {
			next, err := rules.Patch{ColocationRadiusMiles: f64(200)}.Apply(cur)

			Convey("Then it is rejected and the current rules are returned", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(next, ShouldResemble, cur)
			})
		})

		Convey("When lowering the threshold below the radius in the same patch", func() {
			_, err := rules.Patch{DistanceThresholdMiles: f64(3)}.Apply(cur)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When both are moved consistently", func() {
			next, err := rules.Patch{DistanceThresholdMiles: f64(3), ColocationRadiusMiles: f64(3)}.Apply(cur)
			So(err, ShouldBeNil)
			So(next.DistanceThresholdMiles, ShouldEqual, 3)
		})

		Convey("When invalid values are supplied", func() {
			cases := []rules.Patch{
				{DistanceThresholdMiles: f64(-1)},
				{DistanceThresholdMiles: f64(math.NaN())},
				{ConsecutiveWindowDays: intp(-1)},
				{TravelBufferDays: intp(-2)},
				{PerformerCeiling: intp(0)},
				{ColocationRadiusMiles: f64(-0.5)},
			}
			for _, p := range cases {
				_, err := p.Apply(cur)
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			}
		})

		Convey("When the patch is empty", func() {
			p := rules.Patch{}
			So(p.Empty(), ShouldBeTrue)
			next, err := p.Apply(cur)
			So(err, ShouldBeNil)
			So(next, ShouldResemble, cur)
		})
	})
}
