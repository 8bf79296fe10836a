package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
	scoring "github.com/okian/clash/internal/domain/scoring"
	"github.com/okian/clash/internal/domain/weights"
	. "github.com/smartystreets/goconvey/convey"
)

var equal = weights.ScoringWeights{
	VenueQuality: 20, OrganizerReputation: 20, PerformerLineup: 20, LogisticsEase: 20, Readiness: 20,
}

func dims(v, o, p, l, r int) model.Dimensions {
	return model.Dimensions{
		VenueQuality:        model.IntPtr(v),
		OrganizerReputation: model.IntPtr(o),
		PerformerLineup:     model.IntPtr(p),
		LogisticsEase:       model.IntPtr(l),
		Readiness:           model.IntPtr(r),
	}
}

func TestCompose(t *testing.T) {
	Convey("Given all five dimensions", t, func() {
		Convey("When weights are equal", func() {
			s := scoring.Compose(dims(80, 70, 90, 60, 50), equal)

			Convey("Then the composite is the plain mean", func() {
				So(s.Composite, ShouldEqual, 70)
				So(s.Unavailable, ShouldBeEmpty)
				So(s.VenueQuality, ShouldEqual, 80)
				So(s.Readiness, ShouldEqual, 50)
			})
		})

		Convey("When the weighted mean ends in exactly .5", func() {
			// 81*50 + 70*50 = 7550 -> 75.5 rounds half up
			w := weights.ScoringWeights{VenueQuality: 50, OrganizerReputation: 50}
			So(scoring.Compose(dims(81, 70, 0, 0, 0), w).Composite, ShouldEqual, 76)
		})

		Convey("When the default weights are used", func() {
			// 80*25 + 70*20 + 90*25 + 60*15 + 50*15 = 7300
			So(scoring.Compose(dims(80, 70, 90, 60, 50), weights.Defaults()).Composite, ShouldEqual, 73)
		})
	})

	Convey("Given missing dimensions", t, func() {
		d := dims(80, 70, 90, 60, 50)
		d.Readiness = nil
		d.OrganizerReputation = nil
		s := scoring.Compose(d, equal)

		Convey("Then they count as zero and are listed in canonical order", func() {
			So(s.Unavailable, ShouldResemble, []model.Dimension{model.DimOrganizerReputation, model.DimReadiness})
			So(s.OrganizerReputation, ShouldEqual, 0)
			So(s.Composite, ShouldEqual, 46)
		})
	})

	Convey("Given out of range ratings", t, func() {
		s := scoring.Compose(dims(150, -20, 100, 100, 100), equal)

		Convey("Then they are clamped before weighting", func() {
			So(s.VenueQuality, ShouldEqual, 100)
			So(s.OrganizerReputation, ShouldEqual, 0)
			So(s.Composite, ShouldEqual, 80)
		})
	})

	Convey("Given an empty rating set", t, func() {
		s := scoring.Compose(model.Dimensions{}, weights.Defaults())
		So(s.Composite, ShouldEqual, 0)
		So(len(s.Unavailable), ShouldEqual, 5)
	})
}

type fakeRatings struct {
	dims  model.Dimensions
	err   error
	delay time.Duration
}

func (f fakeRatings) Dimensions(ctx context.Context, _ model.Event) (model.Dimensions, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return model.Dimensions{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.dims, f.err
}

func TestEngineScore(t *testing.T) {
	Convey("Given a scoring engine", t, func() {
		ev := model.Event{GUID: "e-1"}

		Convey("When the provider answers", func() {
			e := scoring.NewEngine(fakeRatings{dims: dims(80, 70, 90, 60, 50)})
			s, err := e.Score(context.Background(), ev, equal)

			So(err, ShouldBeNil)
			So(s.GUID, ShouldEqual, "e-1")
			So(s.Composite, ShouldEqual, 70)
		})

		Convey("When the provider fails", func() {
			e := scoring.NewEngine(fakeRatings{err: errors.New("ratings down")})
			_, err := e.Score(context.Background(), ev, equal)

			So(errors.Is(err, errs.ErrDependency), ShouldBeTrue)
		})

		Convey("When the provider is slower than the timeout", func() {
			e := scoring.NewEngine(fakeRatings{delay: time.Second}, scoring.WithProviderTimeout(10*time.Millisecond))
			_, err := e.Score(context.Background(), ev, equal)

			So(errors.Is(err, errs.ErrDependency), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
