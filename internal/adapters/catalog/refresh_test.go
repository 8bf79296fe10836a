package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/clash/internal/adapters/catalog"
	"github.com/okian/clash/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type stubGetter struct {
	bodies map[string][]byte
	cached map[string]bool
}

func (g stubGetter) Fetch(_ context.Context, src catalog.Source) (catalog.FetchResult, error) {
	b, ok := g.bodies[src.ID]
	if !ok {
		return catalog.FetchResult{}, errors.New("connection refused")
	}
	return catalog.FetchResult{Source: src, Body: b, FromCache: g.cached[src.ID]}, nil
}

type recordingSink struct {
	mu  sync.Mutex
	got map[string][]model.Event
	err error
}

func (s *recordingSink) ReplaceSourceEvents(_ context.Context, source string, events []model.Event) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, 0, s.err
	}
	if s.got == nil {
		s.got = map[string][]model.Event{}
	}
	s.got[source] = append([]model.Event(nil), events...)
	return len(events), 0, nil
}

func TestRefresher(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return time.Date(2026, 5, 31, 9, 0, 0, 0, time.UTC) }

	Convey("Given two feeds", t, func() {
		get := stubGetter{
			bodies: map[string][]byte{
				"fest": ics(festival),
				"jam":  ics(weekly),
			},
			cached: map[string]bool{"jam": true},
		}
		sink := &recordingSink{}

		Convey("When both succeed", func() {
			r := catalog.NewRefresher(get, sink,
				[]catalog.Source{{ID: "fest", URL: "x"}, {ID: "jam", URL: "y"}},
				catalog.WithRefreshClock(now), catalog.WithHorizonDays(30))
			rep, err := r.Refresh(ctx)

			Convey("Then each source replaces its own events", func() {
				So(err, ShouldBeNil)
				So(rep.Sources, ShouldHaveLength, 2)
				So(rep.Sources[0].Result, ShouldEqual, catalog.ResultOK)
				So(rep.Sources[0].Imported, ShouldEqual, 1)
				So(rep.Sources[1].Result, ShouldEqual, catalog.ResultCached)
				So(rep.Sources[1].Imported, ShouldEqual, 3)
				So(sink.got["jam"], ShouldHaveLength, 3)
				So(sink.got["fest"][0].GUID, ShouldEqual, "fest-1")
			})
		})

		Convey("When one source is unreachable", func() {
			r := catalog.NewRefresher(get, sink,
				[]catalog.Source{{ID: "fest"}, {ID: "down"}},
				catalog.WithRefreshClock(now))
			rep, err := r.Refresh(ctx)

			Convey("Then the other source still lands and no error is returned", func() {
				So(err, ShouldBeNil)
				So(rep.Sources[1].Result, ShouldEqual, catalog.ResultFailed)
				So(rep.Sources[1].Error, ShouldContainSubstring, "connection refused")
				So(sink.got, ShouldContainKey, "fest")
				So(sink.got, ShouldNotContainKey, "down")
			})
		})

		Convey("When every source fails", func() {
			sink.err = errors.New("disk full")
			r := catalog.NewRefresher(get, sink, []catalog.Source{{ID: "fest"}}, catalog.WithRefreshClock(now))
			rep, err := r.Refresh(ctx)

			Convey("Then the run fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "disk full")
				So(rep.Sources[0].Result, ShouldEqual, catalog.ResultFailed)
			})
		})

		Convey("When a source serves garbage", func() {
			get.bodies["junk"] = []byte("not a calendar")
			r := catalog.NewRefresher(get, sink, []catalog.Source{{ID: "junk"}, {ID: "fest"}}, catalog.WithRefreshClock(now))
			rep, err := r.Refresh(ctx)

			Convey("Then it is rejected without touching stored events", func() {
				So(err, ShouldBeNil)
				So(rep.Sources[0].Result, ShouldEqual, catalog.ResultRejected)
				So(sink.got, ShouldNotContainKey, "junk")
			})
		})
	})
}

func TestScheduler(t *testing.T) {
	Convey("Given a refresh schedule", t, func() {
		noop := func(context.Context) (catalog.Report, error) { return catalog.Report{}, nil }

		Convey("When the cron expression is invalid", func() {
			_, err := catalog.NewScheduler("every now and then", noop, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("When it is valid", func() {
			s, err := catalog.NewScheduler("@every 1h", noop, nil)
			So(err, ShouldBeNil)

			Convey("Then it starts and stops cleanly", func() {
				s.Start()
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				So(s.Stop(ctx), ShouldBeNil)
			})
		})
	})
}
