package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "clash.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(n int) time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestEventsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	events := []model.Event{
		{
			GUID: "e-2", Title: "Late show", Date: day(1),
			Location:   model.Location{Name: "Red Rocks", Coordinate: &model.Coordinate{Lat: 39.665, Lon: -105.205}},
			Organizer:  "AEG", Performers: []string{"Alpha", "alpha", "Beta"}, TicketRequired: true, Source: "feed",
		},
		{GUID: "e-1", Title: "Opener", Date: day(0), Location: model.Location{Name: "The  Fillmore"}},
		{GUID: "e-3", Title: "Outside", Date: day(10)},
	}
	n, err := s.UpsertEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.EventsInRange(ctx, day(0), day(1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e-1", got[0].GUID)
	assert.Equal(t, "e-2", got[1].GUID)
	assert.Equal(t, []string{"Alpha", "Beta"}, got[1].Performers)
	assert.True(t, got[1].TicketRequired)
	require.NotNil(t, got[1].Location.Coordinate)
	assert.InDelta(t, 39.665, got[1].Location.Coordinate.Lat, 1e-9)
	assert.Nil(t, got[0].Location.Coordinate)
	assert.Equal(t, day(0), got[0].Date)

	count, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = s.Event(ctx, "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	byGUID, err := s.EventsByGUID(ctx, []string{"e-3", "e-1", "nope"})
	require.NoError(t, err)
	require.Len(t, byGUID, 2)
	assert.Equal(t, "e-1", byGUID[0].GUID)
}

func TestEventValidationRejectsBatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertEvents(context.Background(), []model.Event{
		{GUID: "ok", Date: day(0)},
		{GUID: "bad", Date: day(0).Add(time.Hour)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	n, err := s.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestVenueGazetteerResolvesLocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.UpsertEvents(ctx, []model.Event{{GUID: "e-1", Date: day(0), Location: model.Location{Name: "  the fillmore "}}})
	require.NoError(t, err)

	ev, err := s.Event(ctx, "e-1")
	require.NoError(t, err)
	assert.Nil(t, ev.Location.Coordinate)

	require.NoError(t, s.UpsertVenues(ctx, []Venue{{
		Name: "The Fillmore", Coordinate: model.Coordinate{Lat: 39.74, Lon: -104.98}, Quality: model.IntPtr(80),
	}}))

	ev, err = s.Event(ctx, "e-1")
	require.NoError(t, err)
	require.NotNil(t, ev.Location.Coordinate)
	assert.InDelta(t, 39.74, ev.Location.Coordinate.Lat, 1e-9)

	v, err := s.Venue(ctx, "THE FILLMORE")
	require.NoError(t, err)
	require.NotNil(t, v.Quality)
	assert.Equal(t, 80, *v.Quality)

	_, err = s.Venue(ctx, "Nowhere")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	err = s.UpsertVenues(ctx, []Venue{{Name: "Bad", Coordinate: model.Coordinate{Lat: 100}}})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestReplaceSourceEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.ReplaceSourceEvents(ctx, "feed", []model.Event{
		{GUID: "a", Date: day(0)}, {GUID: "b", Date: day(1)},
	})
	require.NoError(t, err)
	_, err = s.UpsertEvents(ctx, []model.Event{{GUID: "manual", Date: day(0), Source: "seed"}})
	require.NoError(t, err)

	up, removed, err := s.ReplaceSourceEvents(ctx, "feed", []model.Event{{GUID: "b", Date: day(2)}})
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Equal(t, 1, removed)

	all, err := s.EventsInRange(ctx, day(-1), day(5))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "manual", all[0].GUID)
	assert.Equal(t, "b", all[1].GUID)
	assert.Equal(t, day(2), all[1].Date)
}

func TestRatingsAndOrganizers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Ratings(ctx, "e-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertRatings(ctx, "e-1", model.Dimensions{VenueQuality: model.IntPtr(70), Readiness: model.IntPtr(0)}))
	d, ok, err := s.Ratings(ctx, "e-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 70, *d.VenueQuality)
	assert.Equal(t, 0, *d.Readiness)
	assert.Nil(t, d.OrganizerReputation)

	require.NoError(t, s.UpsertOrganizers(ctx, []Organizer{{Name: "AEG Presents", Reputation: 85}}))
	rep, ok, err := s.OrganizerReputation(ctx, "aeg  presents")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 85, rep)

	_, ok, err = s.OrganizerReputation(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	custom := rules.Defaults()
	custom.PerformerCeiling = 20
	s := newTestStore(t, WithDefaultRules(custom))

	r, v, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, 20, r.PerformerCeiling)

	r.TravelBufferDays = 4
	v2, err := s.CompareAndSwapRules(ctx, r, v)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)

	_, err = s.CompareAndSwapRules(ctx, r, v)
	assert.True(t, errors.Is(err, ErrVersionMismatch))

	got, v3, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, v3)
	assert.Equal(t, 4, got.TravelBufferDays)

	w, wv, err := s.Weights(ctx)
	require.NoError(t, err)
	assert.Equal(t, weights.Defaults(), w)
	_, err = s.CompareAndSwapWeights(ctx, weights.ScoringWeights{VenueQuality: 100}, wv)
	require.NoError(t, err)
	w, _, err = s.Weights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, w.VenueQuality)
}

func TestSettingsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := Open(ctx, path, WithTenant("a"))
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, path, WithTenant("b"))
	require.NoError(t, err)
	defer b.Close()

	r, v, err := a.Rules(ctx)
	require.NoError(t, err)
	r.PerformerCeiling = 3
	_, err = a.CompareAndSwapRules(ctx, r, v)
	require.NoError(t, err)

	rb, _, err := b.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultPerformerCeiling, rb.PerformerCeiling)
}

func TestGroupsAndDecisions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	created, err := s.SaveGroup(ctx, "g1", []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.SaveGroup(ctx, "g1", []string{"a", "b"})
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = s.LoadGroup(ctx, "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	batch := []model.Decision{
		{GroupID: "g1", EventGUID: "a", Attendance: model.AttendancePlanned, DecidedAt: now},
		{GroupID: "g1", EventGUID: "b", Attendance: model.AttendanceSkipped, DecidedAt: now},
	}
	n, err := s.ApplyDecisions(ctx, "g1", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ApplyDecisions(ctx, "g1", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	members, decisions, err := s.LoadGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)
	assert.Equal(t, model.AttendanceSkipped, decisions["b"])

	_, err = s.SaveGroup(ctx, "g2", []string{"b", "c"})
	require.NoError(t, err)
	_, err = s.ApplyDecisions(ctx, "g2", []model.Decision{
		{EventGUID: "b", Attendance: model.AttendancePlanned, DecidedAt: now.Add(time.Minute)},
	})
	require.NoError(t, err)

	latest, err := s.LatestDecisions(ctx, []string{"a", "b", "c"}, "g3")
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Attendance{"a": model.AttendancePlanned, "b": model.AttendancePlanned}, latest)

	latest, err = s.LatestDecisions(ctx, []string{"b"}, "g2")
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceSkipped, latest["b"])

	groups, decisionsN, err := s.GroupCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, groups)
	assert.Equal(t, 3, decisionsN)
}

func TestConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.SaveGroup(ctx, "g", []string{"a", "b"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			att := model.AttendancePlanned
			if i%2 == 1 {
				att = model.AttendanceSkipped
			}
			_, err := s.ApplyDecisions(ctx, "g", []model.Decision{{EventGUID: "a", Attendance: att}})
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
	_, err := s.CountEvents(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
