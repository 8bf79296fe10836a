package resolution

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/group"
	"github.com/okian/clash/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type memDecision struct {
	attendance model.Attendance
	at         time.Time
}

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	groups    map[string][]string
	decisions map[string]map[string]memDecision
	failApply error
}

func newMemStore() *memStore {
	return &memStore{groups: map[string][]string{}, decisions: map[string]map[string]memDecision{}}
}

func (s *memStore) SaveGroup(_ context.Context, id string, members []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groups[id]
	s.groups[id] = append([]string(nil), members...)
	return !ok, nil
}

func (s *memStore) LoadGroup(_ context.Context, id string) ([]string, map[string]model.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.groups[id]
	if !ok {
		return nil, nil, errs.NotFound("mem.load_group", "group %s not found", id)
	}
	out := map[string]model.Attendance{}
	for guid, d := range s.decisions[id] {
		out[guid] = d.attendance
	}
	return append([]string(nil), members...), out, nil
}

func (s *memStore) LatestDecisions(_ context.Context, guids []string, exclude string) (map[string]model.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]model.Attendance{}
	latest := map[string]time.Time{}
	for gid, ds := range s.decisions {
		if gid == exclude {
			continue
		}
		for _, guid := range guids {
			d, ok := ds[guid]
			if ok && d.at.After(latest[guid]) {
				latest[guid] = d.at
				out[guid] = d.attendance
			}
		}
	}
	return out, nil
}

func (s *memStore) ApplyDecisions(_ context.Context, groupID string, batch []model.Decision) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failApply != nil {
		return 0, s.failApply
	}
	if s.decisions[groupID] == nil {
		s.decisions[groupID] = map[string]memDecision{}
	}
	changed := 0
	for _, d := range batch {
		prev, ok := s.decisions[groupID][d.EventGUID]
		if ok && prev.attendance == d.Attendance {
			continue
		}
		s.decisions[groupID][d.EventGUID] = memDecision{attendance: d.Attendance, at: d.DecidedAt}
		changed++
	}
	return changed, nil
}

func newGroup(members ...string) model.ConflictGroup {
	sort.Strings(members)
	return model.ConflictGroup{ID: group.ID(members), Members: members, Status: model.StatusUnresolved}
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestResolve(t *testing.T) {
	Convey("Given a registered two member group", t, func() {
		ctx := context.Background()
		store := newMemStore()
		m := NewManager(store, WithClock(tickingClock()))
		g := newGroup("E1", "E2")
		registered, err := m.Register(ctx, []model.ConflictGroup{g})
		So(err, ShouldBeNil)
		So(registered[0].Status, ShouldEqual, model.StatusUnresolved)

		Convey("When one member is decided", func() {
			out, err := m.Resolve(ctx, g.ID, []DecisionInput{{EventGUID: "E1", Attendance: model.AttendancePlanned}})

			Convey("Then the group is partially resolved", func() {
				So(err, ShouldBeNil)
				So(out.UpdatedCount, ShouldEqual, 1)
				So(out.Status, ShouldEqual, model.StatusPartiallyResolved)
			})
		})

		Convey("When both members are decided", func() {
			batch := []DecisionInput{
				{EventGUID: "E1", Attendance: model.AttendancePlanned},
				{EventGUID: "E2", Attendance: model.AttendanceSkipped},
			}
			out, err := m.Resolve(ctx, g.ID, batch)
			So(err, ShouldBeNil)
			So(out.UpdatedCount, ShouldEqual, 2)
			So(out.Status, ShouldEqual, model.StatusResolved)

			Convey("Then resubmitting the same batch changes nothing", func() {
				again, err := m.Resolve(ctx, g.ID, batch)
				So(err, ShouldBeNil)
				So(again.UpdatedCount, ShouldEqual, 0)
				So(again.Status, ShouldEqual, model.StatusResolved)
			})

			Convey("Then flipping one decision counts once", func() {
				again, err := m.Resolve(ctx, g.ID, []DecisionInput{{EventGUID: "E2", Attendance: model.AttendancePlanned}})
				So(err, ShouldBeNil)
				So(again.UpdatedCount, ShouldEqual, 1)
			})

			Convey("Then Group reports the stored state", func() {
				got, err := m.Group(ctx, g.ID)
				So(err, ShouldBeNil)
				So(got.Members, ShouldResemble, []string{"E1", "E2"})
				So(got.Decisions["E2"], ShouldEqual, model.AttendanceSkipped)
				So(got.Status, ShouldEqual, model.StatusResolved)
			})
		})

		Convey("When the batch names a non member", func() {
			_, err := m.Resolve(ctx, g.ID, []DecisionInput{
				{EventGUID: "E1", Attendance: model.AttendancePlanned},
				{EventGUID: "E9", Attendance: model.AttendancePlanned},
			})

			Convey("Then nothing is written", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "E9")
				got, _ := m.Group(ctx, g.ID)
				So(got.Decisions, ShouldBeEmpty)
			})
		})

		Convey("When the attendance is unknown", func() {
			_, err := m.Resolve(ctx, g.ID, []DecisionInput{{EventGUID: "E1", Attendance: "maybe"}})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When the batch repeats an event", func() {
			_, err := m.Resolve(ctx, g.ID, []DecisionInput{
				{EventGUID: "E1", Attendance: model.AttendancePlanned},
				{EventGUID: "E1", Attendance: model.AttendanceSkipped},
			})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When the batch is empty", func() {
			_, err := m.Resolve(ctx, g.ID, nil)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("When the group does not exist", func() {
			_, err := m.Resolve(ctx, "nope", []DecisionInput{{EventGUID: "E1", Attendance: model.AttendancePlanned}})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)

			_, err = m.Group(ctx, "nope")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the store fails", func() {
			store.failApply = errors.New("disk full")
			_, err := m.Resolve(ctx, g.ID, []DecisionInput{{EventGUID: "E1", Attendance: model.AttendancePlanned}})
			So(errors.Is(err, errs.ErrDependency), ShouldBeTrue)
		})
	})
}

func TestCarryForward(t *testing.T) {
	Convey("Given a resolved group", t, func() {
		ctx := context.Background()
		m := NewManager(newMemStore(), WithClock(tickingClock()))
		old := newGroup("A", "B")
		_, err := m.Register(ctx, []model.ConflictGroup{old})
		So(err, ShouldBeNil)
		_, err = m.Resolve(ctx, old.ID, []DecisionInput{
			{EventGUID: "A", Attendance: model.AttendancePlanned},
			{EventGUID: "B", Attendance: model.AttendanceSkipped},
		})
		So(err, ShouldBeNil)

		Convey("When a later detection adds a member", func() {
			grown := newGroup("A", "B", "C")
			out, err := m.Register(ctx, []model.ConflictGroup{grown})

			Convey("Then prior decisions survive and the group is partial", func() {
				So(err, ShouldBeNil)
				So(out[0].ID, ShouldNotEqual, old.ID)
				So(out[0].Status, ShouldEqual, model.StatusPartiallyResolved)
				So(out[0].Decisions, ShouldResemble, map[string]model.Attendance{
					"A": model.AttendancePlanned,
					"B": model.AttendanceSkipped,
				})
			})

			Convey("Then deciding the new member resolves it", func() {
				res, err := m.Resolve(ctx, grown.ID, []DecisionInput{{EventGUID: "C", Attendance: model.AttendanceSkipped}})
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusResolved)
			})
		})

		Convey("When the same group is registered again", func() {
			out, err := m.Register(ctx, []model.ConflictGroup{old})
			So(err, ShouldBeNil)
			So(out[0].Status, ShouldEqual, model.StatusResolved)
		})
	})
}

func TestConcurrentResolve(t *testing.T) {
	Convey("Given many writers on the same group", t, func() {
		ctx := context.Background()
		m := NewManager(newMemStore(), WithClock(tickingClock()))
		g := newGroup("A", "B")
		_, err := m.Register(ctx, []model.ConflictGroup{g})
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		errCh := make(chan error, 80)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				att := model.AttendancePlanned
				if i%2 == 0 {
					att = model.AttendanceSkipped
				}
				_, err := m.Resolve(ctx, g.ID, []DecisionInput{{EventGUID: "A", Attendance: att}, {EventGUID: "B", Attendance: att}})
				errCh <- err
				_, err = m.Register(ctx, []model.ConflictGroup{g})
				errCh <- err
			}(i)
		}
		wg.Wait()
		close(errCh)

		for err := range errCh {
			So(err, ShouldBeNil)
		}

		Convey("Then the final state is resolved and no locks leak", func() {
			got, err := m.Group(ctx, g.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusResolved)
			So(got.Decisions["A"], ShouldEqual, got.Decisions["B"])
			So(m.locks.size(), ShouldEqual, 0)
		})
	})
}
