// Package resolution tracks attendance decisions per conflict group.
//
// Every mutation of a group runs under that group's lock so that a detection
// pass registering the group and a user resolving it never interleave.
// Different groups never contend.
package resolution

import (
	"context"
	"sort"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/group"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/pkg/logger"
)

// Store persists groups and decisions.
type Store interface {
	// SaveGroup upserts a group's membership and reports whether the id was new.
	SaveGroup(ctx context.Context, id string, members []string) (created bool, err error)
	// LoadGroup returns the members and decisions of a group. Unknown ids
	// yield an errs.ErrNotFound error.
	LoadGroup(ctx context.Context, id string) (members []string, decisions map[string]model.Attendance, err error)
	// LatestDecisions returns, per event, the most recent decision recorded
	// in any group other than exclude.
	LatestDecisions(ctx context.Context, guids []string, exclude string) (map[string]model.Attendance, error)
	// ApplyDecisions writes decisions in one transaction and returns how
	// many were inserted or changed.
	ApplyDecisions(ctx context.Context, groupID string, decisions []model.Decision) (int, error)
}

// DecisionInput is one requested attendance change.
type DecisionInput struct {
	EventGUID  string
	Attendance model.Attendance
}

// Outcome is the result of a Resolve call.
type Outcome struct {
	UpdatedCount int
	Status       model.Status
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the time source used to stamp decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager serializes work per group and keeps status consistent with the
// stored decisions.
type Manager struct {
	store Store
	locks *keyedMutex
	log   logger.Logger
	now   func() time.Time
}

// NewManager creates a Manager on top of store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		locks: newKeyedMutex(),
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve applies a batch of decisions to a group atomically.
func (m *Manager) Resolve(ctx context.Context, groupID string, in []DecisionInput) (Outcome, error) {
	const op = "resolution.resolve"
	if groupID == "" {
		return Outcome{}, errs.Validation(op, "group_id is required")
	}
	if len(in) == 0 {
		return Outcome{}, errs.Validation(op, "at least one decision is required")
	}
	seen := make(map[string]struct{}, len(in))
	for _, d := range in {
		if d.EventGUID == "" {
			return Outcome{}, errs.Validation(op, "event_guid is required")
		}
		if !d.Attendance.Valid() {
			return Outcome{}, errs.Validation(op, "invalid attendance %q for event %q, want planned or skipped", d.Attendance, d.EventGUID)
		}
		if _, dup := seen[d.EventGUID]; dup {
			return Outcome{}, errs.Validation(op, "event %q appears more than once in the batch", d.EventGUID)
		}
		seen[d.EventGUID] = struct{}{}
	}

	unlock := m.locks.Lock(groupID)
	defer unlock()

	members, _, err := m.store.LoadGroup(ctx, groupID)
	if err != nil {
		return Outcome{}, errs.Dependency(op, err)
	}
	memberSet := make(map[string]struct{}, len(members))
	for _, g := range members {
		memberSet[g] = struct{}{}
	}
	now := m.now().UTC()
	batch := make([]model.Decision, 0, len(in))
	for _, d := range in {
		if _, ok := memberSet[d.EventGUID]; !ok {
			return Outcome{}, errs.Validation(op, "event %q is not a member of group %s", d.EventGUID, groupID)
		}
		batch = append(batch, model.Decision{GroupID: groupID, EventGUID: d.EventGUID, Attendance: d.Attendance, DecidedAt: now})
	}

	changed, err := m.store.ApplyDecisions(ctx, groupID, batch)
	if err != nil {
		return Outcome{}, errs.Dependency(op, err)
	}
	_, decisions, err := m.store.LoadGroup(ctx, groupID)
	if err != nil {
		return Outcome{}, errs.Dependency(op, err)
	}
	status := group.Status(members, decisions)
	m.log.Info(ctx, "group resolved",
		logger.String("group_id", groupID),
		logger.Int("decisions", len(batch)),
		logger.Int("updated", changed),
		logger.String("status", string(status)))
	return Outcome{UpdatedCount: changed, Status: status}, nil
}

// Register persists the given groups and fills in their decisions and
// status. A group id seen for the first time inherits each member's most
// recent decision from earlier groups.
func (m *Manager) Register(ctx context.Context, groups []model.ConflictGroup) ([]model.ConflictGroup, error) {
	out := make([]model.ConflictGroup, len(groups))
	for i, g := range groups {
		r, err := m.register(ctx, g)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (m *Manager) register(ctx context.Context, g model.ConflictGroup) (model.ConflictGroup, error) {
	const op = "resolution.register"
	unlock := m.locks.Lock(g.ID)
	defer unlock()

	created, err := m.store.SaveGroup(ctx, g.ID, g.Members)
	if err != nil {
		return g, errs.Dependency(op, err)
	}
	if created {
		if err := m.carryForward(ctx, g); err != nil {
			return g, errs.Dependency(op, err)
		}
	}
	_, decisions, err := m.store.LoadGroup(ctx, g.ID)
	if err != nil {
		return g, errs.Dependency(op, err)
	}
	g.Decisions = decisions
	g.Status = group.Status(g.Members, decisions)
	return g, nil
}

func (m *Manager) carryForward(ctx context.Context, g model.ConflictGroup) error {
	prev, err := m.store.LatestDecisions(ctx, g.Members, g.ID)
	if err != nil || len(prev) == 0 {
		return err
	}
	guids := make([]string, 0, len(prev))
	for guid := range prev {
		guids = append(guids, guid)
	}
	sort.Strings(guids)

	now := m.now().UTC()
	batch := make([]model.Decision, 0, len(guids))
	for _, guid := range guids {
		batch = append(batch, model.Decision{GroupID: g.ID, EventGUID: guid, Attendance: prev[guid], DecidedAt: now})
	}
	if _, err := m.store.ApplyDecisions(ctx, g.ID, batch); err != nil {
		return err
	}
	m.log.Debug(ctx, "decisions carried forward",
		logger.String("group_id", g.ID),
		logger.Int("count", len(batch)))
	return nil
}

// Group returns a stored group with its decisions and status.
func (m *Manager) Group(ctx context.Context, id string) (model.ConflictGroup, error) {
	const op = "resolution.group"
	unlock := m.locks.Lock(id)
	defer unlock()

	members, decisions, err := m.store.LoadGroup(ctx, id)
	if err != nil {
		return model.ConflictGroup{}, errs.Dependency(op, err)
	}
	return model.ConflictGroup{
		ID:        id,
		Members:   members,
		Decisions: decisions,
		Status:    group.Status(members, decisions),
	}, nil
}
