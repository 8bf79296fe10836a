package service

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/group"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

// Summary counts groups by status.
type Summary struct {
	TotalGroups       int `json:"total_groups"`
	Unresolved        int `json:"unresolved"`
	PartiallyResolved int `json:"partially_resolved"`
	Resolved          int `json:"resolved"`
}

// DetectionReport is the result of DetectConflicts.
type DetectionReport struct {
	Groups    []model.ConflictGroup
	Scores    []model.EventScore // one per group member, sorted by guid
	Summary   Summary
	Unlocated []string
}

// DetectConflicts finds, groups and scores the conflicts among catalog
// events dated within [start, end]. Any failure fails the whole call; no
// partial report is returned.
func (s *Service) DetectConflicts(ctx context.Context, start, end time.Time) (DetectionReport, error) {
	const op = "service.detect_conflicts"
	began := time.Now()

	if err := geotime.ValidateRange(start, end); err != nil {
		return DetectionReport{}, err
	}
	if span := geotime.GapDays(start, end) + 1; span > s.maxRangeDays {
		return DetectionReport{}, errs.Validation(op, "date range spans %d days, at most %d allowed", span, s.maxRangeDays)
	}

	rule, _, err := s.store.Rules(ctx)
	if err != nil {
		return DetectionReport{}, errs.Dependency(op, err)
	}
	events, err := s.store.EventsInRange(ctx, start, end)
	if err != nil {
		return DetectionReport{}, errs.Dependency(op, err)
	}

	res, err := s.detector.Detect(ctx, events, rule)
	if err != nil {
		return DetectionReport{}, err
	}
	groups, err := s.resolver.Register(ctx, group.Build(res.Edges))
	if err != nil {
		return DetectionReport{}, err
	}

	w, _, err := s.store.Weights(ctx)
	if err != nil {
		return DetectionReport{}, errs.Dependency(op, err)
	}
	scores, err := s.scoreMembers(ctx, events, groups, w)
	if err != nil {
		return DetectionReport{}, err
	}

	rep := DetectionReport{
		Groups:    groups,
		Scores:    scores,
		Summary:   summarize(groups),
		Unlocated: res.Unlocated,
	}
	s.recordDetection(rep, res.Edges, len(events), res.Indexed, began)
	s.logger.Info(ctx, "conflicts detected",
		logger.String("start", geotime.FormatDate(start)),
		logger.String("end", geotime.FormatDate(end)),
		logger.Int("events", len(events)),
		logger.Int("edges", len(res.Edges)),
		logger.Int("groups", rep.Summary.TotalGroups),
		logger.Int("unresolved", rep.Summary.Unresolved),
		logger.Duration("took", time.Since(began)),
	)
	return rep, nil
}

// scoreMembers scores every distinct group member concurrently, bounded by
// scoreConcurrency. The first failure cancels the rest.
func (s *Service) scoreMembers(ctx context.Context, events []model.Event, groups []model.ConflictGroup, w weights.ScoringWeights) ([]model.EventScore, error) {
	byGUID := make(map[string]model.Event, len(events))
	for _, ev := range events {
		byGUID[ev.GUID] = ev
	}
	seen := make(map[string]struct{})
	var members []model.Event
	for _, g := range groups {
		for _, guid := range g.Members {
			if _, dup := seen[guid]; dup {
				continue
			}
			seen[guid] = struct{}{}
			members = append(members, byGUID[guid])
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].GUID < members[j].GUID })

	scores := make([]model.EventScore, len(members))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.scoreConcurrency)
	for i := range members {
		eg.Go(func() error {
			t0 := time.Now()
			sc, err := s.scorer.Score(gctx, members[i], w)
			if err != nil {
				return err
			}
			metrics.RecordScore(float64(time.Since(t0).Microseconds()) / 1000)
			scores[i] = sc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errs.Dependency("service.score_members", err)
	}
	for _, sc := range scores {
		for _, dim := range sc.Unavailable {
			metrics.RecordUnavailableDimension(string(dim))
		}
	}
	return scores, nil
}

func summarize(groups []model.ConflictGroup) Summary {
	sum := Summary{TotalGroups: len(groups)}
	for _, g := range groups {
		switch g.Status {
		case model.StatusResolved:
			sum.Resolved++
		case model.StatusPartiallyResolved:
			sum.PartiallyResolved++
		default:
			sum.Unresolved++
		}
	}
	return sum
}

func (s *Service) recordDetection(rep DetectionReport, edges []model.ConflictEdge, events int, indexed bool, began time.Time) {
	metrics.RecordDetection(float64(time.Since(began).Microseconds())/1000, events, indexed)
	byReason := make(map[model.Reason]int)
	for _, e := range edges {
		byReason[e.Reason]++
	}
	for reason, n := range byReason {
		metrics.RecordEdges(string(reason), n)
	}
	metrics.UpdateGroupsByStatus(string(model.StatusUnresolved), rep.Summary.Unresolved)
	metrics.UpdateGroupsByStatus(string(model.StatusPartiallyResolved), rep.Summary.PartiallyResolved)
	metrics.UpdateGroupsByStatus(string(model.StatusResolved), rep.Summary.Resolved)
	metrics.RecordUnlocatedEvents(len(rep.Unlocated))
}

// ScoreEvent scores one catalog event with the current weights.
func (s *Service) ScoreEvent(ctx context.Context, guid string) (model.EventScore, error) {
	const op = "service.score_event"
	if guid == "" {
		return model.EventScore{}, errs.Validation(op, "event guid is required")
	}
	ev, err := s.store.Event(ctx, guid)
	if err != nil {
		return model.EventScore{}, errs.Dependency(op, err)
	}
	w, _, err := s.store.Weights(ctx)
	if err != nil {
		return model.EventScore{}, errs.Dependency(op, err)
	}
	t0 := time.Now()
	sc, err := s.scorer.Score(ctx, ev, w)
	if err != nil {
		return model.EventScore{}, errs.Dependency(op, err)
	}
	metrics.RecordScore(float64(time.Since(t0).Microseconds()) / 1000)
	for _, dim := range sc.Unavailable {
		metrics.RecordUnavailableDimension(string(dim))
	}
	return sc, nil
}

// Resolve records attendance decisions for a group.
func (s *Service) Resolve(ctx context.Context, groupID string, decisions []resolution.DecisionInput) (resolution.Outcome, error) {
	out, err := s.resolver.Resolve(ctx, groupID, decisions)
	if err != nil {
		return out, err
	}
	metrics.RecordResolution(out.UpdatedCount)
	return out, nil
}

// Group returns a stored group with its decisions and status.
func (s *Service) Group(ctx context.Context, id string) (model.ConflictGroup, error) {
	if id == "" {
		return model.ConflictGroup{}, errs.Validation("service.group", "group id is required")
	}
	return s.resolver.Group(ctx, id)
}
