// Package detect finds conflicting pairs among calendar events.
package detect

import (
	"context"
	"sort"
	"strings"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/pkg/logger"
)

const daysPerWeek = 7

// Result is the outcome of one detection pass.
type Result struct {
	Edges []model.ConflictEdge
	// Unlocated lists events skipped by the distance rules because their
	// location has no coordinate.
	Unlocated []string
	// Indexed is true when the weekly bucket index was used.
	Indexed bool
}

// Detector evaluates the conflict rules over a set of events.
type Detector struct {
	mode           WindowMode
	indexThreshold int
	log            logger.Logger
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		mode:           DefaultWindowMode,
		indexThreshold: DefaultIndexThreshold,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the configured performer window mode.
func (d *Detector) Mode() WindowMode { return d.mode }

// Detect returns every conflict edge among events under rule. Events are
// expected to be restricted to the queried range already. Edges come back
// ordered by (A, B, Reason) with one edge per pair and reason.
func (d *Detector) Detect(ctx context.Context, events []model.Event, rule rules.ConflictRule) (Result, error) {
	if err := rule.Validate(); err != nil {
		return Result{}, err
	}
	evs := d.prepare(ctx, events)

	set := edgeSet{}
	res := Result{}

	located := make([]int, 0, len(evs))
	for i := range evs {
		if evs[i].Location.Coordinate == nil {
			res.Unlocated = append(res.Unlocated, evs[i].GUID)
			d.log.Debug(ctx, "event excluded from distance rules",
				logger.String("guid", evs[i].GUID),
				logger.String("location", evs[i].Location.Name))
			continue
		}
		located = append(located, i)
	}

	if len(evs) > d.indexThreshold {
		res.Indexed = true
		d.distanceIndexed(evs, located, rule, set)
	} else {
		d.distanceAll(evs, located, rule, set)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errs.Dependency("detect", err)
	}

	switch d.mode {
	case WindowPairwise:
		d.performerPairwise(evs, rule, set)
	default:
		d.performerSliding(evs, rule, set)
	}

	res.Edges = set.sorted()
	return res, nil
}

// prepare copies events sorted by (date, guid) and drops repeated guids.
func (d *Detector) prepare(ctx context.Context, events []model.Event) []model.Event {
	evs := make([]model.Event, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.GUID]; dup {
			d.log.Warn(ctx, "duplicate event guid ignored", logger.String("guid", ev.GUID))
			continue
		}
		seen[ev.GUID] = struct{}{}
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Date.Equal(evs[j].Date) {
			return evs[i].Date.Before(evs[j].Date)
		}
		return evs[i].GUID < evs[j].GUID
	})
	return evs
}

// distanceAll compares every located pair.
func (d *Detector) distanceAll(evs []model.Event, located []int, rule rules.ConflictRule, set edgeSet) {
	for x := 0; x < len(located); x++ {
		for y := x + 1; y < len(located); y++ {
			distancePair(&evs[located[x]], &evs[located[y]], rule, set)
		}
	}
}

// distanceIndexed buckets located events by week and only compares buckets
// close enough for a distance rule to apply.
func (d *Detector) distanceIndexed(evs []model.Event, located []int, rule rules.ConflictRule, set edgeSet) {
	reach := rule.TravelBufferDays // colocation needs gap 0, travel needs gap <= buffer
	span := reach/daysPerWeek + 1

	buckets := make(map[int64][]int)
	var keys []int64
	for _, i := range located {
		k := dayNumber(evs[i]) / daysPerWeek
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], i)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	for _, k := range keys {
		cur := buckets[k]
		for x := 0; x < len(cur); x++ {
			for y := x + 1; y < len(cur); y++ {
				distancePair(&evs[cur[x]], &evs[cur[y]], rule, set)
			}
		}
		for off := int64(1); off <= int64(span); off++ {
			for _, a := range cur {
				for _, b := range buckets[k+off] {
					distancePair(&evs[a], &evs[b], rule, set)
				}
			}
		}
	}
}

func dayNumber(ev model.Event) int64 {
	return ev.Date.Unix() / (24 * 60 * 60)
}

func distancePair(a, b *model.Event, rule rules.ConflictRule, set edgeSet) {
	gap := geotime.GapDays(a.Date, b.Date)
	if gap > rule.TravelBufferDays {
		return
	}
	dist := geotime.DistanceMiles(*a.Location.Coordinate, *b.Location.Coordinate)
	if dist <= rule.ColocationRadiusMiles && gap == 0 {
		set.add(a.GUID, b.GUID, model.ReasonColocationSameWindow)
	}
	if dist > rule.DistanceThresholdMiles && gap <= rule.TravelBufferDays {
		set.add(a.GUID, b.GUID, model.ReasonDistanceTravel)
	}
}

// performerSliding anchors a window at every distinct date. Events are
// sorted by date, so each window is a contiguous run.
func (d *Detector) performerSliding(evs []model.Event, rule rules.ConflictRule, set edgeSet) {
	for start := 0; start < len(evs); {
		anchor := evs[start].Date
		limit := geotime.AddDays(anchor, rule.ConsecutiveWindowDays)

		end := start
		performers := map[string]struct{}{}
		for end < len(evs) && !evs[end].Date.After(limit) {
			for _, p := range evs[end].Performers {
				performers[strings.ToLower(p)] = struct{}{}
			}
			end++
		}
		if len(performers) > rule.PerformerCeiling {
			for x := start; x < end; x++ {
				for y := x + 1; y < end; y++ {
					set.add(evs[x].GUID, evs[y].GUID, model.ReasonPerformerOverload)
				}
			}
		}

		next := start + 1
		for next < len(evs) && evs[next].Date.Equal(anchor) {
			next++
		}
		start = next
	}
}

// performerPairwise flags pairs close in time whose combined lineup exceeds
// the ceiling.
func (d *Detector) performerPairwise(evs []model.Event, rule rules.ConflictRule, set edgeSet) {
	for x := 0; x < len(evs); x++ {
		for y := x + 1; y < len(evs); y++ {
			if geotime.GapDays(evs[x].Date, evs[y].Date) > rule.ConsecutiveWindowDays {
				break
			}
			union := make(map[string]struct{}, len(evs[x].Performers)+len(evs[y].Performers))
			for _, p := range evs[x].Performers {
				union[strings.ToLower(p)] = struct{}{}
			}
			for _, p := range evs[y].Performers {
				union[strings.ToLower(p)] = struct{}{}
			}
			if len(union) > rule.PerformerCeiling {
				set.add(evs[x].GUID, evs[y].GUID, model.ReasonPerformerOverload)
			}
		}
	}
}

// edgeSet collapses duplicate (pair, reason) edges.
type edgeSet map[model.ConflictEdge]struct{}

func (s edgeSet) add(a, b string, r model.Reason) {
	s[model.NewEdge(a, b, r)] = struct{}{}
}

func (s edgeSet) sorted() []model.ConflictEdge {
	out := make([]model.ConflictEdge, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
