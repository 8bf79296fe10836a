// Package weights defines the scoring weights and their update pipeline:
// merge, normalize, validate.
package weights

import (
	"sort"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
)

// Total is the sum every weight set must reach.
const Total = 100

const op = "weights"

// ScoringWeights are the integer percentages applied to each dimension.
type ScoringWeights struct {
	VenueQuality        int `json:"weight_venue_quality"`
	OrganizerReputation int `json:"weight_organizer_reputation"`
	PerformerLineup     int `json:"weight_performer_lineup"`
	LogisticsEase       int `json:"weight_logistics_ease"`
	Readiness           int `json:"weight_readiness"`
}

// Defaults returns the weights a tenant starts with.
func Defaults() ScoringWeights {
	return ScoringWeights{
		VenueQuality:        25,
		OrganizerReputation: 20,
		PerformerLineup:     25,
		LogisticsEase:       15,
		Readiness:           15,
	}
}

// Get returns the weight of dim.
func (w ScoringWeights) Get(dim model.Dimension) int {
	switch dim {
	case model.DimVenueQuality:
		return w.VenueQuality
	case model.DimOrganizerReputation:
		return w.OrganizerReputation
	case model.DimPerformerLineup:
		return w.PerformerLineup
	case model.DimLogisticsEase:
		return w.LogisticsEase
	case model.DimReadiness:
		return w.Readiness
	}
	return 0
}

func (w *ScoringWeights) set(dim model.Dimension, v int) {
	switch dim {
	case model.DimVenueQuality:
		w.VenueQuality = v
	case model.DimOrganizerReputation:
		w.OrganizerReputation = v
	case model.DimPerformerLineup:
		w.PerformerLineup = v
	case model.DimLogisticsEase:
		w.LogisticsEase = v
	case model.DimReadiness:
		w.Readiness = v
	}
}

// Sum adds up all five weights.
func (w ScoringWeights) Sum() int {
	s := 0
	for _, d := range model.AllDimensions {
		s += w.Get(d)
	}
	return s
}

// Validate checks the range of every weight and the exact total.
func (w ScoringWeights) Validate() error {
	for _, d := range model.AllDimensions {
		if v := w.Get(d); v < 0 || v > Total {
			return errs.Validation(op, "%s must be within [0,%d], got %d", d, Total, v)
		}
	}
	if s := w.Sum(); s != Total {
		return errs.Validation(op, "weights must sum to %d, got %d", Total, s)
	}
	return nil
}

// Patch is a partial weight update. Nil fields are rescaled to keep the
// total at 100.
type Patch struct {
	VenueQuality        *int `json:"weight_venue_quality,omitempty"`
	OrganizerReputation *int `json:"weight_organizer_reputation,omitempty"`
	PerformerLineup     *int `json:"weight_performer_lineup,omitempty"`
	LogisticsEase       *int `json:"weight_logistics_ease,omitempty"`
	Readiness           *int `json:"weight_readiness,omitempty"`
}

func (p Patch) get(dim model.Dimension) *int {
	switch dim {
	case model.DimVenueQuality:
		return p.VenueQuality
	case model.DimOrganizerReputation:
		return p.OrganizerReputation
	case model.DimPerformerLineup:
		return p.PerformerLineup
	case model.DimLogisticsEase:
		return p.LogisticsEase
	case model.DimReadiness:
		return p.Readiness
	}
	return nil
}

// Empty reports whether the patch sets no weight.
func (p Patch) Empty() bool {
	for _, d := range model.AllDimensions {
		if p.get(d) != nil {
			return false
		}
	}
	return true
}

// Apply merges p over cur. A full patch must total exactly 100. A partial
// patch may total at most 100; the untouched weights are rescaled in
// proportion to their current values to fill the remainder.
func (p Patch) Apply(cur ScoringWeights) (ScoringWeights, error) {
	if p.Empty() {
		return cur, nil
	}

	next := cur
	given := 0
	var untouched []model.Dimension
	for _, d := range model.AllDimensions {
		v := p.get(d)
		if v == nil {
			untouched = append(untouched, d)
			continue
		}
		if *v < 0 || *v > Total {
			return cur, errs.Validation(op, "%s must be within [0,%d], got %d", d, Total, *v)
		}
		next.set(d, *v)
		given += *v
	}

	if len(untouched) == 0 {
		if err := next.Validate(); err != nil {
			return cur, err
		}
		return next, nil
	}
	if given > Total {
		return cur, errs.Validation(op, "given weights sum to %d, more than %d", given, Total)
	}

	for d, v := range apportion(Total-given, untouched, cur) {
		next.set(d, v)
	}
	if err := next.Validate(); err != nil {
		return cur, err
	}
	return next, nil
}

// apportion splits remainder across dims in proportion to their previous
// weights using the largest-remainder method. Ties go to the earlier
// dimension in canonical order. A zero basis spreads the remainder evenly.
func apportion(remainder int, dims []model.Dimension, prev ScoringWeights) map[model.Dimension]int {
	out := make(map[model.Dimension]int, len(dims))
	basis := 0
	for _, d := range dims {
		basis += prev.Get(d)
	}

	type share struct {
		dim   model.Dimension
		order int
		frac  int // numerator of the fractional part over basis
	}
	shares := make([]share, len(dims))
	allocated := 0
	for idx, d := range dims {
		var whole, frac int
		if basis == 0 {
			whole = remainder / len(dims)
		} else {
			num := remainder * prev.Get(d)
			whole, frac = num/basis, num%basis
		}
		out[d] = whole
		allocated += whole
		shares[idx] = share{dim: d, order: idx, frac: frac}
	}

	sort.SliceStable(shares, func(a, b int) bool {
		if shares[a].frac != shares[b].frac {
			return shares[a].frac > shares[b].frac
		}
		return shares[a].order < shares[b].order
	})
	for k := 0; allocated < remainder; k++ {
		out[shares[k%len(shares)].dim]++
		allocated++
	}
	return out
}
