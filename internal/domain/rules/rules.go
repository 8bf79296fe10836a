// Package rules defines the conflict rule set and its update pipeline.
package rules

import (
	"math"

	"github.com/okian/clash/internal/domain/errs"
)

// Default rule values.
const (
	DefaultDistanceThresholdMiles = 150
	DefaultConsecutiveWindowDays  = 2
	DefaultTravelBufferDays       = 1
	DefaultColocationRadiusMiles  = 5
	DefaultPerformerCeiling       = 12
)

const op = "rules"

// ConflictRule parameterizes conflict detection. There is one per tenant.
type ConflictRule struct {
	DistanceThresholdMiles float64 `json:"distance_threshold_miles"`
	ConsecutiveWindowDays  int     `json:"consecutive_window_days"`
	TravelBufferDays       int     `json:"travel_buffer_days"`
	ColocationRadiusMiles  float64 `json:"colocation_radius_miles"`
	PerformerCeiling       int     `json:"performer_ceiling"`
}

// Defaults returns the rule set a tenant starts with.
func Defaults() ConflictRule {
	return ConflictRule{
		DistanceThresholdMiles: DefaultDistanceThresholdMiles,
		ConsecutiveWindowDays:  DefaultConsecutiveWindowDays,
		TravelBufferDays:       DefaultTravelBufferDays,
		ColocationRadiusMiles:  DefaultColocationRadiusMiles,
		PerformerCeiling:       DefaultPerformerCeiling,
	}
}

// Validate checks every rule invariant.
func (r ConflictRule) Validate() error {
	if !finite(r.DistanceThresholdMiles) || r.DistanceThresholdMiles < 0 {
		return errs.Validation(op, "distance_threshold_miles must be a non-negative number, got %v", r.DistanceThresholdMiles)
	}
	if !finite(r.ColocationRadiusMiles) || r.ColocationRadiusMiles < 0 {
		return errs.Validation(op, "colocation_radius_miles must be a non-negative number, got %v", r.ColocationRadiusMiles)
	}
	if r.ColocationRadiusMiles > r.DistanceThresholdMiles {
		return errs.Validation(op, "colocation_radius_miles (%v) must not exceed distance_threshold_miles (%v)",
			r.ColocationRadiusMiles, r.DistanceThresholdMiles)
	}
	if r.ConsecutiveWindowDays < 0 {
		return errs.Validation(op, "consecutive_window_days must be >= 0, got %d", r.ConsecutiveWindowDays)
	}
	if r.TravelBufferDays < 0 {
		return errs.Validation(op, "travel_buffer_days must be >= 0, got %d", r.TravelBufferDays)
	}
	if r.PerformerCeiling < 1 {
		return errs.Validation(op, "performer_ceiling must be >= 1, got %d", r.PerformerCeiling)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Patch is a partial rule update. Nil fields keep their current value.
type Patch struct {
	DistanceThresholdMiles *float64 `json:"distance_threshold_miles,omitempty"`
	ConsecutiveWindowDays  *int     `json:"consecutive_window_days,omitempty"`
	TravelBufferDays       *int     `json:"travel_buffer_days,omitempty"`
	ColocationRadiusMiles  *float64 `json:"colocation_radius_miles,omitempty"`
	PerformerCeiling       *int     `json:"performer_ceiling,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.DistanceThresholdMiles == nil && p.ConsecutiveWindowDays == nil &&
		p.TravelBufferDays == nil && p.ColocationRadiusMiles == nil && p.PerformerCeiling == nil
}

// Apply merges p over cur and validates the result. On error cur is
// returned unchanged.
func (p Patch) Apply(cur ConflictRule) (ConflictRule, error) {
	next := cur
	if p.DistanceThresholdMiles != nil {
		next.DistanceThresholdMiles = *p.DistanceThresholdMiles
	}
	if p.ConsecutiveWindowDays != nil {
		next.ConsecutiveWindowDays = *p.ConsecutiveWindowDays
	}
	if p.TravelBufferDays != nil {
		next.TravelBufferDays = *p.TravelBufferDays
	}
	if p.ColocationRadiusMiles != nil {
		next.ColocationRadiusMiles = *p.ColocationRadiusMiles
	}
	if p.PerformerCeiling != nil {
		next.PerformerCeiling = *p.PerformerCeiling
	}
	if err := next.Validate(); err != nil {
		return cur, err
	}
	return next, nil
}
