// Package scoring composes per-dimension ratings into an event score.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/weights"
)

// Score bounds.
const (
	minScoreValue = 0
	maxScoreValue = 100
)

// RatingsProvider supplies the raw ratings of an event.
type RatingsProvider interface {
	Dimensions(ctx context.Context, ev model.Event) (model.Dimensions, error)
}

// Scorer computes an event score under the given weights.
type Scorer interface {
	// Score fetches ratings for ev and composes them, honoring ctx.
	Score(ctx context.Context, ev model.Event, w weights.ScoringWeights) (model.EventScore, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithProviderTimeout bounds each ratings lookup.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// Engine implements Scorer on top of a RatingsProvider.
type Engine struct {
	ratings RatingsProvider
	timeout time.Duration
}

// NewEngine creates a scoring engine reading ratings from p.
func NewEngine(p RatingsProvider, opts ...Option) *Engine {
	e := &Engine{ratings: p}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the score of ev. A provider failure is a dependency error;
// there is no partial score.
func (e *Engine) Score(ctx context.Context, ev model.Event, w weights.ScoringWeights) (model.EventScore, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	dims, err := e.ratings.Dimensions(ctx, ev)
	if err != nil {
		return model.EventScore{}, errs.Dependency("scoring.score", fmt.Errorf("ratings for %s: %w", ev.GUID, err))
	}
	s := Compose(dims, w)
	s.GUID = ev.GUID
	return s, nil
}

// Compose applies w to d. Unavailable dimensions count as zero and are
// listed in Unavailable. Ratings outside [0,100] are clamped. The composite
// is the weighted mean rounded half up, in integer arithmetic.
func Compose(d model.Dimensions, w weights.ScoringWeights) model.EventScore {
	var (
		s   model.EventScore
		sum int
	)
	for _, dim := range model.AllDimensions {
		v := 0
		if p := d.Get(dim); p != nil {
			v = clamp(*p)
		} else {
			s.Unavailable = append(s.Unavailable, dim)
		}
		setValue(&s, dim, v)
		sum += v * w.Get(dim)
	}
	s.Composite = clamp((sum + weights.Total/2) / weights.Total)
	return s
}

func setValue(s *model.EventScore, dim model.Dimension, v int) {
	switch dim {
	case model.DimVenueQuality:
		s.VenueQuality = v
	case model.DimOrganizerReputation:
		s.OrganizerReputation = v
	case model.DimPerformerLineup:
		s.PerformerLineup = v
	case model.DimLogisticsEase:
		s.LogisticsEase = v
	case model.DimReadiness:
		s.Readiness = v
	}
}

func clamp(v int) int {
	if v < minScoreValue {
		return minScoreValue
	}
	if v > maxScoreValue {
		return maxScoreValue
	}
	return v
}
