// Package ratings supplies per-event dimension ratings to the score engine.
//
// Stored per-event ratings win. Missing venue and organizer ratings fall
// back to the gazetteer and organizer tables, and a missing readiness is
// derived from how complete the event record is.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/clash/internal/adapters/repository"
	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
)

// readinessChecks is the number of completeness criteria.
const readinessChecks = 6

// Source is the storage the provider reads from.
type Source interface {
	Ratings(ctx context.Context, guid string) (model.Dimensions, bool, error)
	Venue(ctx context.Context, name string) (repository.Venue, error)
	OrganizerReputation(ctx context.Context, name string) (int, bool, error)
}

// Provider implements scoring.RatingsProvider.
type Provider struct {
	src Source
}

// New creates a Provider reading from src.
func New(src Source) *Provider {
	return &Provider{src: src}
}

// Dimensions returns the ratings of ev. Nil entries are genuinely unknown.
func (p *Provider) Dimensions(ctx context.Context, ev model.Event) (model.Dimensions, error) {
	d, _, err := p.src.Ratings(ctx, ev.GUID)
	if err != nil {
		return model.Dimensions{}, err
	}

	if d.VenueQuality == nil && strings.TrimSpace(ev.Location.Name) != "" {
		v, err := p.src.Venue(ctx, ev.Location.Name)
		switch {
		case err == nil:
			d.VenueQuality = v.Quality
		case errors.Is(err, errs.ErrNotFound):
		default:
			return model.Dimensions{}, fmt.Errorf("venue %q: %w", ev.Location.Name, err)
		}
	}

	if d.OrganizerReputation == nil && strings.TrimSpace(ev.Organizer) != "" {
		rep, ok, err := p.src.OrganizerReputation(ctx, ev.Organizer)
		if err != nil {
			return model.Dimensions{}, fmt.Errorf("organizer %q: %w", ev.Organizer, err)
		}
		if ok {
			d.OrganizerReputation = &rep
		}
	}

	if d.Readiness == nil {
		r := Readiness(ev)
		d.Readiness = &r
	}
	return d, nil
}

// Readiness scores how complete an event record is: date, location name,
// coordinate, organizer, performers and title each earn an equal share.
func Readiness(ev model.Event) int {
	n := 0
	if !ev.Date.IsZero() {
		n++
	}
	if strings.TrimSpace(ev.Location.Name) != "" {
		n++
	}
	if ev.Location.Coordinate != nil {
		n++
	}
	if strings.TrimSpace(ev.Organizer) != "" {
		n++
	}
	if len(ev.Performers) > 0 {
		n++
	}
	if strings.TrimSpace(ev.Title) != "" {
		n++
	}
	return (n*100 + readinessChecks/2) / readinessChecks
}
