// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/okian/clash/internal/domain/errs"
)

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate lies inside the lat/lon bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Location is where an event happens. Coordinate is nil when the catalog
// only knows a name.
type Location struct {
	Name       string
	Coordinate *Coordinate
}

// Event is a calendar entry read from the catalog.
// Date is a calendar date at UTC midnight; time of day is not modelled.
type Event struct {
	GUID           string
	Title          string
	Date           time.Time
	Location       Location
	Organizer      string
	Performers     []string
	TicketRequired bool
	Source         string // catalog source id
}

// Validate checks the event invariants.
func (e Event) Validate() error {
	const op = "model.event"
	if strings.TrimSpace(e.GUID) == "" {
		return errs.Validation(op, "event guid is required")
	}
	if e.Date.IsZero() {
		return errs.Validation(op, "event %q has no date", e.GUID)
	}
	if e.Date.Location() != time.UTC || e.Date.Hour() != 0 || e.Date.Minute() != 0 || e.Date.Second() != 0 || e.Date.Nanosecond() != 0 {
		return errs.Validation(op, "event %q date must be a calendar date at UTC midnight", e.GUID)
	}
	if c := e.Location.Coordinate; c != nil && !c.Valid() {
		return errs.Validation(op, "event %q has out of range coordinate %.5f,%.5f", e.GUID, c.Lat, c.Lon)
	}
	return nil
}

// NormalizePerformers trims names, drops blanks and removes duplicates while
// keeping first-seen order. Comparison is case-insensitive.
func NormalizePerformers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NormalizeVenue returns the lookup key used for venue names.
func NormalizeVenue(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
