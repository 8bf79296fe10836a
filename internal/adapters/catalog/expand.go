package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/pkg/logger"
)

const maxOccurrencesPerEntry = 1000

// Window bounds recurrence expansion, inclusive on both calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// HorizonWindow returns [today, today+days] as seen in loc.
func HorizonWindow(now time.Time, days int, loc *time.Location) Window {
	today := geotime.Truncate(now, loc)
	return Window{Start: today, End: geotime.AddDays(today, days)}
}

// Expand turns entries into catalog events. Single events keep their UID as
// guid and are kept regardless of the window; each recurring occurrence
// inside the window becomes an event with guid "UID/YYYY-MM-DD".
func Expand(ctx context.Context, entries []Entry, win Window, loc *time.Location, source string, log logger.Logger) []model.Event {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	var out []model.Event
	for _, e := range entries {
		if e.RRule == "" {
			out = append(out, toEvent(e, e.UID, dateOf(e, e.Start, loc), source))
			continue
		}
		dates, err := occurrences(e, win, loc)
		if err != nil {
			log.Warn(ctx, "skipping recurring vevent", logger.String("uid", e.UID), logger.Error(err))
			continue
		}
		for _, d := range dates {
			out = append(out, toEvent(e, e.UID+"/"+geotime.FormatDate(d), d, source))
		}
	}
	return out
}

func occurrences(e Entry, win Window, loc *time.Location) ([]time.Time, error) {
	r, err := rrule.StrToRRule(e.RRule)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", e.RRule, err)
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, x := range e.ExDates {
		set.ExDate(x.In(e.Start.Location()))
	}

	// Widen by a day on each side; the window is in calendar dates of loc
	// while the rule runs in the event's own zone.
	from := win.Start.AddDate(0, 0, -1)
	to := win.End.AddDate(0, 0, 2)
	times := set.Between(from, to, true)
	if len(times) > maxOccurrencesPerEntry {
		times = times[:maxOccurrencesPerEntry]
	}

	seen := make(map[time.Time]struct{}, len(times))
	dates := make([]time.Time, 0, len(times))
	for _, t := range times {
		d := dateOf(e, t, loc)
		if !geotime.InRange(d, win.Start, win.End) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	return dates, nil
}

// dateOf returns the calendar date of an occurrence. All-day values already
// hold their date; timed values are read in loc.
func dateOf(e Entry, t time.Time, loc *time.Location) time.Time {
	if e.AllDay {
		return geotime.Truncate(t, t.Location())
	}
	return geotime.Truncate(t, loc)
}

func toEvent(e Entry, guid string, date time.Time, source string) model.Event {
	ev := model.Event{
		GUID:           guid,
		Title:          e.Title,
		Date:           date,
		Organizer:      e.Organizer,
		Performers:     append([]string(nil), e.Performers...),
		TicketRequired: e.TicketRequired,
		Source:         source,
		Location:       model.Location{Name: e.Location.Name},
	}
	if c := e.Location.Coordinate; c != nil {
		cc := *c
		ev.Location.Coordinate = &cc
	}
	return ev
}
