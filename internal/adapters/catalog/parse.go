package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/pkg/logger"
)

// Non-standard properties carried by the feeds we consume.
const (
	propGeo            ical.ComponentProperty = "GEO"
	propRecurrenceID   ical.ComponentProperty = "RECURRENCE-ID"
	propPerformers     ical.ComponentProperty = "X-PERFORMERS"
	propTicketRequired ical.ComponentProperty = "X-TICKET-REQUIRED"
)

// Entry is one VEVENT before recurrence expansion.
type Entry struct {
	UID            string
	Title          string
	Start          time.Time
	AllDay         bool
	Location       model.Location
	Organizer      string
	Performers     []string
	TicketRequired bool
	RRule          string
	ExDates        []time.Time
}

// ParseICS decodes an ICS payload. Floating times and dates are read in loc.
// VEVENTs that cannot be parsed are skipped and logged; overridden instances
// (RECURRENCE-ID) are ignored since only the date of the series matters here.
func ParseICS(ctx context.Context, body []byte, loc *time.Location, log logger.Logger) ([]Entry, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []Entry
	for _, ve := range cal.Events() {
		if ve.GetProperty(propRecurrenceID) != nil {
			continue
		}
		e, err := parseVEvent(ve, loc)
		if err != nil {
			log.Warn(ctx, "skipping vevent", logger.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Entry, error) {
	var e Entry

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return e, errors.New("vevent without UID")
	}
	e.UID = strings.TrimSpace(uid.Value)

	start := ve.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return e, fmt.Errorf("vevent %s: missing DTSTART", e.UID)
	}
	t, allDay, err := parseICSTime(start.Value, param(start.ICalParameters, "TZID"), loc)
	if err != nil {
		return e, fmt.Errorf("vevent %s: DTSTART: %w", e.UID, err)
	}
	if strings.EqualFold(param(start.ICalParameters, "VALUE"), "DATE") {
		allDay = true
	}
	e.Start, e.AllDay = t, allDay

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Title = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		e.Location.Name = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(propGeo); p != nil {
		c, err := parseGeo(p.Value)
		if err != nil {
			return e, fmt.Errorf("vevent %s: %w", e.UID, err)
		}
		e.Location.Coordinate = &c
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		e.Organizer = organizerName(p.Value, param(p.ICalParameters, "CN"))
	}
	if p := ve.GetProperty(propPerformers); p != nil {
		e.Performers = model.NormalizePerformers(strings.Split(p.Value, ","))
	}
	if p := ve.GetProperty(propTicketRequired); p != nil {
		switch strings.ToUpper(strings.TrimSpace(p.Value)) {
		case "TRUE", "YES", "1":
			e.TicketRequired = true
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.RRule = strings.TrimSpace(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := param(p.ICalParameters, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if x, _, err := parseICSTime(part, tzid, loc); err == nil {
				e.ExDates = append(e.ExDates, x)
			}
		}
	}
	return e, nil
}

func param(params map[string][]string, key string) string {
	if v := params[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// parseICSTime reads DATE, floating DATE-TIME, UTC DATE-TIME and TZID forms.
// Dates come back as UTC midnight with allDay set.
func parseICSTime(v, tzid string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	if !strings.Contains(v, "T") {
		t, err := time.Parse("20060102", v)
		return t, true, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}
	in := loc
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			in = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, in)
	return t, false, err
}

// parseGeo reads "lat;lon".
func parseGeo(v string) (model.Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(v), ";")
	if len(parts) != 2 {
		return model.Coordinate{}, fmt.Errorf("malformed GEO %q", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("malformed GEO latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("malformed GEO longitude %q", parts[1])
	}
	c := model.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return model.Coordinate{}, fmt.Errorf("GEO %q out of range", v)
	}
	return c, nil
}

// organizerName prefers the CN parameter, otherwise strips mailto:.
func organizerName(value, cn string) string {
	if cn = strings.Trim(strings.TrimSpace(cn), `"`); cn != "" {
		return cn
	}
	value = strings.TrimSpace(value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "mailto:") {
		value = value[7:]
	}
	return value
}
