// Package geotime holds the pure distance and calendar predicates used by
// conflict detection.
package geotime

import (
	"math"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
)

// EarthRadiusMiles is the mean earth radius used by DistanceMiles.
const EarthRadiusMiles = 3958.8

// DateLayout is the ISO calendar date layout accepted on the wire.
const DateLayout = "2006-01-02"

const hoursPerDay = 24

// DistanceMiles returns the great-circle distance between a and b.
func DistanceMiles(a, b model.Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// GapDays returns the absolute number of calendar days between a and b.
func GapDays(a, b time.Time) int {
	da := civil(a)
	db := civil(b)
	d := int(db.Sub(da).Hours() / hoursPerDay)
	if d < 0 {
		return -d
	}
	return d
}

// civil drops the clock and zone, keeping the calendar date as UTC midnight.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errs.Validation("geotime.parse_date", "invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Truncate returns the calendar date of t as seen in loc, at UTC midnight.
func Truncate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return civil(t.In(loc))
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return civil(t).AddDate(0, 0, n)
}

// ValidateRange checks that start is not after end.
func ValidateRange(start, end time.Time) error {
	if civil(start).After(civil(end)) {
		return errs.Validation("geotime.range", "start_date %s is after end_date %s", FormatDate(start), FormatDate(end))
	}
	return nil
}

// InRange reports whether d falls within [start, end] inclusive.
func InRange(d, start, end time.Time) bool {
	c := civil(d)
	return !c.Before(civil(start)) && !c.After(civil(end))
}
