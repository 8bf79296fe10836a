package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

// eventColumns selects an event joined with the venue gazetteer so a
// location without an embedded coordinate still resolves by venue name.
const eventColumns = `
	e.guid, e.title, e.event_date, e.location_name,
	COALESCE(e.lat, v.lat), COALESCE(e.lon, v.lon),
	e.organizer, e.performers, e.ticket_required, e.source
	FROM events e
	LEFT JOIN venues v ON v.name_key = e.venue_key`

// UpsertEvents inserts or replaces events by guid and returns how many rows
// were written.
func (s *SQLiteStore) UpsertEvents(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return 0, err
		}
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertEvents(ctx, tx, events, s.stamp())
	})
	if err != nil {
		return 0, fmt.Errorf("upsert events: %w", err)
	}
	s.refreshCatalogSize(ctx)
	return len(events), nil
}

// ReplaceSourceEvents makes events the complete set for source: rows of
// that source missing from events are removed, the rest are upserted. The
// Source field of every element is overwritten with source.
func (s *SQLiteStore) ReplaceSourceEvents(ctx context.Context, source string, events []model.Event) (upserted, removed int, err error) {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return 0, 0, err
		}
		events[i].Source = source
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		keep := make(map[string]struct{}, len(events))
		for _, ev := range events {
			keep[ev.GUID] = struct{}{}
		}
		rows, err := tx.QueryContext(ctx, `SELECT guid FROM events WHERE source = ?`, source)
		if err != nil {
			return err
		}
		var stale []string
		for rows.Next() {
			var guid string
			if err := rows.Scan(&guid); err != nil {
				rows.Close()
				return err
			}
			if _, ok := keep[guid]; !ok {
				stale = append(stale, guid)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, guid := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE guid = ?`, guid); err != nil {
				return err
			}
		}
		removed = len(stale)
		return upsertEvents(ctx, tx, events, s.stamp())
	})
	if err != nil {
		return 0, 0, fmt.Errorf("replace events of %s: %w", source, err)
	}
	s.refreshCatalogSize(ctx)
	return len(events), removed, nil
}

func upsertEvents(ctx context.Context, tx *sql.Tx, events []model.Event, now string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (guid, title, event_date, location_name, venue_key, lat, lon, organizer, performers, ticket_required, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO UPDATE SET
			title = excluded.title,
			event_date = excluded.event_date,
			location_name = excluded.location_name,
			venue_key = excluded.venue_key,
			lat = excluded.lat,
			lon = excluded.lon,
			organizer = excluded.organizer,
			performers = excluded.performers,
			ticket_required = excluded.ticket_required,
			source = excluded.source,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		perf, err := json.Marshal(model.NormalizePerformers(ev.Performers))
		if err != nil {
			return err
		}
		var lat, lon sql.NullFloat64
		if c := ev.Location.Coordinate; c != nil {
			lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			ev.GUID, ev.Title, ev.Date.Format(dateLayout), ev.Location.Name, model.NormalizeVenue(ev.Location.Name), lat, lon,
			ev.Organizer, string(perf), ev.TicketRequired, ev.Source, now,
		); err != nil {
			return fmt.Errorf("event %s: %w", ev.GUID, err)
		}
	}
	return nil
}

// EventsInRange returns events dated within [start, end] inclusive, ordered
// by date then guid.
func (s *SQLiteStore) EventsInRange(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	var out []model.Event
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+eventColumns+` WHERE e.event_date >= ? AND e.event_date <= ? ORDER BY e.event_date, e.guid`,
			start.Format(dateLayout), end.Format(dateLayout))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			ev, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("events in range: %w", err)
	}
	return out, nil
}

// Event returns one event by guid.
func (s *SQLiteStore) Event(ctx context.Context, guid string) (model.Event, error) {
	var ev model.Event
	err := s.read(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` WHERE e.guid = ?`, guid)
		var err error
		ev, err = scanEvent(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Event{}, errs.NotFound("repository.event", "event %q not found", guid)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: %w", guid, err)
	}
	return ev, nil
}

// EventsByGUID returns the events with the given guids. Unknown guids are
// skipped.
func (s *SQLiteStore) EventsByGUID(ctx context.Context, guids []string) ([]model.Event, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	var out []model.Event
	err := s.read(func() error {
		args := make([]any, len(guids))
		for i, g := range guids {
			args[i] = g
		}
		q := `SELECT ` + eventColumns + ` WHERE e.guid IN (?` + strings.Repeat(",?", len(guids)-1) + `) ORDER BY e.event_date, e.guid`
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			ev, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("events by guid: %w", err)
	}
	return out, nil
}

// CountEvents returns the number of stored events.
func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.read(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	})
	return n, err
}

func (s *SQLiteStore) refreshCatalogSize(ctx context.Context) {
	n, err := s.CountEvents(ctx)
	if err != nil {
		s.log.Warn(ctx, "count events failed", logger.Error(err))
		return
	}
	metrics.UpdateCatalogSize(n)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		ev       model.Event
		date     string
		lat, lon sql.NullFloat64
		perf     string
	)
	if err := row.Scan(&ev.GUID, &ev.Title, &date, &ev.Location.Name, &lat, &lon,
		&ev.Organizer, &perf, &ev.TicketRequired, &ev.Source); err != nil {
		return model.Event{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse date of %s: %w", ev.GUID, err)
	}
	ev.Date = d
	if lat.Valid && lon.Valid {
		ev.Location.Coordinate = &model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	if err := json.Unmarshal([]byte(perf), &ev.Performers); err != nil {
		return model.Event{}, fmt.Errorf("parse performers of %s: %w", ev.GUID, err)
	}
	if len(ev.Performers) == 0 {
		ev.Performers = nil
	}
	return ev, nil
}
