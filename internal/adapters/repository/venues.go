package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
)

// Venue is a gazetteer entry used to resolve event locations by name.
type Venue struct {
	Name       string
	Coordinate model.Coordinate
	Quality    *int // optional venue_quality rating
}

// Organizer carries an organizer's reputation rating.
type Organizer struct {
	Name       string
	Reputation int
}

// UpsertVenues stores gazetteer entries keyed by normalized name.
func (s *SQLiteStore) UpsertVenues(ctx context.Context, venues []Venue) error {
	const op = "repository.upsert_venues"
	for _, v := range venues {
		if strings.TrimSpace(v.Name) == "" {
			return errs.Validation(op, "venue name is required")
		}
		if !v.Coordinate.Valid() {
			return errs.Validation(op, "venue %q has out of range coordinate", v.Name)
		}
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range venues {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO venues (name_key, name, lat, lon, quality) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(name_key) DO UPDATE SET
					name = excluded.name, lat = excluded.lat, lon = excluded.lon, quality = excluded.quality`,
				model.NormalizeVenue(v.Name), v.Name, v.Coordinate.Lat, v.Coordinate.Lon, nullInt(v.Quality),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert venues: %w", err)
	}
	return nil
}

// Venue looks up a gazetteer entry by name.
func (s *SQLiteStore) Venue(ctx context.Context, name string) (Venue, error) {
	var (
		v       Venue
		quality sql.NullInt64
	)
	err := s.read(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT name, lat, lon, quality FROM venues WHERE name_key = ?`, model.NormalizeVenue(name),
		).Scan(&v.Name, &v.Coordinate.Lat, &v.Coordinate.Lon, &quality)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Venue{}, errs.NotFound("repository.venue", "venue %q not found", name)
	}
	if err != nil {
		return Venue{}, fmt.Errorf("venue %s: %w", name, err)
	}
	v.Quality = intFromNull(quality)
	return v, nil
}

// UpsertOrganizers stores organizer reputations keyed by normalized name.
func (s *SQLiteStore) UpsertOrganizers(ctx context.Context, orgs []Organizer) error {
	const op = "repository.upsert_organizers"
	for _, o := range orgs {
		if strings.TrimSpace(o.Name) == "" {
			return errs.Validation(op, "organizer name is required")
		}
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, o := range orgs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO organizers (name_key, name, reputation) VALUES (?, ?, ?)
				ON CONFLICT(name_key) DO UPDATE SET name = excluded.name, reputation = excluded.reputation`,
				model.NormalizeVenue(o.Name), o.Name, o.Reputation,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert organizers: %w", err)
	}
	return nil
}

// OrganizerReputation returns the stored reputation of an organizer.
func (s *SQLiteStore) OrganizerReputation(ctx context.Context, name string) (int, bool, error) {
	var rep int
	err := s.read(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT reputation FROM organizers WHERE name_key = ?`, model.NormalizeVenue(name),
		).Scan(&rep)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("organizer %s: %w", name, err)
	}
	return rep, true, nil
}
