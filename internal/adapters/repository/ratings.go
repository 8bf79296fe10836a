package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/clash/internal/domain/model"
)

// UpsertRatings stores the per-event dimension ratings. Nil dimensions are
// stored as unknown.
func (s *SQLiteStore) UpsertRatings(ctx context.Context, guid string, d model.Dimensions) error {
	err := s.write(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO ratings (guid, venue_quality, organizer_reputation, performer_lineup, logistics_ease, readiness, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(guid) DO UPDATE SET
				venue_quality = excluded.venue_quality,
				organizer_reputation = excluded.organizer_reputation,
				performer_lineup = excluded.performer_lineup,
				logistics_ease = excluded.logistics_ease,
				readiness = excluded.readiness,
				updated_at = excluded.updated_at`,
			guid, nullInt(d.VenueQuality), nullInt(d.OrganizerReputation), nullInt(d.PerformerLineup),
			nullInt(d.LogisticsEase), nullInt(d.Readiness), s.stamp(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert ratings for %s: %w", guid, err)
	}
	return nil
}

// Ratings returns the stored ratings of an event. ok is false when nothing
// is stored.
func (s *SQLiteStore) Ratings(ctx context.Context, guid string) (model.Dimensions, bool, error) {
	var vq, or, pl, le, rd sql.NullInt64
	err := s.read(func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT venue_quality, organizer_reputation, performer_lineup, logistics_ease, readiness
			FROM ratings WHERE guid = ?`, guid,
		).Scan(&vq, &or, &pl, &le, &rd)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dimensions{}, false, nil
	}
	if err != nil {
		return model.Dimensions{}, false, fmt.Errorf("ratings for %s: %w", guid, err)
	}
	return model.Dimensions{
		VenueQuality:        intFromNull(vq),
		OrganizerReputation: intFromNull(or),
		PerformerLineup:     intFromNull(pl),
		LogisticsEase:       intFromNull(le),
		Readiness:           intFromNull(rd),
	}, true, nil
}
