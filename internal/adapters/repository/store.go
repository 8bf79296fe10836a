// Package repository persists the event catalog, tenant settings, conflict
// groups and resolution decisions in SQLite.
package repository

import (
	"context"
	"time"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
)

// Store is the full set of repository operations. *SQLiteStore implements
// it; consumers depend on the narrower slices they need.
type Store interface {
	resolution.Store

	Close() error
	Ping(ctx context.Context) error
	Tenant() string

	// --- Catalog ---

	UpsertEvents(ctx context.Context, events []model.Event) (int, error)
	ReplaceSourceEvents(ctx context.Context, source string, events []model.Event) (upserted, removed int, err error)
	EventsInRange(ctx context.Context, start, end time.Time) ([]model.Event, error)
	Event(ctx context.Context, guid string) (model.Event, error)
	EventsByGUID(ctx context.Context, guids []string) ([]model.Event, error)
	CountEvents(ctx context.Context) (int, error)

	// --- Gazetteer and reputation ---

	UpsertVenues(ctx context.Context, venues []Venue) error
	Venue(ctx context.Context, name string) (Venue, error)
	UpsertOrganizers(ctx context.Context, orgs []Organizer) error
	OrganizerReputation(ctx context.Context, name string) (int, bool, error)

	// --- Ratings ---

	UpsertRatings(ctx context.Context, guid string, d model.Dimensions) error
	Ratings(ctx context.Context, guid string) (model.Dimensions, bool, error)

	// --- Settings ---

	Rules(ctx context.Context) (rules.ConflictRule, int64, error)
	CompareAndSwapRules(ctx context.Context, r rules.ConflictRule, version int64) (int64, error)
	Weights(ctx context.Context) (weights.ScoringWeights, int64, error)
	CompareAndSwapWeights(ctx context.Context, w weights.ScoringWeights, version int64) (int64, error)

	// --- Groups ---

	GroupCounts(ctx context.Context) (groups, decisions int, err error)
}

var _ Store = (*SQLiteStore)(nil)
