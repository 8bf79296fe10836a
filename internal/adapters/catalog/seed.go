package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/clash/internal/adapters/repository"
	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/model"
)

// SeedSource is the source id given to events imported from seed files.
const SeedSource = "seed"

// Seed is the on-disk YAML layout of a seed file.
type Seed struct {
	Venues     []SeedVenue     `yaml:"venues"`
	Organizers []SeedOrganizer `yaml:"organizers"`
	Events     []SeedEvent     `yaml:"events"`
}

// SeedVenue is a gazetteer row.
type SeedVenue struct {
	Name    string  `yaml:"name"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	Quality *int    `yaml:"quality"`
}

// SeedOrganizer carries an organizer reputation.
type SeedOrganizer struct {
	Name       string `yaml:"name"`
	Reputation int    `yaml:"reputation"`
}

// SeedEvent is an event plus optional ratings.
type SeedEvent struct {
	GUID           string      `yaml:"guid"`
	Title          string      `yaml:"title"`
	Date           string      `yaml:"date"`
	Location       string      `yaml:"location"`
	Lat            *float64    `yaml:"lat"`
	Lon            *float64    `yaml:"lon"`
	Organizer      string      `yaml:"organizer"`
	Performers     []string    `yaml:"performers"`
	TicketRequired bool        `yaml:"ticket_required"`
	Ratings        *SeedRating `yaml:"ratings"`
}

// SeedRating holds optional per-dimension ratings.
type SeedRating struct {
	VenueQuality        *int `yaml:"venue_quality"`
	OrganizerReputation *int `yaml:"organizer_reputation"`
	PerformerLineup     *int `yaml:"performer_lineup"`
	LogisticsEase       *int `yaml:"logistics_ease"`
	Readiness           *int `yaml:"readiness"`
}

// SeedStore is what an import writes to.
type SeedStore interface {
	UpsertVenues(ctx context.Context, venues []repository.Venue) error
	UpsertOrganizers(ctx context.Context, orgs []repository.Organizer) error
	UpsertEvents(ctx context.Context, events []model.Event) (int, error)
	UpsertRatings(ctx context.Context, guid string, d model.Dimensions) error
}

// ImportReport counts imported rows.
type ImportReport struct {
	Venues     int `json:"venues"`
	Organizers int `json:"organizers"`
	Events     int `json:"events"`
	Ratings    int `json:"ratings"`
}

// LoadSeedFile reads and decodes a seed file.
func LoadSeedFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Unknown keys are rejected.
func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("decode seed file: %w", err)
	}
	return s, nil
}

// CatalogEvents converts the seed events into catalog events.
func (s Seed) CatalogEvents() ([]model.Event, error) {
	out := make([]model.Event, 0, len(s.Events))
	for i, se := range s.Events {
		date, err := geotime.ParseDate(strings.TrimSpace(se.Date))
		if err != nil {
			return nil, fmt.Errorf("seed event %d (%s): %w", i, se.GUID, err)
		}
		ev := model.Event{
			GUID:           strings.TrimSpace(se.GUID),
			Title:          se.Title,
			Date:           date,
			Location:       model.Location{Name: se.Location},
			Organizer:      se.Organizer,
			Performers:     model.NormalizePerformers(se.Performers),
			TicketRequired: se.TicketRequired,
			Source:         SeedSource,
		}
		switch {
		case se.Lat != nil && se.Lon != nil:
			ev.Location.Coordinate = &model.Coordinate{Lat: *se.Lat, Lon: *se.Lon}
		case se.Lat != nil || se.Lon != nil:
			return nil, fmt.Errorf("seed event %d (%s): lat and lon must be given together", i, se.GUID)
		}
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("seed event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Import writes the seed into store: venues and organizers first so event
// locations resolve, then events, then ratings.
func (s Seed) Import(ctx context.Context, store SeedStore) (ImportReport, error) {
	var rep ImportReport

	events, err := s.CatalogEvents()
	if err != nil {
		return rep, err
	}

	if len(s.Venues) > 0 {
		venues := make([]repository.Venue, 0, len(s.Venues))
		for _, v := range s.Venues {
			venues = append(venues, repository.Venue{
				Name:       v.Name,
				Coordinate: model.Coordinate{Lat: v.Lat, Lon: v.Lon},
				Quality:    v.Quality,
			})
		}
		if err := store.UpsertVenues(ctx, venues); err != nil {
			return rep, err
		}
		rep.Venues = len(venues)
	}

	if len(s.Organizers) > 0 {
		orgs := make([]repository.Organizer, 0, len(s.Organizers))
		for _, o := range s.Organizers {
			orgs = append(orgs, repository.Organizer{Name: o.Name, Reputation: o.Reputation})
		}
		if err := store.UpsertOrganizers(ctx, orgs); err != nil {
			return rep, err
		}
		rep.Organizers = len(orgs)
	}

	n, err := store.UpsertEvents(ctx, events)
	if err != nil {
		return rep, err
	}
	rep.Events = n

	for _, se := range s.Events {
		if se.Ratings == nil {
			continue
		}
		d := model.Dimensions{
			VenueQuality:        se.Ratings.VenueQuality,
			OrganizerReputation: se.Ratings.OrganizerReputation,
			PerformerLineup:     se.Ratings.PerformerLineup,
			LogisticsEase:       se.Ratings.LogisticsEase,
			Readiness:           se.Ratings.Readiness,
		}
		if err := store.UpsertRatings(ctx, strings.TrimSpace(se.GUID), d); err != nil {
			return rep, err
		}
		rep.Ratings++
	}
	return rep, nil
}
