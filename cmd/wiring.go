package main

import (
	"context"
	"fmt"

	"github.com/okian/clash/internal/adapters/catalog"
	"github.com/okian/clash/internal/adapters/ratings"
	"github.com/okian/clash/internal/adapters/repository"
	service "github.com/okian/clash/internal/app"
	"github.com/okian/clash/internal/config"
	"github.com/okian/clash/internal/domain/detect"
	"github.com/okian/clash/internal/domain/scoring"
	"github.com/okian/clash/pkg/logger"
)

// components is the object graph shared by every command.
type components struct {
	store *repository.SQLiteStore
	svc   *service.Service
	log   logger.Logger
}

// build opens the store and assembles the service from cfg.
func build(ctx context.Context, cfg *config.Config) (*components, error) {
	log := logger.Get()

	store, err := repository.Open(ctx, cfg.DBPath,
		repository.WithTenant(cfg.Tenant),
		repository.WithDefaultRules(cfg.DefaultRules.Rule()),
		repository.WithDefaultWeights(cfg.DefaultWeights.Weights()),
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}

	engine := scoring.NewEngine(ratings.New(store), scoring.WithProviderTimeout(cfg.RatingsTimeout()))
	detector := detect.New(
		detect.WithWindowMode(detect.WindowMode(cfg.PerformerWindowMode)),
		detect.WithIndexThreshold(cfg.IndexThreshold),
		detect.WithLogger(log.Named("detect")),
	)

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithDetector(detector),
		service.WithMaxRangeDays(cfg.MaxRangeDays),
		service.WithUpdateAttempts(cfg.ConfigUpdateAttempts),
		service.WithScoreConcurrency(cfg.ScoreConcurrency),
	}
	if ref := newRefresher(cfg, store, log); ref != nil {
		opts = append(opts, service.WithRefresher(ref, cfg.Catalog.RefreshCron))
	}

	return &components{
		store: store,
		svc:   service.New(store, engine, opts...),
		log:   log,
	}, nil
}

// newRefresher returns nil when no feeds are configured.
func newRefresher(cfg *config.Config, store *repository.SQLiteStore, log logger.Logger) *catalog.Refresher {
	if len(cfg.Catalog.Sources) == 0 {
		return nil
	}
	sources := make([]catalog.Source, 0, len(cfg.Catalog.Sources))
	for _, s := range cfg.Catalog.Sources {
		sources = append(sources, catalog.Source{ID: s.ID, URL: s.URL})
	}
	fetcher := catalog.NewFetcher(
		catalog.WithRate(cfg.Catalog.FetchRPS),
		catalog.WithFetchLogger(log.Named("fetch")),
	)
	return catalog.NewRefresher(fetcher, store, sources,
		catalog.WithHorizonDays(cfg.Catalog.HorizonDays),
		catalog.WithLocation(cfg.Location()),
		catalog.WithRefreshLogger(log.Named("catalog")),
	)
}

// importSeed loads a seed file into the store.
func importSeed(ctx context.Context, store catalog.SeedStore, path string, log logger.Logger) (catalog.ImportReport, error) {
	seed, err := catalog.LoadSeedFile(path)
	if err != nil {
		return catalog.ImportReport{}, err
	}
	rep, err := seed.Import(ctx, store)
	if err != nil {
		return rep, fmt.Errorf("import seed %s: %w", path, err)
	}
	log.Info(ctx, "seed imported",
		logger.String("file", path),
		logger.Int("venues", rep.Venues),
		logger.Int("organizers", rep.Organizers),
		logger.Int("events", rep.Events),
		logger.Int("ratings", rep.Ratings))
	return rep, nil
}

func (c *components) close(ctx context.Context) {
	if err := c.store.Close(); err != nil {
		c.log.Error(ctx, "store close failed", logger.Error(err))
	}
}
