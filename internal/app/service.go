// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/clash/internal/adapters/catalog"
	"github.com/okian/clash/internal/adapters/repository"
	"github.com/okian/clash/internal/domain/detect"
	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/internal/domain/resolution"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/scoring"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultMaxRangeDays   = 366
	DefaultUpdateAttempts = 5
)

// Store is the persistence the service needs. *repository.SQLiteStore
// implements it.
type Store interface {
	resolution.Store

	EventsInRange(ctx context.Context, start, end time.Time) ([]model.Event, error)
	Event(ctx context.Context, guid string) (model.Event, error)
	CountEvents(ctx context.Context) (int, error)
	GroupCounts(ctx context.Context) (groups, decisions int, err error)

	Rules(ctx context.Context) (rules.ConflictRule, int64, error)
	CompareAndSwapRules(ctx context.Context, r rules.ConflictRule, version int64) (int64, error)
	Weights(ctx context.Context) (weights.ScoringWeights, int64, error)
	CompareAndSwapWeights(ctx context.Context, w weights.ScoringWeights, version int64) (int64, error)
}

var _ Store = (*repository.SQLiteStore)(nil)

// Refresher reloads the catalog from its feeds.
type Refresher interface {
	Refresh(ctx context.Context) (catalog.Report, error)
}

// Service orchestrates detection, grouping, scoring, resolution and settings.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     Store
	detector  *detect.Detector
	scorer    scoring.Scorer
	resolver  *resolution.Manager
	refresher Refresher
	scheduler *catalog.Scheduler

	// Configuration
	maxRangeDays     int
	updateAttempts   int
	scoreConcurrency int
	refreshCron      string

	// State
	started   bool
	startedAt time.Time
	lastRun   *catalog.Report

	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDetector replaces the default detector.
func WithDetector(d *detect.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithMaxRangeDays caps the span of a detection request.
func WithMaxRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxRangeDays = days
		}
	}
}

// WithUpdateAttempts bounds the optimistic settings update loop.
func WithUpdateAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.updateAttempts = n
		}
	}
}

// WithScoreConcurrency bounds concurrent scoring during detection.
func WithScoreConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoreConcurrency = n
		}
	}
}

// WithRefresher enables catalog refreshes. A non-empty cronSpec also
// schedules them while the service is started.
func WithRefresher(r Refresher, cronSpec string) Option {
	return func(s *Service) {
		s.refresher = r
		s.refreshCron = cronSpec
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over store and scorer.
func New(store Store, scorer scoring.Scorer, opts ...Option) *Service {
	s := &Service{
		store:            store,
		scorer:           scorer,
		maxRangeDays:     DefaultMaxRangeDays,
		updateAttempts:   DefaultUpdateAttempts,
		scoreConcurrency: runtime.NumCPU() * 4,
		logger:           logger.Nop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = detect.New(detect.WithLogger(s.logger.Named("detect")))
	}
	s.resolver = resolution.NewManager(store,
		resolution.WithLogger(s.logger.Named("resolution")),
		resolution.WithClock(s.now),
	)
	return s
}

// Start launches background jobs (the catalog refresh schedule).
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.refresher != nil && s.refreshCron != "" {
		sch, err := catalog.NewScheduler(s.refreshCron, s.RefreshCatalog, s.logger.Named("scheduler"))
		if err != nil {
			return errs.Validation("service.start", "%v", err)
		}
		sch.Start()
		s.scheduler = sch
	}
	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "conflict service started",
		logger.String("window_mode", string(s.detector.Mode())),
		logger.Int("max_range_days", s.maxRangeDays),
		logger.Int("score_concurrency", s.scoreConcurrency),
		logger.String("refresh_cron", s.refreshCron),
	)
	return nil
}

// Stop halts background jobs and waits for a running refresh until ctx
// expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	sch := s.scheduler
	s.scheduler = nil
	s.started = false
	s.mu.Unlock()

	// A scheduled refresh takes s.mu when it finishes; stop outside the lock.
	var err error
	if sch != nil {
		err = sch.Stop(ctx)
	}
	s.logger.Info(ctx, "conflict service stopped")
	return err
}

// RefreshCatalog pulls every configured feed into the catalog.
func (s *Service) RefreshCatalog(ctx context.Context) (catalog.Report, error) {
	const op = "service.refresh_catalog"
	if s.refresher == nil {
		return catalog.Report{}, errs.Validation(op, "no catalog sources configured")
	}
	rep, err := s.refresher.Refresh(ctx)

	s.mu.Lock()
	s.lastRun = &rep
	s.mu.Unlock()

	if err != nil {
		metrics.RecordErrorByComponent("catalog", "refresh")
		return rep, errs.Dependency(op, err)
	}
	return rep, nil
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Started        bool            `json:"started"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	WindowMode     string          `json:"performer_window_mode"`
	MaxRangeDays   int             `json:"max_range_days"`
	Events         int             `json:"events"`
	Groups         int             `json:"groups"`
	Decisions      int             `json:"decisions"`
	LastRefresh    *catalog.Report `json:"last_refresh,omitempty"`
	RefreshEnabled bool            `json:"refresh_enabled"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	const op = "service.stats"
	s.mu.RLock()
	st := Stats{
		Started:        s.started,
		WindowMode:     string(s.detector.Mode()),
		MaxRangeDays:   s.maxRangeDays,
		LastRefresh:    s.lastRun,
		RefreshEnabled: s.refresher != nil,
	}
	if s.started {
		st.UptimeSeconds = int64(s.now().Sub(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	n, err := s.store.CountEvents(ctx)
	if err != nil {
		return st, errs.Dependency(op, err)
	}
	g, d, err := s.store.GroupCounts(ctx)
	if err != nil {
		return st, errs.Dependency(op, err)
	}
	st.Events, st.Groups, st.Decisions = n, g, d

	metrics.UpdateCatalogSize(n)
	return st, nil
}
