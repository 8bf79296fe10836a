package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/clash/internal/domain/model"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

const defaultHorizonDays = 180

// Refresh outcomes, used as metric labels.
const (
	ResultOK       = "ok"
	ResultCached   = "cached"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// EventSink receives the full event set of a source.
type EventSink interface {
	ReplaceSourceEvents(ctx context.Context, source string, events []model.Event) (upserted, removed int, err error)
}

// Getter fetches a source body. *Fetcher implements it.
type Getter interface {
	Fetch(ctx context.Context, src Source) (FetchResult, error)
}

// SourceReport is the outcome of refreshing one source.
type SourceReport struct {
	ID        string `json:"id"`
	Result    string `json:"result"`
	Imported  int    `json:"imported"`
	Removed   int    `json:"removed"`
	Skipped   int    `json:"skipped"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

// Report summarises one refresh run.
type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Sources   []SourceReport `json:"sources"`
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithHorizonDays sets how far ahead recurring events are expanded.
func WithHorizonDays(days int) RefresherOption {
	return func(r *Refresher) {
		if days > 0 {
			r.horizon = days
		}
	}
}

// WithLocation sets the zone used to turn timestamps into calendar dates.
func WithLocation(loc *time.Location) RefresherOption {
	return func(r *Refresher) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithRefreshLogger sets the refresher logger.
func WithRefreshLogger(l logger.Logger) RefresherOption {
	return func(r *Refresher) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRefreshClock overrides time.Now.
func WithRefreshClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// Refresher pulls every configured source into the catalog.
type Refresher struct {
	get     Getter
	sink    EventSink
	sources []Source
	horizon int
	loc     *time.Location
	log     logger.Logger
	now     func() time.Time

	mu sync.Mutex // one run at a time
}

// NewRefresher builds a Refresher.
func NewRefresher(get Getter, sink EventSink, sources []Source, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		get:     get,
		sink:    sink,
		sources: append([]Source(nil), sources...),
		horizon: defaultHorizonDays,
		loc:     time.UTC,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources returns the configured sources.
func (r *Refresher) Sources() []Source { return append([]Source(nil), r.sources...) }

// Refresh runs every source. A failing source keeps its previously stored
// events and does not stop the others. The error is non-nil only when every
// source failed.
func (r *Refresher) Refresh(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{StartedAt: r.now().UTC()}
	start := time.Now()
	var failures []error
	for _, src := range r.sources {
		sr, err := r.refreshSource(ctx, src)
		metrics.RecordCatalogRefresh(src.ID, sr.Result, sr.Imported)
		if err != nil {
			sr.Error = err.Error()
			failures = append(failures, err)
			r.log.Warn(ctx, "catalog source refresh failed", logger.String("source", src.ID), logger.Error(err))
		}
		rep.Sources = append(rep.Sources, sr)
	}
	rep.Duration = time.Since(start)

	r.log.Info(ctx, "catalog refreshed",
		logger.Int("sources", len(r.sources)),
		logger.Int("failed", len(failures)),
		logger.Duration("took", rep.Duration),
	)
	if len(failures) > 0 && len(failures) == len(r.sources) {
		return rep, errors.Join(failures...)
	}
	return rep, nil
}

func (r *Refresher) refreshSource(ctx context.Context, src Source) (SourceReport, error) {
	sr := SourceReport{ID: src.ID, Result: ResultFailed}

	res, err := r.get.Fetch(ctx, src)
	if err != nil {
		return sr, err
	}
	sr.FromCache = res.FromCache

	entries, err := ParseICS(ctx, res.Body, r.loc, r.log)
	if err != nil {
		sr.Result = ResultRejected
		return sr, fmt.Errorf("source %s: %w", src.ID, err)
	}
	events := Expand(ctx, entries, HorizonWindow(r.now(), r.horizon, r.loc), r.loc, src.ID, r.log)

	valid := events[:0]
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			sr.Skipped++
			r.log.Debug(ctx, "dropping invalid event", logger.String("source", src.ID), logger.Error(err))
			continue
		}
		valid = append(valid, ev)
	}

	up, removed, err := r.sink.ReplaceSourceEvents(ctx, src.ID, valid)
	if err != nil {
		return sr, fmt.Errorf("source %s: %w", src.ID, err)
	}
	sr.Imported, sr.Removed = up, removed
	sr.Result = ResultOK
	if res.FromCache {
		sr.Result = ResultCached
	}
	return sr, nil
}
