package repository

import (
	"time"

	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithTenant scopes settings, groups and decisions to tenant.
func WithTenant(tenant string) Option {
	return func(s *SQLiteStore) {
		if tenant != "" {
			s.tenant = tenant
		}
	}
}

// WithDefaultRules sets the rule set a tenant starts with.
func WithDefaultRules(r rules.ConflictRule) Option {
	return func(s *SQLiteStore) {
		if r.Validate() == nil {
			s.defaultRules = r
		}
	}
}

// WithDefaultWeights sets the weights a tenant starts with.
func WithDefaultWeights(w weights.ScoringWeights) Option {
	return func(s *SQLiteStore) {
		if w.Validate() == nil {
			s.defaultWeights = w
		}
	}
}

// WithRetry tunes the retry policy for transient SQLite errors.
func WithRetry(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(s *SQLiteStore) {
		if maxRetries >= 0 && baseDelay > 0 && maxDelay >= baseDelay {
			s.retry = retryConfig{maxRetries: maxRetries, baseDelay: baseDelay, maxDelay: maxDelay}
		}
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}
