// retry.go retries transient SQLite errors.
//
// WAL mode with several writers can still surface SQLITE_BUSY, SQLITE_LOCKED
// and IOERR_SHORT_READ past busy_timeout; those are retried with exponential
// backoff and jitter.
package repository

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/okian/clash/pkg/metrics"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for all store write operations.
var defaultRetryConfig = retryConfig{ //nolint:gochecknoglobals // read-only default
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// transientPatterns are fragments of modernc.org/sqlite error texts.
var transientPatterns = []string{ //nolint:gochecknoglobals // read-only table
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
	"(5)",   // SQLITE_BUSY
	"(6)",   // SQLITE_LOCKED
	"(522)", // SQLITE_IOERR_SHORT_READ
}

// isTransientSQLiteErr reports whether err is worth retrying.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryOp runs fn until it succeeds, fails permanently, runs out of
// attempts or ctx ends.
func retryOp(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}
		metrics.RecordRepositoryRetry()
		t := time.NewTimer(backoffDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}

// backoffDelay is baseDelay * 2^attempt capped at maxDelay, plus jitter in
// [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt) //nolint:gosec // attempt is small and non-negative
	if delay > cfg.maxDelay || delay <= 0 {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay))) //nolint:gosec // jitter does not need crypto randomness
	return delay + jitter
}
