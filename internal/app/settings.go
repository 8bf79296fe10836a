package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/clash/internal/adapters/repository"
	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

// Setting names, used in logs and metric labels.
const (
	settingRules   = "conflict_rules"
	settingWeights = "scoring_weights"
)

// Rules returns the tenant's conflict rule set and its version.
func (s *Service) Rules(ctx context.Context) (rules.ConflictRule, int64, error) {
	r, v, err := s.store.Rules(ctx)
	if err != nil {
		return r, 0, errs.Dependency("service.rules", err)
	}
	return r, v, nil
}

// Weights returns the tenant's scoring weights and their version.
func (s *Service) Weights(ctx context.Context) (weights.ScoringWeights, int64, error) {
	w, v, err := s.store.Weights(ctx)
	if err != nil {
		return w, 0, errs.Dependency("service.weights", err)
	}
	return w, v, nil
}

// UpdateRules merges p into the current rules, validates and stores the
// result. Concurrent writers are detected by version and the update is
// retried on the fresh value. An empty patch writes nothing and returns the
// current rules.
func (s *Service) UpdateRules(ctx context.Context, p rules.Patch) (rules.ConflictRule, int64, error) {
	if p.Empty() {
		metrics.RecordSettingsUpdate(settingRules, "noop")
		return s.Rules(ctx)
	}
	var out rules.ConflictRule
	ver, err := s.casLoop(ctx, settingRules, func() (int64, error) {
		cur, v, err := s.store.Rules(ctx)
		if err != nil {
			return 0, errs.Dependency("service.update_rules", err)
		}
		next, err := p.Apply(cur)
		if err != nil {
			return 0, err
		}
		nv, err := s.store.CompareAndSwapRules(ctx, next, v)
		if err != nil {
			return 0, err
		}
		out = next
		return nv, nil
	})
	return out, ver, err
}

// UpdateWeights merges p into the current weights (rescaling untouched
// dimensions on a partial patch), validates and stores the result with the
// same optimistic retry as UpdateRules.
func (s *Service) UpdateWeights(ctx context.Context, p weights.Patch) (weights.ScoringWeights, int64, error) {
	if p.Empty() {
		metrics.RecordSettingsUpdate(settingWeights, "noop")
		return s.Weights(ctx)
	}
	var out weights.ScoringWeights
	ver, err := s.casLoop(ctx, settingWeights, func() (int64, error) {
		cur, v, err := s.store.Weights(ctx)
		if err != nil {
			return 0, errs.Dependency("service.update_weights", err)
		}
		next, err := p.Apply(cur)
		if err != nil {
			return 0, err
		}
		nv, err := s.store.CompareAndSwapWeights(ctx, next, v)
		if err != nil {
			return 0, err
		}
		out = next
		return nv, nil
	})
	return out, ver, err
}

// casLoop runs one read-modify-write attempt per iteration. A version
// mismatch from the store triggers another attempt; any other error ends
// the loop.
func (s *Service) casLoop(ctx context.Context, setting string, attempt func() (int64, error)) (int64, error) {
	op := "service.update_" + setting
	for i := 1; i <= s.updateAttempts; i++ {
		ver, err := attempt()
		switch {
		case err == nil:
			metrics.RecordSettingsUpdate(setting, "ok")
			s.logger.Info(ctx, "setting updated",
				logger.String("setting", setting),
				logger.Int64("version", ver),
				logger.Int("attempt", i))
			return ver, nil
		case errors.Is(err, repository.ErrVersionMismatch):
			metrics.RecordSettingsCASRetry(setting)
			s.logger.Debug(ctx, "setting version moved, retrying",
				logger.String("setting", setting),
				logger.Int("attempt", i))
			continue
		case errors.Is(err, errs.ErrValidation):
			metrics.RecordSettingsUpdate(setting, "invalid")
			return 0, err
		default:
			metrics.RecordSettingsUpdate(setting, "error")
			return 0, errs.Dependency(op, err)
		}
	}
	metrics.RecordSettingsUpdate(setting, "conflict")
	s.logger.Warn(ctx, "setting update gave up",
		logger.String("setting", setting),
		logger.Int("attempts", s.updateAttempts))
	return 0, errs.Concurrency(op, fmt.Errorf("version changed on each of %d attempts", s.updateAttempts))
}
