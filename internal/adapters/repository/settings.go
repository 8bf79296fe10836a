package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
)

// Setting row names.
const (
	settingRules   = "conflict_rules"
	settingWeights = "scoring_weights"
)

// Rules returns the tenant's rule set and its version, creating the default
// row on first access.
func (s *SQLiteStore) Rules(ctx context.Context) (rules.ConflictRule, int64, error) {
	var r rules.ConflictRule
	v, err := s.loadSetting(ctx, settingRules, s.defaultRules, &r)
	return r, v, err
}

// CompareAndSwapRules stores r if the stored version still equals version
// and returns the new version. A moved version yields ErrVersionMismatch.
func (s *SQLiteStore) CompareAndSwapRules(ctx context.Context, r rules.ConflictRule, version int64) (int64, error) {
	return s.casSetting(ctx, settingRules, r, version)
}

// Weights returns the tenant's scoring weights and their version, creating
// the default row on first access.
func (s *SQLiteStore) Weights(ctx context.Context) (weights.ScoringWeights, int64, error) {
	var w weights.ScoringWeights
	v, err := s.loadSetting(ctx, settingWeights, s.defaultWeights, &w)
	return w, v, err
}

// CompareAndSwapWeights stores w if the stored version still equals version.
func (s *SQLiteStore) CompareAndSwapWeights(ctx context.Context, w weights.ScoringWeights, version int64) (int64, error) {
	return s.casSetting(ctx, settingWeights, w, version)
}

func (s *SQLiteStore) loadSetting(ctx context.Context, name string, def, dst any) (int64, error) {
	raw, version, err := s.readSetting(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.seedSetting(ctx, name, def); err != nil {
			return 0, err
		}
		raw, version, err = s.readSetting(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return 0, fmt.Errorf("decode %s: %w", name, err)
	}
	return version, nil
}

func (s *SQLiteStore) readSetting(ctx context.Context, name string) (string, int64, error) {
	var (
		raw     string
		version int64
	)
	err := s.read(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT value, version FROM settings WHERE tenant = ? AND name = ?`, s.tenant, name,
		).Scan(&raw, &version)
	})
	return raw, version, err
}

// seedSetting inserts the default at version 1 unless another writer got
// there first.
func (s *SQLiteStore) seedSetting(ctx context.Context, name string, def any) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return s.write(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (tenant, name, value, version, updated_at) VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(tenant, name) DO NOTHING`,
			s.tenant, name, string(raw), s.stamp())
		return err
	})
}

func (s *SQLiteStore) casSetting(ctx context.Context, name string, value any, version int64) (int64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", name, err)
	}
	var affected int64
	err = s.write(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE settings SET value = ?, version = version + 1, updated_at = ?
			 WHERE tenant = ? AND name = ? AND version = ?`,
			string(raw), s.stamp(), s.tenant, name, version)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", name, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("update %s at version %d: %w", name, version, ErrVersionMismatch)
	}
	return version + 1, nil
}
