package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/clash/internal/domain/errs"
	"github.com/okian/clash/internal/domain/model"
)

// SaveGroup upserts a group and its membership. created reports whether
// the id was unknown before.
func (s *SQLiteStore) SaveGroup(ctx context.Context, id string, members []string) (bool, error) {
	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.stamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO conflict_groups (tenant, id, created_at, last_seen) VALUES (?, ?, ?, ?)
			 ON CONFLICT(tenant, id) DO NOTHING`,
			s.tenant, id, now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1
		if !created {
			_, err := tx.ExecContext(ctx,
				`UPDATE conflict_groups SET last_seen = ? WHERE tenant = ? AND id = ?`, now, s.tenant, id)
			return err
		}
		for _, m := range members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (tenant, group_id, event_guid) VALUES (?, ?, ?)
				 ON CONFLICT DO NOTHING`,
				s.tenant, id, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("save group %s: %w", id, err)
	}
	return created, nil
}

// LoadGroup returns the sorted members of a group and its decisions.
func (s *SQLiteStore) LoadGroup(ctx context.Context, id string) ([]string, map[string]model.Attendance, error) {
	var (
		members   []string
		decisions = map[string]model.Attendance{}
	)
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT event_guid FROM group_members WHERE tenant = ? AND group_id = ? ORDER BY event_guid`,
			s.tenant, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var g string
			if err := rows.Scan(&g); err != nil {
				rows.Close()
				return err
			}
			members = append(members, g)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = s.db.QueryContext(ctx,
			`SELECT event_guid, attendance FROM decisions WHERE tenant = ? AND group_id = ?`,
			s.tenant, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var g, a string
			if err := rows.Scan(&g, &a); err != nil {
				return err
			}
			decisions[g] = model.Attendance(a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load group %s: %w", id, err)
	}
	if len(members) == 0 {
		return nil, nil, errs.NotFound("repository.load_group", "conflict group %s not found", id)
	}
	return members, decisions, nil
}

// LatestDecisions returns, for each guid, the attendance of its most recent
// decision in any group other than exclude.
func (s *SQLiteStore) LatestDecisions(ctx context.Context, guids []string, exclude string) (map[string]model.Attendance, error) {
	out := map[string]model.Attendance{}
	if len(guids) == 0 {
		return out, nil
	}
	err := s.read(func() error {
		args := make([]any, 0, len(guids)+2)
		args = append(args, s.tenant, exclude)
		for _, g := range guids {
			args = append(args, g)
		}
		q := `SELECT event_guid, attendance, decided_at FROM decisions
		      WHERE tenant = ? AND group_id <> ? AND event_guid IN (?` + strings.Repeat(",?", len(guids)-1) + `)
		      ORDER BY event_guid, decided_at`
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		latest := map[string]time.Time{}
		for rows.Next() {
			var g, a, at string
			if err := rows.Scan(&g, &a, &at); err != nil {
				return err
			}
			t, err := time.Parse(timeLayout, at)
			if err != nil {
				return fmt.Errorf("parse decided_at: %w", err)
			}
			if prev, ok := latest[g]; !ok || !t.Before(prev) {
				latest[g] = t
				out[g] = model.Attendance(a)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("latest decisions: %w", err)
	}
	return out, nil
}

// ApplyDecisions upserts the batch in one transaction and returns how many
// decisions were inserted or changed attendance.
func (s *SQLiteStore) ApplyDecisions(ctx context.Context, groupID string, batch []model.Decision) (int, error) {
	var changed int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		changed = 0
		for _, d := range batch {
			var cur string
			err := tx.QueryRowContext(ctx,
				`SELECT attendance FROM decisions WHERE tenant = ? AND group_id = ? AND event_guid = ?`,
				s.tenant, groupID, d.EventGUID).Scan(&cur)
			switch {
			case err == nil && cur == string(d.Attendance):
				continue
			case err != nil && !errors.Is(err, sql.ErrNoRows):
				return err
			}
			at := d.DecidedAt
			if at.IsZero() {
				at = s.now()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO decisions (tenant, group_id, event_guid, attendance, decided_at) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(tenant, group_id, event_guid) DO UPDATE SET
					attendance = excluded.attendance, decided_at = excluded.decided_at`,
				s.tenant, groupID, d.EventGUID, string(d.Attendance), at.UTC().Format(timeLayout)); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply decisions to %s: %w", groupID, err)
	}
	return changed, nil
}

// GroupCounts returns the number of stored groups and decisions.
func (s *SQLiteStore) GroupCounts(ctx context.Context) (groups, decisions int, err error) {
	err = s.read(func() error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM conflict_groups WHERE tenant = ?`, s.tenant).Scan(&groups); err != nil {
			return err
		}
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM decisions WHERE tenant = ?`, s.tenant).Scan(&decisions)
	})
	return groups, decisions, err
}
