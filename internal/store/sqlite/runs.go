package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"notai_engine/internal/model"
)

// RecordRun 保存一次账号运行结果，并在同一事务内累加 accounts 表里的汇总。
func (s *Store) RecordRun(ctx context.Context, r model.RunReport) error {
	if r.TokenHint == "" {
		return errors.New("tokenHint is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedMs == 0 {
		r.StartedMs = time.Now().UnixMilli()
	}
	if r.FinishedMs == 0 {
		r.FinishedMs = r.StartedMs
	}
	p := r.Progress

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, batch_id, token_hint, username, logged_in, initial_level, final_level,
			damage_upgrades, limit_upgrades, missions_completed, taps_performed, tap_outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.BatchID, r.TokenHint, p.Username, boolToInt(r.LoggedIn), nullInt(p.InitialLevel), nullInt(p.FinalLevel),
		p.DamageUpgrades, p.LimitUpgrades, p.MissionsCompleted, p.TapsPerformed, r.TapOutcome, r.Error, r.StartedMs, r.FinishedMs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (token_hint, username, level, total_taps, total_missions, runs, last_seen_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(token_hint) DO UPDATE SET
			username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE accounts.username END,
			level = COALESCE(excluded.level, accounts.level),
			total_taps = accounts.total_taps + excluded.total_taps,
			total_missions = accounts.total_missions + excluded.total_missions,
			runs = accounts.runs + 1,
			last_seen_at = excluded.last_seen_at
	`, r.TokenHint, p.Username, nullInt(p.FinalLevel), p.TapsPerformed, p.MissionsCompleted, r.FinishedMs)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListRuns 按开始时间倒序返回最近 limit 条记录。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, token_hint, username, logged_in, initial_level, final_level,
			damage_upgrades, limit_upgrades, missions_completed, taps_performed, tap_outcome, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunReport
	for rows.Next() {
		var (
			r            model.RunReport
			loggedIn     int
			initial, fin sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &r.TokenHint, &r.Progress.Username, &loggedIn, &initial, &fin,
			&r.Progress.DamageUpgrades, &r.Progress.LimitUpgrades, &r.Progress.MissionsCompleted, &r.Progress.TapsPerformed,
			&r.TapOutcome, &r.Error, &r.StartedMs, &r.FinishedMs); err != nil {
			return nil, err
		}
		r.LoggedIn = loggedIn != 0
		r.Progress.InitialLevel = intPtr(initial)
		r.Progress.FinalLevel = intPtr(fin)
		out = append(out, r)
	}
	return out, rows.Err()
}

type AccountStats struct {
	TokenHint     string `json:"tokenHint"`
	Username      string `json:"username"`
	Level         *int   `json:"level,omitempty"`
	TotalTaps     int    `json:"totalTaps"`
	TotalMissions int    `json:"totalMissions"`
	Runs          int    `json:"runs"`
	LastSeenMs    int64  `json:"lastSeenMs"`
}

func (s *Store) ListAccountStats(ctx context.Context) ([]AccountStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_hint, username, level, total_taps, total_missions, runs, last_seen_at
		FROM accounts ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountStats
	for rows.Next() {
		var (
			a     AccountStats
			level sql.NullInt64
		)
		if err := rows.Scan(&a.TokenHint, &a.Username, &level, &a.TotalTaps, &a.TotalMissions, &a.Runs, &a.LastSeenMs); err != nil {
			return nil, err
		}
		a.Level = intPtr(level)
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
