package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genline/internal/domain"
)

// SQLite persists plans and their alias keys in the workspace database so
// plans survive restarts. The plans table is bounded by MaxPlans; the least
// recently written plans are dropped first and their aliases cascade.
type SQLite struct {
	DB       *sql.DB
	MaxPlans int
	Now      func() time.Time
}

func (s SQLite) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s SQLite) Put(ctx context.Context, key string, p *domain.Plan) error {
	if key == "" || p == nil || p.ID == "" {
		return fmt.Errorf("put plan: key and plan id are required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var prev string
	err = tx.QueryRowContext(ctx, `SELECT plan_id FROM plan_aliases WHERE key=?`, key).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO plans(id,capability,status,payload_json,created_at,expires_at,touched_at) VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET capability=excluded.capability, status=excluded.status, payload_json=excluded.payload_json,
		expires_at=excluded.expires_at, touched_at=excluded.touched_at`,
		p.ID, p.Capability, string(p.Status), string(payload), formatTime(p.CreatedAt), formatTime(p.ExpiresAt), formatTime(s.now())); err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO plan_aliases(key,plan_id) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET plan_id=excluded.plan_id`, key, p.ID); err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	if prev != "" && prev != p.ID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id=? AND NOT EXISTS (SELECT 1 FROM plan_aliases WHERE plan_id=?)`, prev, prev); err != nil {
			return fmt.Errorf("drop orphaned plan: %w", err)
		}
	}
	if s.MaxPlans > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id IN (SELECT id FROM plans ORDER BY touched_at DESC, id DESC LIMIT -1 OFFSET ?)`, s.MaxPlans); err != nil {
			return fmt.Errorf("evict plans: %w", err)
		}
	}
	return tx.Commit()
}

func (s SQLite) Get(ctx context.Context, key string) (*domain.Plan, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT p.payload_json FROM plan_aliases a JOIN plans p ON p.id=a.plan_id WHERE a.key=?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p domain.Plan
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode plan for %s: %w", key, err)
	}
	return &p, nil
}

func (s SQLite) Keys(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, `SELECT key FROM plan_aliases ORDER BY key`)
}

func (s SQLite) AliasesOf(ctx context.Context, planID string) ([]string, error) {
	return s.listKeys(ctx, `SELECT key FROM plan_aliases WHERE plan_id=? ORDER BY key`, planID)
}

func (s SQLite) listKeys(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s SQLite) RemoveAllAliasesOf(ctx context.Context, p *domain.Plan) (int, error) {
	if p == nil {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM plan_aliases WHERE plan_id=?`, p.ID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id=?`, p.ID); err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

// Close is a no-op; the connection belongs to the caller.
func (s SQLite) Close() error { return nil }

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
