package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Fix Plans ──────────────────────────────────────────────────────────────

// CreatePlanIfAbsent inserts a pending plan unless one already exists for
// (site, topic). The partial unique index serializes concurrent generation
// requests; the loser of the race gets the winner's plan back. Returns the
// stored plan and whether this call created it.
func (d *DB) CreatePlanIfAbsent(p domain.FixPlan) (*domain.FixPlan, bool, error) {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return nil, false, fmt.Errorf("encode plan items: %w", err)
	}

	result, err := d.db.Exec(
		`INSERT INTO fix_plans (id, site_id, topic, generated_at, expires_at,
		                        cooldown_allowed, cooldown_next_allowed, items, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')
		 ON CONFLICT (site_id, topic) WHERE status = 'pending' DO NOTHING`,
		p.ID, p.SiteID, p.Topic, p.GeneratedAt.Unix(), p.ExpiresAt.Unix(),
		boolInt(p.CooldownAllowed), unixOrZero(p.CooldownNextAllowedAt), string(items),
	)
	if err != nil {
		return nil, false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n > 0 {
		return &p, true, nil
	}

	existing, err := d.PendingPlan(p.SiteID, p.Topic)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Lost a race against a plan that just went terminal; retry once.
		return d.CreatePlanIfAbsent(p)
	}
	return existing, false, nil
}

// PendingPlan returns the pending plan for (site, topic), or nil.
func (d *DB) PendingPlan(siteID, topic string) (*domain.FixPlan, error) {
	row := d.db.QueryRow(
		planSelect+` WHERE site_id = ? AND topic = ? AND status = 'pending'`,
		siteID, topic,
	)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPlan retrieves a plan by ID.
func (d *DB) GetPlan(id string) (*domain.FixPlan, error) {
	row := d.db.QueryRow(planSelect+` WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPlanNotFound
	}
	return p, err
}

// MarkPlanExecuted transitions pending → executed. The status guard in the
// WHERE clause makes re-execution a no-op at the storage level; callers
// treat zero affected rows as an invalid state.
func (d *DB) MarkPlanExecuted(id string, executedAt time.Time, executedItems int) error {
	result, err := d.db.Exec(
		`UPDATE fix_plans SET status = 'executed', executed_at = ?, executed_items = ?
		 WHERE id = ? AND status = 'pending'`,
		executedAt.Unix(), executedItems, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// MarkPlanRejected transitions pending → rejected.
func (d *DB) MarkPlanRejected(id string) error {
	result, err := d.db.Exec(
		`UPDATE fix_plans SET status = 'rejected' WHERE id = ? AND status = 'pending'`, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ExpireStalePlans lazily invalidates pending plans past their expiry.
// Returns how many plans were expired.
func (d *DB) ExpireStalePlans(now time.Time) (int64, error) {
	result, err := d.db.Exec(
		`UPDATE fix_plans SET status = 'expired' WHERE status = 'pending' AND expires_at < ?`,
		now.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// LastExecutedAt returns when the last executed plan for (site, topic)
// ran, or the zero time when none has.
func (d *DB) LastExecutedAt(siteID, topic string) (time.Time, error) {
	var executedAt sql.NullInt64
	err := d.db.QueryRow(
		`SELECT MAX(executed_at) FROM fix_plans
		 WHERE site_id = ? AND topic = ? AND status = 'executed'`,
		siteID, topic,
	).Scan(&executedAt)
	if err != nil {
		return time.Time{}, err
	}
	if !executedAt.Valid {
		return time.Time{}, nil
	}
	return time.Unix(executedAt.Int64, 0), nil
}

const planSelect = `SELECT id, site_id, topic, generated_at, expires_at, cooldown_allowed,
                           cooldown_next_allowed, items, status, executed_at, executed_items
                    FROM fix_plans`

func scanPlan(sc rowScanner) (*domain.FixPlan, error) {
	var p domain.FixPlan
	var generatedAt, expiresAt, nextAllowed int64
	var allowed int
	var items, status string
	var executedAt sql.NullInt64
	err := sc.Scan(&p.ID, &p.SiteID, &p.Topic, &generatedAt, &expiresAt, &allowed,
		&nextAllowed, &items, &status, &executedAt, &p.ExecutedItems)
	if err != nil {
		return nil, err
	}
	p.GeneratedAt = time.Unix(generatedAt, 0)
	p.ExpiresAt = time.Unix(expiresAt, 0)
	p.CooldownAllowed = allowed != 0
	if nextAllowed > 0 {
		p.CooldownNextAllowedAt = time.Unix(nextAllowed, 0)
	}
	p.Status = domain.PlanStatus(status)
	if executedAt.Valid {
		p.ExecutedAt = time.Unix(executedAt.Int64, 0)
	}
	if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
		return nil, fmt.Errorf("decode plan items: %w", err)
	}
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
