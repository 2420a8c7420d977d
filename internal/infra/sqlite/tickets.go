package sqlite

import (
	"database/sql"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Tickets ────────────────────────────────────────────────────────────────

// CreateOrRefreshTicket inserts a ticket unless an open ticket with the same
// (site, fingerprint) already exists, in which case it refreshes that
// ticket's last-seen evidence instead. The partial unique index makes the
// check-and-insert atomic even across concurrent runs. Returns true when a
// new ticket was created.
func (d *DB) CreateOrRefreshTicket(t domain.Ticket) (bool, error) {
	result, err := d.db.Exec(
		`INSERT INTO tickets (id, run_id, site_id, hypothesis_key, fingerprint, issue_type,
		                      target, title, priority, status, owner, evidence, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (site_id, fingerprint) WHERE status = 'open' DO NOTHING`,
		t.ID, t.RunID, t.SiteID, t.HypothesisKey, t.Fingerprint, t.IssueType,
		t.Target, t.Title, string(t.Priority), string(t.Status), t.Owner, t.Evidence,
		t.CreatedAt.Unix(), t.LastSeenAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Duplicate of an open ticket: refresh its evidence trail.
	_, err = d.db.Exec(
		`UPDATE tickets SET last_seen_at = ?, evidence = ?
		 WHERE site_id = ? AND fingerprint = ? AND status = 'open'`,
		t.LastSeenAt.Unix(), t.Evidence, t.SiteID, t.Fingerprint,
	)
	return false, err
}

// GetTicket retrieves a ticket by ID.
func (d *DB) GetTicket(id string) (*domain.Ticket, error) {
	row := d.db.QueryRow(
		`SELECT id, run_id, site_id, hypothesis_key, fingerprint, issue_type, target,
		        title, priority, status, owner, evidence, created_at, last_seen_at
		 FROM tickets WHERE id = ?`, id,
	)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTicketNotFound
	}
	return t, err
}

// ListTickets returns tickets for a site, optionally filtered by status,
// newest last-seen first.
func (d *DB) ListTickets(siteID string, status domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	query := `SELECT id, run_id, site_id, hypothesis_key, fingerprint, issue_type, target,
	                 title, priority, status, owner, evidence, created_at, last_seen_at
	          FROM tickets WHERE site_id = ?`
	args := []any{siteID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY last_seen_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// UpdateTicketStatus applies the one external mutation tickets allow.
func (d *DB) UpdateTicketStatus(id string, status domain.TicketStatus, owner string) error {
	result, err := d.db.Exec(
		`UPDATE tickets SET status = ?, owner = ? WHERE id = ?`,
		string(status), owner, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

// OpenTicketByFingerprint returns the open ticket for (site, fingerprint),
// or nil when none exists.
func (d *DB) OpenTicketByFingerprint(siteID, fingerprint string) (*domain.Ticket, error) {
	row := d.db.QueryRow(
		`SELECT id, run_id, site_id, hypothesis_key, fingerprint, issue_type, target,
		        title, priority, status, owner, evidence, created_at, last_seen_at
		 FROM tickets WHERE site_id = ? AND fingerprint = ? AND status = 'open'`,
		siteID, fingerprint,
	)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// OpenTicketsForTopic returns open tickets whose hypothesis matches the
// given topic, highest priority first. Fix-plan generation derives its
// items from these.
func (d *DB) OpenTicketsForTopic(siteID, topic string) ([]domain.Ticket, error) {
	rows, err := d.db.Query(
		`SELECT id, run_id, site_id, hypothesis_key, fingerprint, issue_type, target,
		        title, priority, status, owner, evidence, created_at, last_seen_at
		 FROM tickets WHERE site_id = ? AND hypothesis_key = ? AND status = 'open'
		 ORDER BY priority ASC, last_seen_at DESC`,
		siteID, topic,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func scanTicket(sc rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var priority, status string
	var createdAt, lastSeenAt int64
	err := sc.Scan(&t.ID, &t.RunID, &t.SiteID, &t.HypothesisKey, &t.Fingerprint,
		&t.IssueType, &t.Target, &t.Title, &priority, &status, &t.Owner, &t.Evidence,
		&createdAt, &lastSeenAt)
	if err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.TicketStatus(status)
	t.CreatedAt = time.Unix(createdAt, 0)
	t.LastSeenAt = time.Unix(lastSeenAt, 0)
	return &t, nil
}
