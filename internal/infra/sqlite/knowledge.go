package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Knowledge Store ────────────────────────────────────────────────────────
// The DB is the default domain.KnowledgeStore implementation. Entries are
// append-only: there is no update or delete path.

// Write appends a knowledge entry and returns its ID.
func (d *DB) Write(ctx context.Context, e domain.KnowledgeEntry) (int64, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (site_id, type, topic, title, evidence, decision, outcome, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SiteID, string(e.Type), e.Topic, e.Title, e.Evidence, e.Decision, e.Outcome,
		strings.Join(e.Tags, ","), createdAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Query returns prior entries for a site, newest first. Empty topic or
// types match everything.
func (d *DB) Query(ctx context.Context, siteID, topic string, types []domain.KnowledgeType, limit int) ([]domain.KnowledgeEntry, error) {
	query := `SELECT id, site_id, type, topic, title, evidence, decision, outcome, tags, created_at
	          FROM knowledge_entries WHERE site_id = ?`
	args := []any{siteID}
	if topic != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += ` AND type IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.KnowledgeEntry
	for rows.Next() {
		var e domain.KnowledgeEntry
		var entryType, tags string
		var createdAt int64
		err := rows.Scan(&e.ID, &e.SiteID, &entryType, &e.Topic, &e.Title,
			&e.Evidence, &e.Decision, &e.Outcome, &tags, &createdAt)
		if err != nil {
			return nil, err
		}
		e.Type = domain.KnowledgeType(entryType)
		if tags != "" {
			e.Tags = strings.Split(tags, ",")
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
