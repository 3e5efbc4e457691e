package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
// Entries are only ever inserted.
type AuditRepository struct {
	db     DBTX
	mapper *ErrorMapper
	now    func() time.Time
}

// AppendAudit inserts a history entry.
func (r *AuditRepository) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.EventID) == "" {
		return persistence.ErrConstraintViolation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	detail := entry.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_id, action, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EventID,
		string(entry.Action),
		entry.Actor,
		string(payload),
		formatTimestamp(entry.CreatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ListAudit returns the history of an event, oldest first.
func (r *AuditRepository) ListAudit(ctx context.Context, eventID string) ([]persistence.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, action, actor, detail, created_at
		FROM audit_log
		WHERE event_id = ?
		ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var (
			entry             persistence.AuditEntry
			action            string
			detail, createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &action, &entry.Actor, &detail, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		entry.Action = persistence.AuditAction(action)
		if err := json.Unmarshal([]byte(detail), &entry.Detail); err != nil {
			return nil, fmt.Errorf("decode audit detail %s: %w", entry.ID, err)
		}
		if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}
