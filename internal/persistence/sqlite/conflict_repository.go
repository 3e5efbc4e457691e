package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// ConflictRepository implements persistence.ConflictRepository using SQLite.
type ConflictRepository struct {
	db     DBTX
	mapper *ErrorMapper
	now    func() time.Time
}

const conflictColumns = `id, conflict_code, high_event_id, displaced_event_id, space_id,
	conflict_date, from_time, to_time, status, decision, created_by, decision_by, reason,
	created_at, closed_at`

// CreateConflict inserts a new priority conflict. A second OPEN conflict for
// the same event pair fails with ErrDuplicate.
func (r *ConflictRepository) CreateConflict(ctx context.Context, conflict persistence.PriorityConflict) error {
	if strings.TrimSpace(conflict.ID) == "" || strings.TrimSpace(conflict.Code) == "" {
		return persistence.ErrConstraintViolation
	}
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO priority_conflicts (`+conflictColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conflict.ID,
		conflict.Code,
		conflict.HighEventID,
		conflict.DisplacedEventID,
		nullableString(conflict.SpaceID),
		scheduler.FormatDate(conflict.ConflictDate),
		conflict.From.String(),
		conflict.To.String(),
		string(conflict.Status),
		emptyAsNull(string(conflict.Decision)),
		conflict.CreatedBy,
		emptyAsNull(conflict.DecisionBy),
		emptyAsNull(conflict.Reason),
		formatTimestamp(conflict.CreatedAt),
		formatNullTimestamp(conflict.ClosedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateConflict persists the decision fields of an existing conflict.
func (r *ConflictRepository) UpdateConflict(ctx context.Context, conflict persistence.PriorityConflict) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE priority_conflicts
		SET status = ?, decision = ?, decision_by = ?, reason = ?, closed_at = ?
		WHERE conflict_code = ?`,
		string(conflict.Status),
		emptyAsNull(string(conflict.Decision)),
		emptyAsNull(conflict.DecisionBy),
		emptyAsNull(conflict.Reason),
		formatNullTimestamp(conflict.ClosedAt),
		conflict.Code,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetConflictByCode retrieves a conflict by its human readable code.
func (r *ConflictRepository) GetConflictByCode(ctx context.Context, code string) (persistence.PriorityConflict, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM priority_conflicts WHERE conflict_code = ?`, code)
	return r.scanOne(row)
}

// FindOpenConflict returns the OPEN conflict for an event pair or ErrNotFound.
func (r *ConflictRepository) FindOpenConflict(ctx context.Context, highEventID, displacedEventID string) (persistence.PriorityConflict, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conflictColumns+`
		FROM priority_conflicts
		WHERE high_event_id = ? AND displaced_event_id = ? AND status = ?
		ORDER BY created_at ASC
		LIMIT 1`,
		highEventID, displacedEventID, string(persistence.ConflictStatusOpen),
	)
	return r.scanOne(row)
}

// ListConflicts returns conflicts matching filter ordered by code.
func (r *ConflictRepository) ListConflicts(ctx context.Context, filter persistence.ConflictFilter) ([]persistence.PriorityConflict, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.HighEventID != "" {
		clauses = append(clauses, "high_event_id = ?")
		args = append(args, filter.HighEventID)
	}
	if filter.DisplacedEventID != "" {
		clauses = append(clauses, "displaced_event_id = ?")
		args = append(args, filter.DisplacedEventID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + conflictColumns + ` FROM priority_conflicts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY conflict_code ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var conflicts []persistence.PriorityConflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return conflicts, nil
}

// CountConflictCodes counts conflicts whose code starts with prefix.
func (r *ConflictRepository) CountConflictCodes(ctx context.Context, prefix string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM priority_conflicts WHERE substr(conflict_code, 1, ?) = ?`,
		len(prefix), prefix,
	).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func (r *ConflictRepository) scanOne(row *sql.Row) (persistence.PriorityConflict, error) {
	conflict, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.PriorityConflict{}, persistence.ErrNotFound
		}
		return persistence.PriorityConflict{}, r.mapper.MapError(err)
	}
	return conflict, nil
}

func scanConflict(row rowScanner) (persistence.PriorityConflict, error) {
	var (
		conflict                     persistence.PriorityConflict
		spaceID                      sql.NullString
		date, from, to, status       string
		decision, decisionBy, reason sql.NullString
		createdAt                    string
		closedAt                     sql.NullString
	)
	err := row.Scan(
		&conflict.ID,
		&conflict.Code,
		&conflict.HighEventID,
		&conflict.DisplacedEventID,
		&spaceID,
		&date,
		&from,
		&to,
		&status,
		&decision,
		&conflict.CreatedBy,
		&decisionBy,
		&reason,
		&createdAt,
		&closedAt,
	)
	if err != nil {
		return persistence.PriorityConflict{}, err
	}

	conflict.SpaceID = stringPtr(spaceID)
	conflict.Status = persistence.ConflictStatus(status)
	conflict.Decision = persistence.ConflictDecision(decision.String)
	conflict.DecisionBy = decisionBy.String
	conflict.Reason = reason.String
	if conflict.ConflictDate, conflict.From, conflict.To, err = parseDateTimes(date, from, to); err != nil {
		return persistence.PriorityConflict{}, fmt.Errorf("conflict %s: %w", conflict.Code, err)
	}
	if conflict.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.PriorityConflict{}, err
	}
	if conflict.ClosedAt, err = parseNullTimestamp(closedAt); err != nil {
		return persistence.PriorityConflict{}, err
	}
	return conflict, nil
}
