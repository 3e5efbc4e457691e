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

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	db     DBTX
	mapper *ErrorMapper
	now    func() time.Time
}

const eventColumns = `id, title, space_id, free_location, event_date, from_time, to_time,
	buffer_before, buffer_after, status, priority, internal, requires_tech_support,
	tech_support_mode, requires_rebooking, last_modified_by, created_at, updated_at`

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if strings.TrimSpace(event.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		nullableString(event.SpaceID),
		nullableString(event.FreeLocation),
		scheduler.FormatDate(event.Date),
		event.From.String(),
		event.To.String(),
		event.BufferBefore,
		event.BufferAfter,
		string(event.Status),
		event.Priority,
		boolToInt(event.Internal),
		boolToInt(event.RequiresTechSupport),
		emptyAsNull(string(event.TechSupportMode)),
		boolToInt(event.RequiresRebooking),
		event.LastModifiedBy,
		formatTimestamp(event.CreatedAt),
		formatTimestamp(event.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateEvent replaces every mutable column of an existing event.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = r.now()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, space_id = ?, free_location = ?, event_date = ?, from_time = ?, to_time = ?,
			buffer_before = ?, buffer_after = ?, status = ?, priority = ?, internal = ?,
			requires_tech_support = ?, tech_support_mode = ?, requires_rebooking = ?,
			last_modified_by = ?, updated_at = ?
		WHERE id = ?`,
		event.Title,
		nullableString(event.SpaceID),
		nullableString(event.FreeLocation),
		scheduler.FormatDate(event.Date),
		event.From.String(),
		event.To.String(),
		event.BufferBefore,
		event.BufferAfter,
		string(event.Status),
		event.Priority,
		boolToInt(event.Internal),
		boolToInt(event.RequiresTechSupport),
		emptyAsNull(string(event.TechSupportMode)),
		boolToInt(event.RequiresRebooking),
		event.LastModifiedBy,
		formatTimestamp(event.UpdatedAt),
		event.ID,
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

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// ListEvents returns events matching filter ordered by start time, then id.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SpaceID != "" {
		clauses = append(clauses, "space_id = ?")
		args = append(args, filter.SpaceID)
	}
	if !filter.Date.IsZero() {
		clauses = append(clauses, "event_date = ?")
		args = append(args, scheduler.FormatDate(filter.Date))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.ExcludeID != "" {
		clauses = append(clauses, "id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if filter.TechSupportOnly {
		clauses = append(clauses, "requires_tech_support = 1")
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY from_time ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                     persistence.Event
		spaceID, freeLocation     sql.NullString
		date, from, to            string
		status                    string
		internal, tech, rebooking int
		mode                      sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&spaceID,
		&freeLocation,
		&date,
		&from,
		&to,
		&event.BufferBefore,
		&event.BufferAfter,
		&status,
		&event.Priority,
		&internal,
		&tech,
		&mode,
		&rebooking,
		&event.LastModifiedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Event{}, err
	}

	event.SpaceID = stringPtr(spaceID)
	event.FreeLocation = stringPtr(freeLocation)
	event.Status = persistence.EventStatus(status)
	event.Internal = internal == 1
	event.RequiresTechSupport = tech == 1
	event.RequiresRebooking = rebooking == 1
	if mode.Valid {
		event.TechSupportMode = scheduler.TechSupportMode(mode.String)
	}
	if event.Date, event.From, event.To, err = parseDateTimes(date, from, to); err != nil {
		return persistence.Event{}, fmt.Errorf("event %s: %w", event.ID, err)
	}
	if event.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}
