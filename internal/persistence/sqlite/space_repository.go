package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
)

// SpaceRepository implements persistence.SpaceRepository using SQLite.
type SpaceRepository struct {
	db     DBTX
	mapper *ErrorMapper
	now    func() time.Time
}

// CreateSpace inserts a new space.
func (r *SpaceRepository) CreateSpace(ctx context.Context, space persistence.Space) error {
	if strings.TrimSpace(space.ID) == "" || space.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}
	if space.CreatedAt.IsZero() {
		space.CreatedAt = r.now()
	}
	if space.UpdatedAt.IsZero() {
		space.UpdatedAt = space.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, capacity, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		space.ID,
		space.Name,
		space.Capacity,
		boolToInt(space.Active),
		formatTimestamp(space.CreatedAt),
		formatTimestamp(space.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetSpace retrieves a space by ID.
func (r *SpaceRepository) GetSpace(ctx context.Context, id string) (persistence.Space, error) {
	if id == "" {
		return persistence.Space{}, persistence.ErrNotFound
	}

	var (
		space                persistence.Space
		active               int
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, capacity, active, created_at, updated_at
		FROM spaces
		WHERE id = ?`, id).Scan(
		&space.ID,
		&space.Name,
		&space.Capacity,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Space{}, persistence.ErrNotFound
		}
		return persistence.Space{}, r.mapper.MapError(err)
	}

	space.Active = active == 1
	if space.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Space{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if space.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Space{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return space, nil
}
