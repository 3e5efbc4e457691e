package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/persistence"
)

// TechCapacityConfigRepository implements persistence.TechCapacityConfigRepository.
type TechCapacityConfigRepository struct {
	db     DBTX
	mapper *ErrorMapper
	now    func() time.Time
}

// SaveTechCapacityConfig inserts or replaces config. Saving an active
// configuration deactivates every other one first.
func (r *TechCapacityConfigRepository) SaveTechCapacityConfig(ctx context.Context, config persistence.TechCapacityConfig) error {
	if strings.TrimSpace(config.ID) == "" || config.BlockMinutes <= 0 || config.DefaultSlotsPerBlock < 0 {
		return persistence.ErrConstraintViolation
	}
	now := r.now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now

	if config.Active {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE tech_capacity_configs SET active = 0, updated_at = ? WHERE active = 1 AND id <> ?`,
			formatTimestamp(now), config.ID,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tech_capacity_configs (id, block_minutes, default_slots_per_block, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			block_minutes = excluded.block_minutes,
			default_slots_per_block = excluded.default_slots_per_block,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		config.ID,
		config.BlockMinutes,
		config.DefaultSlotsPerBlock,
		boolToInt(config.Active),
		formatTimestamp(config.CreatedAt),
		formatTimestamp(config.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ActiveTechCapacityConfig returns the active configuration or ErrNotFound.
func (r *TechCapacityConfigRepository) ActiveTechCapacityConfig(ctx context.Context) (persistence.TechCapacityConfig, error) {
	var (
		config               persistence.TechCapacityConfig
		active               int
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, block_minutes, default_slots_per_block, active, created_at, updated_at
		FROM tech_capacity_configs
		WHERE active = 1
		LIMIT 1`).Scan(
		&config.ID,
		&config.BlockMinutes,
		&config.DefaultSlotsPerBlock,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TechCapacityConfig{}, persistence.ErrNotFound
		}
		return persistence.TechCapacityConfig{}, r.mapper.MapError(err)
	}

	config.Active = active == 1
	if config.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.TechCapacityConfig{}, err
	}
	if config.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.TechCapacityConfig{}, err
	}
	return config, nil
}
