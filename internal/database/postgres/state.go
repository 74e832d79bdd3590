package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-engine/internal/database"
)

// CheckpointRepository keeps exactly one progress row per tenant; every
// write overwrites the previous one.
type CheckpointRepository struct {
	pool *Pool
}

var _ database.CheckpointStore = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a checkpoint repository backed by the pool.
func NewCheckpointRepository(pool *Pool) *CheckpointRepository {
	return &CheckpointRepository{pool: pool}
}

// WriteCheckpoint overwrites the tenant's progress row.
func (r *CheckpointRepository) WriteCheckpoint(ctx context.Context, tenant string, cp database.Checkpoint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO detection_checkpoints (tenant, processed, total, faces_found, current_photo, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant) DO UPDATE SET
			processed = EXCLUDED.processed,
			total = EXCLUDED.total,
			faces_found = EXCLUDED.faces_found,
			current_photo = EXCLUDED.current_photo,
			updated_at = EXCLUDED.updated_at
	`, tenant, cp.Processed, cp.Total, cp.FacesFound, cp.CurrentPhoto, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint returns the tenant's progress row, zero when none
// exists.
func (r *CheckpointRepository) ReadCheckpoint(ctx context.Context, tenant string) (database.Checkpoint, error) {
	var cp database.Checkpoint
	err := r.pool.QueryRow(ctx, `
		SELECT processed, total, faces_found, current_photo, updated_at
		FROM detection_checkpoints
		WHERE tenant = $1
	`, tenant).Scan(&cp.Processed, &cp.Total, &cp.FacesFound, &cp.CurrentPhoto, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Checkpoint{}, nil
	}
	if err != nil {
		return database.Checkpoint{}, fmt.Errorf("reading checkpoint: %w", err)
	}
	return cp, nil
}

// ControlRepository persists the cooperative run state per tenant.
type ControlRepository struct {
	pool *Pool
}

var _ database.ControlStore = (*ControlRepository)(nil)

// NewControlRepository creates a control repository backed by the pool.
func NewControlRepository(pool *Pool) *ControlRepository {
	return &ControlRepository{pool: pool}
}

// Control returns the tenant's run state, idle when none is stored.
func (r *ControlRepository) Control(ctx context.Context, tenant string) (database.ControlState, error) {
	var state string
	err := r.pool.QueryRow(ctx, "SELECT state FROM run_control WHERE tenant = $1", tenant).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ControlIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading control state: %w", err)
	}
	return database.ControlState(state), nil
}

// SetControl stores the tenant's run state.
func (r *ControlRepository) SetControl(ctx context.Context, tenant string, state database.ControlState) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO run_control (tenant, state)
		VALUES ($1, $2)
		ON CONFLICT (tenant) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, tenant, string(state))
	if err != nil {
		return fmt.Errorf("setting control state: %w", err)
	}
	return nil
}
