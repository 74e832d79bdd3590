package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-engine/internal/database"
)

// BacklogRepository is the durable detection queue. The attempted flag
// and failure counter must survive worker crashes; everything resumable
// about the worker hangs off these two columns.
type BacklogRepository struct {
	pool *Pool
}

var _ database.BacklogStore = (*BacklogRepository)(nil)

// NewBacklogRepository creates a backlog repository backed by the pool.
func NewBacklogRepository(pool *Pool) *BacklogRepository {
	return &BacklogRepository{pool: pool}
}

// Enqueue adds photos to the backlog; already-queued photos are left
// untouched so re-scans never reset progress.
func (r *BacklogRepository) Enqueue(ctx context.Context, tenant string, items []database.BacklogItem) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO detection_backlog (tenant, photo_uid, path)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant, photo_uid) DO NOTHING
		`, tenant, it.PhotoUID, it.Path)
		if err != nil {
			return fmt.Errorf("enqueueing %s: %w", it.PhotoUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing backlog: %w", err)
	}
	return nil
}

// Unattempted returns items not yet attempted, oldest first.
func (r *BacklogRepository) Unattempted(ctx context.Context, tenant string) ([]database.BacklogItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT photo_uid, path, failures
		FROM detection_backlog
		WHERE tenant = $1 AND NOT attempted
		ORDER BY created_at, photo_uid
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying backlog: %w", err)
	}
	defer rows.Close()

	var items []database.BacklogItem
	for rows.Next() {
		var it database.BacklogItem
		if err := rows.Scan(&it.PhotoUID, &it.Path, &it.Failures); err != nil {
			return nil, fmt.Errorf("scanning backlog row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backlog: %w", err)
	}
	return items, nil
}

// MarkAttempted durably marks a photo as attempted.
func (r *BacklogRepository) MarkAttempted(ctx context.Context, tenant, photoUID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE detection_backlog
		SET attempted = TRUE, updated_at = NOW()
		WHERE tenant = $1 AND photo_uid = $2
	`, tenant, photoUID)
	if err != nil {
		return fmt.Errorf("marking %s attempted: %w", photoUID, err)
	}
	return nil
}

// RecordFailure increments the photo's failure counter and returns the
// new count.
func (r *BacklogRepository) RecordFailure(ctx context.Context, tenant, photoUID string) (int, error) {
	var failures int
	err := r.pool.QueryRow(ctx, `
		UPDATE detection_backlog
		SET failures = failures + 1, updated_at = NOW()
		WHERE tenant = $1 AND photo_uid = $2
		RETURNING failures
	`, tenant, photoUID).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("recording failure for %s: %w", photoUID, err)
	}
	return failures, nil
}

// Counts returns how many backlog items are attempted and the total.
func (r *BacklogRepository) Counts(ctx context.Context, tenant string) (attempted, total int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE attempted), COUNT(*)
		FROM detection_backlog
		WHERE tenant = $1
	`, tenant).Scan(&attempted, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("counting backlog: %w", err)
	}
	return attempted, total, nil
}
