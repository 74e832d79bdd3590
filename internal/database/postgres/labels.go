package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-engine/internal/database"
)

// LabelRepository persists the per-tenant label document as one jsonb
// row. The whole document travels together; callers read, modify and
// write it back.
type LabelRepository struct {
	pool *Pool
}

var _ database.LabelStore = (*LabelRepository)(nil)

// NewLabelRepository creates a label repository backed by the pool.
func NewLabelRepository(pool *Pool) *LabelRepository {
	return &LabelRepository{pool: pool}
}

// Labels returns the tenant's label document, empty when none exists.
func (r *LabelRepository) Labels(ctx context.Context, tenant string) (database.LabelDoc, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, "SELECT doc FROM people_labels WHERE tenant = $1", tenant).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return database.LabelDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}

	var doc database.LabelDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		// a malformed document is skipped, not fatal: labels resume from
		// empty instead of wedging every rebuild
		log.Printf("[STORAGE] unreadable label document for tenant %s, treating as empty: %v", tenant, err)
		return database.LabelDoc{}, nil
	}
	if doc == nil {
		doc = database.LabelDoc{}
	}
	return doc, nil
}

// SaveLabels replaces the tenant's label document.
func (r *LabelRepository) SaveLabels(ctx context.Context, tenant string, doc database.LabelDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding label document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO people_labels (tenant, doc)
		VALUES ($1, $2)
		ON CONFLICT (tenant) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, tenant, raw)
	if err != nil {
		return fmt.Errorf("saving labels: %w", err)
	}
	return nil
}

// ExclusionRepository persists cluster exclusions.
type ExclusionRepository struct {
	pool *Pool
}

var _ database.ExclusionStore = (*ExclusionRepository)(nil)

// NewExclusionRepository creates an exclusion repository backed by the pool.
func NewExclusionRepository(pool *Pool) *ExclusionRepository {
	return &ExclusionRepository{pool: pool}
}

// Exclusions returns all exclusions for the tenant in insertion order.
func (r *ExclusionRepository) Exclusions(ctx context.Context, tenant string) ([]database.Exclusion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cluster_key, photo_uid
		FROM face_exclusions
		WHERE tenant = $1
		ORDER BY id
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying exclusions: %w", err)
	}
	defer rows.Close()

	var excls []database.Exclusion
	for rows.Next() {
		var ex database.Exclusion
		if err := rows.Scan(&ex.ClusterKey, &ex.PhotoUID); err != nil {
			return nil, fmt.Errorf("scanning exclusion row: %w", err)
		}
		excls = append(excls, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exclusions: %w", err)
	}
	return excls, nil
}

// AddExclusion records an exclusion; duplicates are ignored.
func (r *ExclusionRepository) AddExclusion(ctx context.Context, tenant, clusterKey, photoUID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_exclusions (tenant, cluster_key, photo_uid)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant, cluster_key, photo_uid) DO NOTHING
	`, tenant, clusterKey, photoUID)
	if err != nil {
		return fmt.Errorf("adding exclusion: %w", err)
	}
	return nil
}

// SnapshotRepository persists the last reconciled cluster membership as
// one jsonb row per tenant.
type SnapshotRepository struct {
	pool *Pool
}

var _ database.SnapshotStore = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a snapshot repository backed by the pool.
func NewSnapshotRepository(pool *Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Snapshot returns the tenant's last membership snapshot, empty when
// none exists.
func (r *SnapshotRepository) Snapshot(ctx context.Context, tenant string) (database.Snapshot, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, "SELECT doc FROM cluster_snapshots WHERE tenant = $1", tenant).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	var snap database.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("[STORAGE] unreadable snapshot document for tenant %s, treating as empty: %v", tenant, err)
		return database.Snapshot{}, nil
	}
	if snap == nil {
		snap = database.Snapshot{}
	}
	return snap, nil
}

// SaveSnapshot replaces the tenant's membership snapshot.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, tenant string, snap database.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO cluster_snapshots (tenant, doc)
		VALUES ($1, $2)
		ON CONFLICT (tenant) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, tenant, raw)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}
