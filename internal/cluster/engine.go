package cluster

import (
	"context"
	"fmt"
	"log"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database"
)

// Engine rebuilds identity clusters from stored faces and applies label
// mutations. It owns no caches; every rebuild starts from the stores, so
// two rebuilds over unchanged data produce identical output.
type Engine struct {
	faces      database.FaceReader
	labels     database.LabelStore
	exclusions database.ExclusionStore
	snapshots  database.SnapshotStore
	thresholds config.Thresholds
}

func NewEngine(
	faces database.FaceReader,
	labels database.LabelStore,
	exclusions database.ExclusionStore,
	snapshots database.SnapshotStore,
	thresholds config.Thresholds,
) *Engine {
	return &Engine{
		faces:      faces,
		labels:     labels,
		exclusions: exclusions,
		snapshots:  snapshots,
		thresholds: thresholds,
	}
}

// Rebuild recomputes all clusters from scratch: load faces, group them
// at the feedback-selected threshold, match the groups to stable cluster
// keys, overlay confirmations and exclusions, and persist the new
// snapshot. Labels are written back only when reconciliation itself
// changed them (auto-assignment or auto-hide).
func (e *Engine) Rebuild(ctx context.Context, tenant string) ([]Person, error) {
	faces, err := e.faces.AllFaces(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading faces: %w", err)
	}

	valid, skipped := filterFaces(faces)
	if skipped > 0 {
		log.Printf("[CLUSTERING] skipped %d faces with missing or mismatched embeddings", skipped)
	}

	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}
	excls, err := e.exclusions.Exclusions(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading exclusions: %w", err)
	}
	prev, err := e.snapshots.Snapshot(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	fb := feedbackFrom(doc, excls)
	tau := SelectThreshold(e.thresholds, fb)

	normalized := make([][]float32, len(valid))
	for i := range valid {
		normalized[i] = Normalize(valid[i].Embedding)
	}
	groups := GroupIndices(normalized, tau)
	log.Printf("[CLUSTERING] %d faces -> %d raw clusters at threshold %.2f", len(valid), len(groups), tau)

	persons, newDoc, snap, docChanged := e.reconcile(valid, normalized, groups, doc, excls, prev)

	if docChanged {
		if err := e.labels.SaveLabels(ctx, tenant, newDoc); err != nil {
			return nil, fmt.Errorf("saving labels: %w", err)
		}
	}
	if err := e.snapshots.SaveSnapshot(ctx, tenant, snap); err != nil {
		return nil, fmt.Errorf("saving cluster snapshot: %w", err)
	}

	return persons, nil
}

// Recluster runs a full rebuild and discards the result. Workers and
// the supervisor use it to refresh derived state at process boundaries.
func (e *Engine) Recluster(ctx context.Context, tenant string) error {
	_, err := e.Rebuild(ctx, tenant)
	return err
}

// feedbackFrom derives the threshold-selection signal from durable user
// state.
func feedbackFrom(doc database.LabelDoc, excls []database.Exclusion) Feedback {
	var fb Feedback
	for _, label := range doc {
		if len(label.ConfirmedPhotos) > 0 {
			fb.HasConfirmations = true
			break
		}
	}
	fb.HasExclusions = len(excls) > 0
	return fb
}
