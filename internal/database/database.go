// Package database defines the storage contracts and persisted document
// types shared by the clustering engine, the detection worker and the
// indexing supervisor. Implementations live in the postgres and memory
// subpackages.
package database

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned when another indexing run already holds the
// per-tenant advisory lock.
var ErrLocked = errors.New("another indexing run is already active for this tenant")

// StoredFace represents a single detected face stored for a photo.
type StoredFace struct {
	ID        int64
	Tenant    string
	PhotoUID  string
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2]
	DetScore  float64
	Dim       int
	CreatedAt time.Time
}

// BacklogItem is one photo queued for face detection.
type BacklogItem struct {
	PhotoUID string
	Path     string
	Failures int
}

// PersonLabel holds the durable user state for one cluster key. It is
// only written through explicit user actions and centroid auto-assignment,
// never by a clustering run rebuilding its ephemeral groups.
type PersonLabel struct {
	Name             string   `json:"name,omitempty"`
	Hidden           bool     `json:"hidden,omitempty"`
	ConfirmedPhotos  []string `json:"confirmed_photos,omitempty"`
	ProfilePhotoUID  string   `json:"profile_photo_uid,omitempty"`
	RotationOverride int      `json:"rotation_override,omitempty"`
	MergedInto       string   `json:"merged_into,omitempty"`
}

// Clone returns a deep copy of the label.
func (l *PersonLabel) Clone() *PersonLabel {
	if l == nil {
		return nil
	}
	c := *l
	c.ConfirmedPhotos = append([]string(nil), l.ConfirmedPhotos...)
	return &c
}

// LabelDoc is the per-tenant label document, keyed by cluster key.
type LabelDoc map[string]*PersonLabel

// Clone returns a deep copy of the document.
func (d LabelDoc) Clone() LabelDoc {
	out := make(LabelDoc, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// Exclusion records that a photo must never appear in a cluster again,
// regardless of what the distance math says.
type Exclusion struct {
	ClusterKey string
	PhotoUID   string
}

// Snapshot is the per-tenant record of the last reconciled membership,
// keyed by cluster key. Cluster keys survive across runs only through
// this overlap record; ephemeral cluster ids do not.
type Snapshot map[string][]string

// Checkpoint is the single progress document a detection worker
// overwrites after every item.
type Checkpoint struct {
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	FacesFound   int       `json:"faces_found"`
	CurrentPhoto string    `json:"current_photo,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ControlState is the cooperative run state for a tenant. Workers poll
// it once per item boundary; nothing is interrupted mid-item.
type ControlState string

const (
	ControlIdle     ControlState = "idle"
	ControlRunning  ControlState = "running"
	ControlPaused   ControlState = "paused"
	ControlStopping ControlState = "stopping"
)

// FaceReader provides read access to stored faces.
type FaceReader interface {
	AllFaces(ctx context.Context, tenant string) ([]StoredFace, error)
	GetFaces(ctx context.Context, tenant, photoUID string) ([]StoredFace, error)
	CountFaces(ctx context.Context, tenant string) (int, error)
}

// FaceWriter stores detection results. ReplaceFaces has replace
// semantics: previous rows for the photo are dropped first, so a re-run
// never duplicates faces.
type FaceWriter interface {
	ReplaceFaces(ctx context.Context, tenant, photoUID string, faces []StoredFace) error
}

// BacklogStore is the durable detection queue. Attempted and failure
// markers must survive process crashes; they are what make the worker
// resumable.
type BacklogStore interface {
	Enqueue(ctx context.Context, tenant string, items []BacklogItem) error
	Unattempted(ctx context.Context, tenant string) ([]BacklogItem, error)
	MarkAttempted(ctx context.Context, tenant, photoUID string) error
	// RecordFailure increments the durable failure counter for the photo
	// and returns the new count.
	RecordFailure(ctx context.Context, tenant, photoUID string) (int, error)
	Counts(ctx context.Context, tenant string) (attempted, total int, err error)
}

// LabelStore persists the per-tenant label document.
type LabelStore interface {
	Labels(ctx context.Context, tenant string) (LabelDoc, error)
	SaveLabels(ctx context.Context, tenant string, doc LabelDoc) error
}

// ExclusionStore persists cluster exclusions.
type ExclusionStore interface {
	Exclusions(ctx context.Context, tenant string) ([]Exclusion, error)
	AddExclusion(ctx context.Context, tenant, clusterKey, photoUID string) error
}

// SnapshotStore persists the last reconciled membership per tenant.
type SnapshotStore interface {
	Snapshot(ctx context.Context, tenant string) (Snapshot, error)
	SaveSnapshot(ctx context.Context, tenant string, snap Snapshot) error
}

// CheckpointStore persists the single worker progress row per tenant.
type CheckpointStore interface {
	WriteCheckpoint(ctx context.Context, tenant string, cp Checkpoint) error
	ReadCheckpoint(ctx context.Context, tenant string) (Checkpoint, error)
}

// ControlStore persists the cooperative run state per tenant.
type ControlStore interface {
	Control(ctx context.Context, tenant string) (ControlState, error)
	SetControl(ctx context.Context, tenant string, state ControlState) error
}
