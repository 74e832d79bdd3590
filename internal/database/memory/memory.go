// Package memory provides in-memory implementations of the database
// interfaces for testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/face-engine/internal/database"
)

// Store implements every storage interface with maps behind one mutex.
// All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	faces       map[string][]database.StoredFace // tenant -> faces
	backlog     map[string][]*database.BacklogItem
	attempted   map[string]map[string]bool // tenant -> photoUID -> attempted
	labels      map[string]database.LabelDoc
	exclusions  map[string][]database.Exclusion
	snapshots   map[string]database.Snapshot
	checkpoints map[string]database.Checkpoint
	control     map[string]database.ControlState

	// Error injection
	AllFacesError   error
	SaveLabelsError error
}

// interface compliance
var (
	_ database.FaceReader      = (*Store)(nil)
	_ database.FaceWriter      = (*Store)(nil)
	_ database.BacklogStore    = (*Store)(nil)
	_ database.LabelStore      = (*Store)(nil)
	_ database.ExclusionStore  = (*Store)(nil)
	_ database.SnapshotStore   = (*Store)(nil)
	_ database.CheckpointStore = (*Store)(nil)
	_ database.ControlStore    = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		faces:       make(map[string][]database.StoredFace),
		backlog:     make(map[string][]*database.BacklogItem),
		attempted:   make(map[string]map[string]bool),
		labels:      make(map[string]database.LabelDoc),
		exclusions:  make(map[string][]database.Exclusion),
		snapshots:   make(map[string]database.Snapshot),
		checkpoints: make(map[string]database.Checkpoint),
		control:     make(map[string]database.ControlState),
	}
}

// AllFaces returns every stored face for the tenant, ordered by photo
// UID and face index.
func (s *Store) AllFaces(ctx context.Context, tenant string) ([]database.StoredFace, error) {
	if s.AllFacesError != nil {
		return nil, s.AllFacesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]database.StoredFace(nil), s.faces[tenant]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PhotoUID != out[j].PhotoUID {
			return out[i].PhotoUID < out[j].PhotoUID
		}
		return out[i].FaceIndex < out[j].FaceIndex
	})
	return out, nil
}

// GetFaces returns the stored faces for a single photo.
func (s *Store) GetFaces(ctx context.Context, tenant, photoUID string) ([]database.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.StoredFace
	for _, f := range s.faces[tenant] {
		if f.PhotoUID == photoUID {
			out = append(out, f)
		}
	}
	return out, nil
}

// CountFaces returns the number of stored faces for the tenant.
func (s *Store) CountFaces(ctx context.Context, tenant string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.faces[tenant]), nil
}

// ReplaceFaces drops the photo's previous rows and stores the new ones.
func (s *Store) ReplaceFaces(ctx context.Context, tenant, photoUID string, faces []database.StoredFace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.faces[tenant][:0]
	for _, f := range s.faces[tenant] {
		if f.PhotoUID != photoUID {
			kept = append(kept, f)
		}
	}
	s.faces[tenant] = append(kept, faces...)
	return nil
}

// Enqueue adds items to the backlog, skipping photo UIDs already queued.
func (s *Store) Enqueue(ctx context.Context, tenant string, items []database.BacklogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]bool, len(s.backlog[tenant]))
	for _, it := range s.backlog[tenant] {
		known[it.PhotoUID] = true
	}
	for _, it := range items {
		if !known[it.PhotoUID] {
			item := it
			s.backlog[tenant] = append(s.backlog[tenant], &item)
			known[it.PhotoUID] = true
		}
	}
	return nil
}

// Unattempted returns backlog items not yet marked attempted, in
// enqueue order.
func (s *Store) Unattempted(ctx context.Context, tenant string) ([]database.BacklogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.BacklogItem
	for _, it := range s.backlog[tenant] {
		if !s.attempted[tenant][it.PhotoUID] {
			out = append(out, *it)
		}
	}
	return out, nil
}

// MarkAttempted durably marks a backlog item as attempted.
func (s *Store) MarkAttempted(ctx context.Context, tenant, photoUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempted[tenant] == nil {
		s.attempted[tenant] = make(map[string]bool)
	}
	s.attempted[tenant][photoUID] = true
	return nil
}

// RecordFailure increments the durable failure counter for a photo.
func (s *Store) RecordFailure(ctx context.Context, tenant, photoUID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.backlog[tenant] {
		if it.PhotoUID == photoUID {
			it.Failures++
			return it.Failures, nil
		}
	}
	return 0, nil
}

// Counts returns how many backlog items are attempted and how many
// exist in total.
func (s *Store) Counts(ctx context.Context, tenant string) (attempted, total int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total = len(s.backlog[tenant])
	for _, it := range s.backlog[tenant] {
		if s.attempted[tenant][it.PhotoUID] {
			attempted++
		}
	}
	return attempted, total, nil
}

// Labels returns a copy of the tenant's label document.
func (s *Store) Labels(ctx context.Context, tenant string) (database.LabelDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.labels[tenant]
	if doc == nil {
		return database.LabelDoc{}, nil
	}
	return doc.Clone(), nil
}

// SaveLabels replaces the tenant's label document.
func (s *Store) SaveLabels(ctx context.Context, tenant string, doc database.LabelDoc) error {
	if s.SaveLabelsError != nil {
		return s.SaveLabelsError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[tenant] = doc.Clone()
	return nil
}

// Exclusions returns all exclusions for the tenant.
func (s *Store) Exclusions(ctx context.Context, tenant string) ([]database.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]database.Exclusion(nil), s.exclusions[tenant]...), nil
}

// AddExclusion records an exclusion, ignoring duplicates.
func (s *Store) AddExclusion(ctx context.Context, tenant, clusterKey, photoUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.exclusions[tenant] {
		if ex.ClusterKey == clusterKey && ex.PhotoUID == photoUID {
			return nil
		}
	}
	s.exclusions[tenant] = append(s.exclusions[tenant], database.Exclusion{
		ClusterKey: clusterKey,
		PhotoUID:   photoUID,
	})
	return nil
}

// Snapshot returns the tenant's last reconciled membership.
func (s *Store) Snapshot(ctx context.Context, tenant string) (database.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(database.Snapshot, len(s.snapshots[tenant]))
	for k, v := range s.snapshots[tenant] {
		snap[k] = append([]string(nil), v...)
	}
	return snap, nil
}

// SaveSnapshot replaces the tenant's membership snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, tenant string, snap database.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(database.Snapshot, len(snap))
	for k, v := range snap {
		copied[k] = append([]string(nil), v...)
	}
	s.snapshots[tenant] = copied
	return nil
}

// WriteCheckpoint overwrites the tenant's progress row.
func (s *Store) WriteCheckpoint(ctx context.Context, tenant string, cp database.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[tenant] = cp
	return nil
}

// ReadCheckpoint returns the tenant's progress row.
func (s *Store) ReadCheckpoint(ctx context.Context, tenant string) (database.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[tenant], nil
}

// Control returns the tenant's run state, defaulting to idle.
func (s *Store) Control(ctx context.Context, tenant string) (database.ControlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.control[tenant]; ok {
		return st, nil
	}
	return database.ControlIdle, nil
}

// SetControl stores the tenant's run state.
func (s *Store) SetControl(ctx context.Context, tenant string, state database.ControlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.control[tenant] = state
	return nil
}

// Locker is an in-memory stand-in for the per-tenant advisory lock.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocker creates an unlocked Locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]bool)}
}

// Acquire takes the tenant's lock or returns database.ErrLocked.
func (l *Locker) Acquire(ctx context.Context, tenant string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tenant] {
		return nil, database.ErrLocked
	}
	l.held[tenant] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, tenant)
	}, nil
}
