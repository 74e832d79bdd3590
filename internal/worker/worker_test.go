package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/memory"
	"github.com/kozaktomas/face-engine/internal/detector"
)

const testTenant = "test"

type fakeDetector struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string][]detector.Detection
	errs    map[string]error
	delays  map[string]time.Duration
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{
		calls:   make(map[string]int),
		results: make(map[string][]detector.Detection),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
	}
}

func (f *fakeDetector) Detect(ctx context.Context, path string) ([]detector.Detection, error) {
	f.mu.Lock()
	f.calls[path]++
	delay := f.delays[path]
	res := f.results[path]
	err := f.errs[path]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeDetector) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

type fakeReclusterer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeReclusterer) Recluster(ctx context.Context, tenant string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeReclusterer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{
		Tenant:       testTenant,
		Timeout:      50 * time.Millisecond,
		RestartAfter: 100,
		MinScore:     0.30,
		PollInterval: 5 * time.Millisecond,
	}
}

func newTestWorker(store *memory.Store, det detector.Detector, rec Reclusterer, cfg Config) *Worker {
	return New(det, Stores{
		Faces:       store,
		FaceCounts:  store,
		Backlog:     store,
		Checkpoints: store,
		Control:     store,
	}, rec, cfg)
}

// seedBacklog enqueues n photos, each answering with a single good face.
func seedBacklog(t *testing.T, store *memory.Store, det *fakeDetector, n int) []string {
	t.Helper()
	ctx := context.Background()
	var uids []string
	for i := 1; i <= n; i++ {
		uid := fmt.Sprintf("photo%02d", i)
		uids = append(uids, uid)
		require.NoError(t, store.Enqueue(ctx, testTenant, []database.BacklogItem{{PhotoUID: uid, Path: uid}}))
		det.results[uid] = []detector.Detection{
			{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{0, 0, 10, 10}, DetScore: 0.9},
		}
	}
	return uids
}

func TestRunEmptyBacklog(t *testing.T) {
	store := memory.NewStore()
	w := newTestWorker(store, newFakeDetector(), nil, testConfig())

	status, err := w.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)
	assert.Equal(t, ExitCodeComplete, status.ExitCode())
}

func TestRestartCadence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	rec := &fakeReclusterer{}
	seedBacklog(t, store, det, 10)

	cfg := testConfig()
	cfg.RestartAfter = 5
	w := newTestWorker(store, det, rec, cfg)

	// first process stops voluntarily after five photos
	status, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusMoreWork, status)
	assert.Equal(t, ExitCodeMoreWork, status.ExitCode())

	attempted, total, err := store.Counts(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 5, attempted)
	assert.Equal(t, 10, total)
	assert.Equal(t, 1, rec.callCount(), "recluster should run before the cadence exit")

	// a fresh process finishes the rest without reprocessing anything
	status, err = newTestWorker(store, det, rec, cfg).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)

	attempted, _, _ = store.Counts(ctx, testTenant)
	assert.Equal(t, 10, attempted)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, 1, det.callCount(fmt.Sprintf("photo%02d", i)), "each photo detected exactly once")
	}
	assert.Equal(t, 2, rec.callCount())

	cp, _ := store.ReadCheckpoint(ctx, testTenant)
	assert.Equal(t, 10, cp.Processed)
	assert.Equal(t, 10, cp.Total)
	assert.Equal(t, 10, cp.FacesFound)
}

func TestHungPhotoSkippedAfterTwoTimeouts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	seedBacklog(t, store, det, 10)
	det.delays["photo07"] = 300 * time.Millisecond // well past the 50ms deadline

	cfg := testConfig()
	var statuses []Status
	for i := 0; i < 10; i++ {
		status, err := newTestWorker(store, det, nil, cfg).Run(ctx)
		require.NoError(t, err)
		statuses = append(statuses, status)
		if status == StatusComplete {
			break
		}
	}

	// run 1 dies on the first timeout, run 2 dies skipping it, run 3 finishes
	require.Equal(t, []Status{StatusMoreWork, StatusMoreWork, StatusComplete}, statuses)
	assert.Equal(t, 2, det.callCount("photo07"), "hung photo gets exactly two attempts")

	attempted, total, _ := store.Counts(ctx, testTenant)
	assert.Equal(t, total, attempted, "every photo including the hung one ends up attempted")

	// the hung photo stored no faces, everything else did
	faces, _ := store.GetFaces(ctx, testTenant, "photo07")
	assert.Empty(t, faces)
	faces, _ = store.GetFaces(ctx, testTenant, "photo08")
	assert.Len(t, faces, 1)
}

func TestTransientFailureRetriedThenSkipped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	seedBacklog(t, store, det, 3)
	det.errs["photo02"] = errors.New("service choked")

	cfg := testConfig()
	// first run leaves the failed photo unattempted for a retry
	status, err := newTestWorker(store, det, nil, cfg).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)

	attempted, total, _ := store.Counts(ctx, testTenant)
	assert.Equal(t, 2, attempted)
	assert.Equal(t, 3, total)

	// second failure crosses the limit and the photo is skipped for good
	status, err = newTestWorker(store, det, nil, cfg).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)

	attempted, _, _ = store.Counts(ctx, testTenant)
	assert.Equal(t, 3, attempted)
	assert.Equal(t, 2, det.callCount("photo02"))
}

func TestMissingFileIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	seedBacklog(t, store, det, 2)
	det.errs["photo01"] = fs.ErrNotExist

	status, err := newTestWorker(store, det, nil, testConfig()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)

	attempted, total, _ := store.Counts(ctx, testTenant)
	assert.Equal(t, total, attempted)
	assert.Equal(t, 1, det.callCount("photo01"), "missing file is settled in one attempt")
}

func TestMinScoreFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	require.NoError(t, store.Enqueue(ctx, testTenant, []database.BacklogItem{{PhotoUID: "p1", Path: "p1"}}))
	det.results["p1"] = []detector.Detection{
		{FaceIndex: 0, Embedding: []float32{1, 0}, DetScore: 0.9},
		{FaceIndex: 1, Embedding: []float32{0, 1}, DetScore: 0.1},
		{FaceIndex: 2, Embedding: nil, DetScore: 0.9},
	}

	status, err := newTestWorker(store, det, nil, testConfig()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)

	faces, _ := store.GetFaces(ctx, testTenant, "p1")
	require.Len(t, faces, 1, "low-confidence and empty detections must be dropped")
	assert.Equal(t, 0, faces[0].FaceIndex)
	assert.Equal(t, 2, faces[0].Dim)
}

func TestStopRequestExitsAtItemBoundary(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	seedBacklog(t, store, det, 5)
	store.SetControl(ctx, testTenant, database.ControlStopping)

	status, err := newTestWorker(store, det, nil, testConfig()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusMoreWork, status)

	attempted, _, _ := store.Counts(ctx, testTenant)
	assert.Equal(t, 0, attempted, "stop before the first item processes nothing")
}

func TestPauseBlocksUntilResumed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	det := newFakeDetector()
	seedBacklog(t, store, det, 3)
	store.SetControl(ctx, testTenant, database.ControlPaused)

	done := make(chan Status, 1)
	go func() {
		status, _ := newTestWorker(store, det, nil, testConfig()).Run(ctx)
		done <- status
	}()

	time.Sleep(50 * time.Millisecond)
	attempted, _, _ := store.Counts(ctx, testTenant)
	assert.Equal(t, 0, attempted, "paused worker must not process items")

	store.SetControl(ctx, testTenant, database.ControlRunning)

	select {
	case status := <-done:
		assert.Equal(t, StatusComplete, status)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not resume after unpause")
	}

	attempted, _, _ = store.Counts(ctx, testTenant)
	assert.Equal(t, 3, attempted)
}
