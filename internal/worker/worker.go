// Package worker implements the disposable face-detection process. It
// drains the backlog one photo at a time, records durable progress after
// every item, and dies on purpose instead of getting stuck: a hung
// detection or a full restart cadence both end the process and let the
// supervisor start a fresh one.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/detector"
)

const (
	// ExitCodeComplete means the backlog was empty when the worker
	// finished.
	ExitCodeComplete = 0
	// ExitCodeMoreWork is EX_TEMPFAIL: a clean, deliberate exit with
	// items still queued. Anything other than these two codes is a crash.
	ExitCodeMoreWork = 75

	// maxItemFailures is how many failures (in any number of worker
	// processes) a photo gets before it is permanently skipped.
	maxItemFailures = 2
)

// ErrDetectTimeout marks a detection that outlived its deadline. The
// stuck goroutine cannot be killed, so the process is abandoned instead.
var ErrDetectTimeout = errors.New("face detection timed out")

// Status is the worker's exit status.
type Status int

const (
	StatusComplete Status = iota
	StatusMoreWork
)

func (s Status) ExitCode() int {
	if s == StatusMoreWork {
		return ExitCodeMoreWork
	}
	return ExitCodeComplete
}

// Reclusterer rebuilds derived cluster state after detection makes
// progress.
type Reclusterer interface {
	Recluster(ctx context.Context, tenant string) error
}

// Config tunes one worker process.
type Config struct {
	Tenant        string
	Timeout       time.Duration // per-photo detection deadline
	RestartAfter  int           // photos before a voluntary restart
	MemoryLimitMB int           // heap size that triggers a cleanup pass, 0 disables
	MinScore      float64       // detections below this confidence are dropped
	PollInterval  time.Duration // control-state poll cadence while paused
}

// Stores are the storage dependencies of a worker.
type Stores struct {
	Faces       database.FaceWriter
	FaceCounts  database.FaceReader
	Backlog     database.BacklogStore
	Checkpoints database.CheckpointStore
	Control     database.ControlStore
}

// Worker processes the detection backlog for one tenant.
type Worker struct {
	detector  detector.Detector
	stores    Stores
	recluster Reclusterer
	cfg       Config
}

func New(det detector.Detector, stores Stores, recluster Reclusterer, cfg Config) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RestartAfter <= 0 {
		cfg.RestartAfter = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{detector: det, stores: stores, recluster: recluster, cfg: cfg}
}

// Run drains unattempted backlog items until the backlog is empty, the
// restart cadence fires, a detection times out, or a stop is requested.
// All progress markers are written before returning, so a fresh process
// picks up exactly where this one left off.
func (w *Worker) Run(ctx context.Context) (Status, error) {
	tenant := w.cfg.Tenant

	items, err := w.stores.Backlog.Unattempted(ctx, tenant)
	if err != nil {
		return StatusMoreWork, fmt.Errorf("loading backlog: %w", err)
	}
	attempted, total, err := w.stores.Backlog.Counts(ctx, tenant)
	if err != nil {
		return StatusMoreWork, fmt.Errorf("counting backlog: %w", err)
	}
	facesSoFar, err := w.stores.FaceCounts.CountFaces(ctx, tenant)
	if err != nil {
		return StatusMoreWork, fmt.Errorf("counting faces: %w", err)
	}

	if len(items) == 0 {
		log.Printf("[WORKER] backlog empty, nothing to do")
		w.writeCheckpoint(ctx, attempted, total, facesSoFar, "")
		return StatusComplete, nil
	}
	log.Printf("[WORKER] starting: %d of %d photos remaining", len(items), total)

	processed := 0
	found := 0
	for i, item := range items {
		state, err := w.waitWhilePaused(ctx)
		if err != nil {
			return StatusMoreWork, err
		}
		if state == database.ControlStopping {
			log.Printf("[WORKER] stop requested, exiting at item boundary")
			w.writeCheckpoint(ctx, attempted+processed, total, facesSoFar+found, "")
			return StatusMoreWork, nil
		}

		w.maybeFreeMemory()
		w.writeCheckpoint(ctx, attempted+processed, total, facesSoFar+found, item.PhotoUID)

		dets, err := w.detectWithTimeout(ctx, item.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// a vanished file is done, not failed
			log.Printf("[WORKER] %s: file missing, recording empty result", item.PhotoUID)
			if err := w.stores.Backlog.MarkAttempted(ctx, tenant, item.PhotoUID); err != nil {
				return StatusMoreWork, fmt.Errorf("marking %s attempted: %w", item.PhotoUID, err)
			}
			processed++

		case err != nil:
			failures, ferr := w.stores.Backlog.RecordFailure(ctx, tenant, item.PhotoUID)
			if ferr != nil {
				return StatusMoreWork, fmt.Errorf("recording failure for %s: %w", item.PhotoUID, ferr)
			}
			if failures >= maxItemFailures {
				log.Printf("[WORKER] %s: failed %d times, permanently skipping: %v", item.PhotoUID, failures, err)
				if merr := w.stores.Backlog.MarkAttempted(ctx, tenant, item.PhotoUID); merr != nil {
					return StatusMoreWork, fmt.Errorf("marking %s attempted: %w", item.PhotoUID, merr)
				}
				processed++
			} else {
				log.Printf("[WORKER] %s: detection failed (attempt %d), will retry: %v", item.PhotoUID, failures, err)
			}
			if errors.Is(err, ErrDetectTimeout) {
				// the detection goroutine is still stuck somewhere in
				// there; only a process exit reclaims it
				log.Printf("[WORKER] restarting process to shed the stuck detection")
				w.writeCheckpoint(ctx, attempted+processed, total, facesSoFar+found, "")
				return StatusMoreWork, nil
			}

		default:
			faces := storedFaces(item, dets, w.cfg.MinScore)
			if err := w.stores.Faces.ReplaceFaces(ctx, tenant, item.PhotoUID, faces); err != nil {
				return StatusMoreWork, fmt.Errorf("storing faces for %s: %w", item.PhotoUID, err)
			}
			if err := w.stores.Backlog.MarkAttempted(ctx, tenant, item.PhotoUID); err != nil {
				return StatusMoreWork, fmt.Errorf("marking %s attempted: %w", item.PhotoUID, err)
			}
			processed++
			found += len(faces)
			log.Printf("[WORKER] %s: %d faces", item.PhotoUID, len(faces))
		}

		if processed >= w.cfg.RestartAfter && i < len(items)-1 {
			log.Printf("[WORKER] processed %d photos, restarting for a fresh process", processed)
			w.reclusterQuietly(ctx)
			w.writeCheckpoint(ctx, attempted+processed, total, facesSoFar+found, "")
			return StatusMoreWork, nil
		}
	}

	w.reclusterQuietly(ctx)
	w.writeCheckpoint(ctx, attempted+processed, total, facesSoFar+found, "")
	log.Printf("[WORKER] done: %d photos processed, %d faces found this run", processed, found)
	return StatusComplete, nil
}

// detectWithTimeout races the detector against the per-photo deadline.
// On expiry the goroutine is left behind; the caller must exit the
// process to reclaim it.
func (w *Worker) detectWithTimeout(ctx context.Context, path string) ([]detector.Detection, error) {
	type result struct {
		dets []detector.Detection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		dets, err := w.detector.Detect(ctx, path)
		ch <- result{dets, err}
	}()

	timer := time.NewTimer(w.cfg.Timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.dets, r.err
	case <-timer.C:
		return nil, ErrDetectTimeout
	}
}

// waitWhilePaused blocks at the item boundary while the tenant is
// paused. It returns the state that ended the wait; context cancellation
// reads as a stop request.
func (w *Worker) waitWhilePaused(ctx context.Context) (database.ControlState, error) {
	for {
		state, err := w.stores.Control.Control(ctx, w.cfg.Tenant)
		if err != nil {
			return "", fmt.Errorf("reading control state: %w", err)
		}
		if state != database.ControlPaused {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return database.ControlStopping, nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// writeCheckpoint overwrites the tenant's progress row. Progress is
// advisory, so failures are logged and swallowed.
func (w *Worker) writeCheckpoint(ctx context.Context, processed, total, facesFound int, current string) {
	cp := database.Checkpoint{
		Processed:    processed,
		Total:        total,
		FacesFound:   facesFound,
		CurrentPhoto: current,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := w.stores.Checkpoints.WriteCheckpoint(ctx, w.cfg.Tenant, cp); err != nil {
		log.Printf("[WORKER] failed to write checkpoint: %v", err)
	}
}

func (w *Worker) reclusterQuietly(ctx context.Context) {
	if w.recluster == nil {
		return
	}
	if err := w.recluster.Recluster(ctx, w.cfg.Tenant); err != nil {
		log.Printf("[WORKER] recluster failed: %v", err)
	}
}

// storedFaces converts service detections into storage rows, dropping
// low-confidence hits and empty embeddings.
func storedFaces(item database.BacklogItem, dets []detector.Detection, minScore float64) []database.StoredFace {
	var out []database.StoredFace
	for _, d := range dets {
		if d.DetScore < minScore || len(d.Embedding) == 0 {
			continue
		}
		out = append(out, database.StoredFace{
			PhotoUID:  item.PhotoUID,
			FaceIndex: d.FaceIndex,
			Embedding: d.Embedding,
			BBox:      d.BBox,
			DetScore:  d.DetScore,
			Dim:       len(d.Embedding),
		})
	}
	return out
}
