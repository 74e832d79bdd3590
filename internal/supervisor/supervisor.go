// Package supervisor owns the lifecycle of detection worker processes:
// it launches one worker at a time, classifies how it died, restarts it
// while backlog remains, and refuses to spin forever. The whole backlog
// runs under a single per-tenant lock so two coordinators cannot race.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/worker"
)

// ErrRestartLimit is returned when the restart cap is exhausted with
// backlog still remaining.
var ErrRestartLimit = errors.New("worker restart limit reached")

// Reason classifies a worker exit.
type Reason int

const (
	ReasonDone Reason = iota
	ReasonMoreWork
	ReasonCrash
)

func (r Reason) String() string {
	switch r {
	case ReasonDone:
		return "done"
	case ReasonMoreWork:
		return "more work"
	case ReasonCrash:
		return "crash"
	default:
		return "unknown"
	}
}

// ClassifyExit maps a worker exit code and the remaining backlog to a
// restart decision. The remaining count is the only source of truth for
// completion: a clean exit with items left still means another round,
// and a crash with nothing left means done.
func ClassifyExit(exitCode, remaining int) Reason {
	if remaining == 0 {
		return ReasonDone
	}
	switch exitCode {
	case worker.ExitCodeComplete, worker.ExitCodeMoreWork:
		return ReasonMoreWork
	default:
		return ReasonCrash
	}
}

// Runner launches one worker process and reports its exit code.
type Runner interface {
	RunOnce(ctx context.Context, tenant string) (int, error)
}

// Locker hands out the per-tenant indexing lock.
type Locker interface {
	Acquire(ctx context.Context, tenant string) (release func(), err error)
}

// Reclusterer rebuilds derived cluster state at process boundaries.
type Reclusterer interface {
	Recluster(ctx context.Context, tenant string) error
}

// Config tunes the supervisor loop.
type Config struct {
	Tenant       string
	MaxRestarts  int           // relaunches before giving up (default 100)
	RestartPause time.Duration // breather between relaunches (default 500ms)
}

// Supervisor drives worker processes until the backlog is drained.
type Supervisor struct {
	runner    Runner
	lock      Locker
	backlog   database.BacklogStore
	control   database.ControlStore
	recluster Reclusterer
	cfg       Config
}

func New(runner Runner, lock Locker, backlog database.BacklogStore, control database.ControlStore, recluster Reclusterer, cfg Config) *Supervisor {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 100
	}
	if cfg.RestartPause <= 0 {
		cfg.RestartPause = 500 * time.Millisecond
	}
	return &Supervisor{
		runner:    runner,
		lock:      lock,
		backlog:   backlog,
		control:   control,
		recluster: recluster,
		cfg:       cfg,
	}
}

// Run drains the tenant's backlog by spawning workers until one of:
// nothing remains, a stop is requested, or the restart cap trips.
// Returns database.ErrLocked when another run holds the tenant's lock.
func (s *Supervisor) Run(ctx context.Context) error {
	tenant := s.cfg.Tenant

	release, err := s.lock.Acquire(ctx, tenant)
	if err != nil {
		return err
	}
	defer release()

	if err := s.control.SetControl(ctx, tenant, database.ControlRunning); err != nil {
		return fmt.Errorf("setting run state: %w", err)
	}
	defer s.control.SetControl(context.Background(), tenant, database.ControlIdle)

	restarts := 0
	for {
		attempted, total, err := s.backlog.Counts(ctx, tenant)
		if err != nil {
			return fmt.Errorf("counting backlog: %w", err)
		}
		remaining := total - attempted
		if remaining == 0 {
			s.reclusterQuietly(ctx)
			log.Printf("[SUPERVISOR] backlog already drained")
			return nil
		}

		exitCode, runErr := s.runner.RunOnce(ctx, tenant)
		if runErr != nil {
			return fmt.Errorf("launching worker: %w", runErr)
		}

		attempted, total, err = s.backlog.Counts(ctx, tenant)
		if err != nil {
			return fmt.Errorf("counting backlog: %w", err)
		}
		remaining = total - attempted

		// derived state refreshes at every process boundary
		s.reclusterQuietly(ctx)

		switch reason := ClassifyExit(exitCode, remaining); reason {
		case ReasonDone:
			log.Printf("[SUPERVISOR] backlog drained (worker exit code %d)", exitCode)
			return nil
		case ReasonCrash:
			log.Printf("[SUPERVISOR] worker crashed with exit code %d, %d photos remaining", exitCode, remaining)
		case ReasonMoreWork:
			log.Printf("[SUPERVISOR] worker handed back %d remaining photos", remaining)
		}

		state, err := s.control.Control(ctx, tenant)
		if err != nil {
			return fmt.Errorf("reading control state: %w", err)
		}
		if state == database.ControlStopping {
			log.Printf("[SUPERVISOR] stop requested, leaving %d photos queued", remaining)
			return nil
		}

		restarts++
		if restarts >= s.cfg.MaxRestarts {
			return fmt.Errorf("giving up after %d worker restarts with %d photos remaining: %w",
				restarts, remaining, ErrRestartLimit)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RestartPause):
		}
	}
}

func (s *Supervisor) reclusterQuietly(ctx context.Context) {
	if s.recluster == nil {
		return
	}
	if err := s.recluster.Recluster(ctx, s.cfg.Tenant); err != nil {
		log.Printf("[SUPERVISOR] recluster failed: %v", err)
	}
}
