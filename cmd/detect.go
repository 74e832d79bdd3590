package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/postgres"
	"github.com/kozaktomas/face-engine/internal/supervisor"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run face detection over the queued backlog",
	Long: `Drain the detection backlog by supervising disposable worker processes.
Each worker handles a handful of photos and exits; the supervisor
relaunches workers until nothing remains. A crashed or hung worker
costs at most one photo attempt, never the run.

Press Ctrl-C to stop cleanly at the next photo boundary.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

// watchForStop invokes stop when a signal arrives. A run that completes
// on its own closes done first, and then no stop request is ever
// written: the run-state machine only transitions on real user input.
func watchForStop(sig <-chan os.Signal, done <-chan struct{}, stop func()) {
	select {
	case <-sig:
		stop()
	case <-done:
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	backlog := postgres.NewBacklogRepository(pool)
	control := postgres.NewControlRepository(pool)
	engine := buildEngine(pool, cfg)

	runner, err := supervisor.NewExecRunner("worker")
	if err != nil {
		return fmt.Errorf("building worker runner: %w", err)
	}

	sup := supervisor.New(runner, postgres.NewAdvisoryLock(pool), backlog, control, engine, supervisor.Config{
		Tenant:      cfg.Tenant,
		MaxRestarts: cfg.Worker.MaxRestarts,
	})

	// Ctrl-C requests a clean stop; workers notice at the next photo
	// boundary. A second Ctrl-C kills the process outright.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	done := make(chan struct{})
	go watchForStop(sig, done, func() {
		fmt.Println("\nStop requested, finishing the current photo...")
		_ = control.SetControl(context.Background(), cfg.Tenant, database.ControlStopping)
		signal.Stop(sig)
	})

	err = sup.Run(context.Background())
	close(done)
	switch {
	case errors.Is(err, database.ErrLocked):
		return fmt.Errorf("another detection run is already active for tenant %s", cfg.Tenant)
	case errors.Is(err, supervisor.ErrRestartLimit):
		return fmt.Errorf("detection gave up: %w", err)
	case err != nil:
		return err
	}

	faceCount, err := postgres.NewFaceRepository(pool).CountFaces(context.Background(), cfg.Tenant)
	if err != nil {
		return fmt.Errorf("counting faces: %w", err)
	}
	fmt.Printf("Detection finished. Faces in database: %d\n", faceCount)
	return nil
}
