package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database/postgres"
	"github.com/kozaktomas/face-engine/internal/detector"
	"github.com/kozaktomas/face-engine/internal/worker"
)

// workerCmd is the hidden subcommand the supervisor spawns. It runs one
// disposable worker process and reports its result through the exit
// code, which is the only channel the supervisor reads.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Run one detection worker process (spawned by detect)",
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("tenant", "", "Tenant to process (overrides FACE_TENANT)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if tenant := mustGetString(cmd, "tenant"); tenant != "" {
		cfg.Tenant = tenant
	}

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}

	faces := postgres.NewFaceRepository(pool)
	w := worker.New(
		detector.NewHTTPDetector(cfg.FaceService.URL),
		worker.Stores{
			Faces:       faces,
			FaceCounts:  faces,
			Backlog:     postgres.NewBacklogRepository(pool),
			Checkpoints: postgres.NewCheckpointRepository(pool),
			Control:     postgres.NewControlRepository(pool),
		},
		buildEngine(pool, cfg),
		worker.Config{
			Tenant:        cfg.Tenant,
			Timeout:       cfg.Worker.Timeout,
			RestartAfter:  cfg.Worker.RestartAfter,
			MemoryLimitMB: cfg.Worker.MemoryLimitMB,
			MinScore:      cfg.FaceService.MinScore,
		},
	)

	status, err := w.Run(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	pool.Close()
	os.Exit(status.ExitCode())
	return nil
}
