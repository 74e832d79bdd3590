package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/postgres"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause a running detection at the next photo boundary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setControl(database.ControlPaused)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setControl(database.ControlRunning)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running detection at the next photo boundary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setControl(database.ControlStopping)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show detection progress for the tenant",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

// setControl writes the requested run state; workers poll it between
// photos, so the change takes effect at the next item boundary.
func setControl(state database.ControlState) error {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewControlRepository(pool).SetControl(ctx, cfg.Tenant, state); err != nil {
		return err
	}
	fmt.Printf("Tenant %s set to %s\n", cfg.Tenant, state)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	state, err := postgres.NewControlRepository(pool).Control(ctx, cfg.Tenant)
	if err != nil {
		return err
	}
	cp, err := postgres.NewCheckpointRepository(pool).ReadCheckpoint(ctx, cfg.Tenant)
	if err != nil {
		return err
	}
	attempted, total, err := postgres.NewBacklogRepository(pool).Counts(ctx, cfg.Tenant)
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:   %s\n", cfg.Tenant)
	fmt.Printf("State:    %s\n", state)
	fmt.Printf("Backlog:  %d of %d photos processed\n", attempted, total)
	if cp.Total > 0 {
		fmt.Printf("Progress: %d/%d photos, %d faces found (updated %s)\n",
			cp.Processed, cp.Total, cp.FacesFound, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		if cp.CurrentPhoto != "" {
			fmt.Printf("Current:  %s\n", cp.CurrentPhoto)
		}
	}
	return nil
}
