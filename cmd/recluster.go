package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/config"
)

var reclusterCmd = &cobra.Command{
	Use:   "recluster",
	Short: "Rebuild identity clusters from stored faces",
	Long: `Recompute all identity clusters from scratch and print the result.
Clustering is deterministic: running this twice over unchanged data
produces identical people. Names, confirmations and exclusions are
preserved across rebuilds.`,
	RunE: runRecluster,
}

func init() {
	rootCmd.AddCommand(reclusterCmd)

	reclusterCmd.Flags().Bool("hidden", false, "Include hidden people in the listing")
}

func runRecluster(cmd *cobra.Command, args []string) error {
	showHidden := mustGetBool(cmd, "hidden")

	ctx := context.Background()
	cfg := config.Load()

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	persons, err := buildEngine(pool, cfg).Rebuild(ctx, cfg.Tenant)
	if err != nil {
		return fmt.Errorf("rebuilding clusters: %w", err)
	}

	visible := 0
	for _, p := range persons {
		if p.Hidden && !showHidden {
			continue
		}
		visible++
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		marker := ""
		if p.Hidden {
			marker = " [hidden]"
		}
		fmt.Printf("%-24s %-20s %4d photos%s\n", p.Key, name, len(p.Members), marker)
	}
	fmt.Printf("\n%d people\n", visible)
	return nil
}
