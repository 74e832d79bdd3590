package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/cluster"
	"github.com/kozaktomas/face-engine/internal/config"
)

// withEngine runs one label mutation with the engine wired to the
// database, sharing the connect/cleanup boilerplate across subcommands.
func withEngine(fn func(ctx context.Context, e *cluster.Engine, tenant string) error) error {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, buildEngine(pool, cfg), cfg.Tenant)
}

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List and manage identity clusters",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all people with their photo counts",
	RunE:  runPeopleList,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)

	peopleListCmd.Flags().Bool("hidden", false, "Include hidden people")
	peopleListCmd.Flags().Bool("photos", false, "List each person's photos")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	showHidden := mustGetBool(cmd, "hidden")
	showPhotos := mustGetBool(cmd, "photos")

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

	for _, p := range persons {
		if p.Hidden && !showHidden {
			continue
		}
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		marker := ""
		if p.Hidden {
			marker = " [hidden]"
		}
		fmt.Printf("%-24s %-20s %4d photos%s\n", p.Key, name, len(p.Members), marker)
		if showPhotos {
			for _, m := range p.Members {
				confirmed := ""
				if m.Confirmed {
					confirmed = " (confirmed)"
				}
				fmt.Printf("    %s  score %.2f%s\n", m.PhotoUID, m.Score, confirmed)
			}
		}
	}
	return nil
}
