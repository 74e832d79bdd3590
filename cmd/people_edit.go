package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/cluster"
)

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <cluster> <name>",
	Short: "Set a person's display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.Rename(ctx, tenant, args[0], args[1])
		})
	},
}

var peopleHideCmd = &cobra.Command{
	Use:   "hide <cluster>",
	Short: "Hide a person from listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.SetHidden(ctx, tenant, args[0], true)
		})
	},
}

var peopleShowCmd = &cobra.Command{
	Use:   "show <cluster>",
	Short: "Unhide a person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.SetHidden(ctx, tenant, args[0], false)
		})
	},
}

var peopleRotateCmd = &cobra.Command{
	Use:   "rotate <cluster> <degrees>",
	Short: "Set a person's thumbnail rotation (0, 90, 180 or 270)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		degrees, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid rotation %q: %w", args[1], err)
		}
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.SetRotation(ctx, tenant, args[0], degrees)
		})
	},
}

var peopleProfileCmd = &cobra.Command{
	Use:   "profile <cluster> <photo>",
	Short: "Set a person's profile photo",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.SetProfilePhoto(ctx, tenant, args[0], args[1])
		})
	},
}

func init() {
	peopleCmd.AddCommand(peopleRenameCmd)
	peopleCmd.AddCommand(peopleHideCmd)
	peopleCmd.AddCommand(peopleShowCmd)
	peopleCmd.AddCommand(peopleRotateCmd)
	peopleCmd.AddCommand(peopleProfileCmd)
}
