package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/cluster"
)

var peopleMergeCmd = &cobra.Command{
	Use:   "merge <source> <target>",
	Short: "Merge one person into another",
	Long: `Merge the source person into the target. The source's confirmed photos
move over, the source is tombstoned so it never resurfaces, and the
merged cluster keeps the target's name unless --name says otherwise
or only the source had one.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := mustGetString(cmd, "name")
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.MergeClusters(ctx, tenant, args[0], args[1], name)
		})
	},
}

func init() {
	peopleCmd.AddCommand(peopleMergeCmd)

	peopleMergeCmd.Flags().String("name", "", "Explicit name for the merged person")
}
