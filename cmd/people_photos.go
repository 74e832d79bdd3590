package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/cluster"
)

var peopleConfirmCmd = &cobra.Command{
	Use:   "confirm <cluster> <photo>",
	Short: "Confirm a photo belongs to a person",
	Long: `Confirm that a photo belongs to a person. Confirmed photos survive
reclustering even when the algorithm stops grouping them together, and
having any confirmation tightens the clustering threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.ConfirmPhoto(ctx, tenant, args[0], args[1])
		})
	},
}

var peopleRemoveCmd = &cobra.Command{
	Use:   "remove <cluster> <photo>",
	Short: "Remove a photo from a person permanently",
	Long: `Remove a photo from a person. The removal is permanent: the photo will
never reappear in this cluster no matter how the algorithm regroups the
library. Removing from one person also sweeps the photo out of any
unnamed clusters it sits in.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.RemovePhoto(ctx, tenant, args[0], args[1])
		})
	},
}

var peopleAddCmd = &cobra.Command{
	Use:   "add <photo> <cluster>...",
	Short: "Add a photo to one or more people",
	Long: `Add a photo to the given people as a confirmed member. With --from, the
photo moves out of the source cluster when that cluster is unnamed;
named source clusters keep their copy.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from := mustGetString(cmd, "from")
		return withEngine(func(ctx context.Context, e *cluster.Engine, tenant string) error {
			return e.AddPhotoToClusters(ctx, tenant, args[0], from, args[1:])
		})
	},
}

func init() {
	peopleCmd.AddCommand(peopleConfirmCmd)
	peopleCmd.AddCommand(peopleRemoveCmd)
	peopleCmd.AddCommand(peopleAddCmd)

	peopleAddCmd.Flags().String("from", "", "Source cluster the photo currently sits in")
}
