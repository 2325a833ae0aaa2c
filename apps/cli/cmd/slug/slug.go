package slug

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	platformslug "github.com/marmoreal/stonecms/platform/go/slug"
)

// Command groups slug helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slug",
		Short: "Slug utilities",
	}
	cmd.AddCommand(previewCommand())
	return cmd
}

func previewCommand() *cobra.Command {
	var taken []string

	cmd := &cobra.Command{
		Use:   "preview <title>...",
		Short: "Show the slug each title would receive",
		Long: "Show the slug each title would receive. --taken lists slugs already in use; " +
			"titles earlier on the command line also claim their slug, as sequential creates would.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimed := make(map[string]struct{}, len(taken)+len(args))
			for _, s := range taken {
				claimed[s] = struct{}{}
			}
			exists := func(_ context.Context, candidate string) (bool, error) {
				_, ok := claimed[candidate]
				return ok, nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tBASE\tSLUG")
			for _, title := range args {
				base := platformslug.Derive(title)
				resolved, err := platformslug.Resolve(cmd.Context(), base, exists)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", title, err)
				}
				claimed[resolved] = struct{}{}
				fmt.Fprintf(w, "%s\t%s\t%s\n", title, base, resolved)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&taken, "taken", nil, "slugs already in use (comma-separated)")
	return cmd
}
