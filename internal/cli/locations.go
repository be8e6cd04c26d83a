package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tatianab/spyfall-agents/internal/locations"
)

func (a *app) locationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List the location catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOCATION\tROLES")
			for _, p := range catalog.Packs() {
				fmt.Fprintf(w, "%s\t%s\n", p.Location, strings.Join(p.Roles, ", "))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE...",
		Short: "Check custom location pack files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				packs, err := locations.ParsePacks(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, p := range packs {
					if err := locations.Validate(p); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pack(s) ok\n", path, len(packs))
			}
			return nil
		},
	})
	return cmd
}
