package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/spyfall-agents/internal/analytics"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recorder, closeRecorder, err := a.recorder(ctx)
			if err != nil {
				return err
			}
			defer closeRecorder()

			lister, ok := recorder.(analytics.Lister)
			if !ok {
				return fmt.Errorf("analytics backend %q keeps no history", a.cfg.Analytics)
			}
			games, err := lister.ListGames(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tLOCATION\tPLAYERS\tTURNS\tWINNER")
			for _, g := range games {
				winner := string(g.Winner)
				if winner == "" {
					winner = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					g.ID, g.StartedAt.Local().Format("2006-01-02 15:04"), g.Location, g.Players, g.Turns, winner)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print a recorded game (file analytics only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, closeRecorder, err := a.recorder(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRecorder()

			files, ok := recorder.(*analytics.FileRecorder)
			if !ok {
				return errors.New("show needs the file analytics backend")
			}
			rec, err := files.Load(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(rec); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
