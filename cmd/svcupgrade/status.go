package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newStatusCmd prints the upgrade history audit trail: the version
// transition on success, or the failing phase on failure.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the history of upgrade attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			records, err := b.store.ListUpgradeRecords()
			if err != nil {
				return fmt.Errorf("list upgrade history: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("no upgrade attempts recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tFROM\tTO\tSTRATEGY\tOUTCOME\tPHASE")
			for _, r := range records {
				phase := r.Phase
				if phase == "" {
					phase = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02T15:04:05"),
					r.FromVersion, r.ToVersion, r.Strategy, r.Outcome, phase)
			}
			return w.Flush()
		},
	}
	return cmd
}
