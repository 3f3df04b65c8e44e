package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"ipedspulse/internal/dataprocessing"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	var (
		maxSkipped int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Report how much of the wide file survives reshaping",
		Long: `Reshapes the wide file and prints the rows read, the records produced and
the institution-years dropped per reason.

With --max-skipped the command fails when more institution-years than that
were dropped, which makes it usable as a data check before deployment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, stats, err := reshapeFile(cmd.Context(), g)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(stats); err != nil {
					return err
				}
			} else {
				printStats(cmd.OutOrStdout(), stats)
			}
			if maxSkipped >= 0 && stats.SkippedTotal() > maxSkipped {
				return fmt.Errorf("%d institution-years skipped, limit is %d", stats.SkippedTotal(), maxSkipped)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSkipped, "max-skipped", -1, "fail when more institution-years are skipped; negative disables the check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}

func printStats(w io.Writer, stats dataprocessing.ReshapeStats) {
	fmt.Fprintf(w, "rows read:        %d\n", stats.RowsRead)
	fmt.Fprintf(w, "records produced: %d\n", stats.RecordsProduced)
	fmt.Fprintf(w, "institutions:     %d\n", stats.Institutions)
	fmt.Fprintf(w, "years:            %v\n", stats.Years)
	fmt.Fprintf(w, "skipped:          %d\n", stats.SkippedTotal())

	reasons := make([]string, 0, len(stats.Skipped))
	for r := range stats.Skipped {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-14s %d\n", r, stats.Skipped[dataprocessing.SkipReason(r)])
	}
	fmt.Fprintf(w, "pct sum warnings: %d\n", stats.PctSumWarnings)

	for _, s := range stats.Skips {
		fmt.Fprintf(w, "line %d: %s %d %s", s.Line, s.Institution, s.Year, s.Reason)
		if s.Column != "" {
			fmt.Fprintf(w, " (%s)", s.Column)
		}
		fmt.Fprintln(w)
	}
}
