package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"ipedspulse/internal/services"
	"ipedspulse/pkg/contracts/domain"
)

// summaryReport is printed by the summary command.
type summaryReport struct {
	Dataset services.DatasetInfo `json:"dataset"`
	Filter  domain.Filter        `json:"filter"`
	Summary domain.Summary       `json:"summary"`
	Funnel  domain.Funnel        `json:"funnel"`
}

func newSummaryCmd(g *globalOptions) *cobra.Command {
	var f domain.Filter
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print totals, rates and the admissions funnel for a selection",
		Example: `  ipedsctl summary --year 2023
  ipedsctl summary --state CA --state NY --type Public`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := services.NewDatasetService(cmd.Context(), g.datasetPath(), g.cfg.Dataset, g.logger, nil, nil)
			if err != nil {
				return err
			}

			filter := f.Normalize()
			summary, err := ds.Summary(cmd.Context(), filter)
			if err != nil {
				return err
			}
			funnel, err := ds.Funnel(cmd.Context(), filter)
			if err != nil {
				return err
			}

			info := ds.Info()
			info.Skips = nil
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaryReport{
				Dataset: info,
				Filter:  filter,
				Summary: summary,
				Funnel:  funnel,
			})
		},
	}

	flags := cmd.Flags()
	flags.IntSliceVar(&f.Years, "year", nil, "academic year (repeatable)")
	flags.StringSliceVar(&f.Institutions, "institution", nil, "institution name (repeatable)")
	flags.StringSliceVar(&f.States, "state", nil, "state abbreviation (repeatable)")
	flags.StringSliceVar(&f.Regions, "region", nil, "census region (repeatable)")
	flags.StringSliceVar(&f.Types, "type", nil, "control type, e.g. Public (repeatable)")
	flags.StringSliceVar(&f.Sizes, "size", nil, "size band (repeatable)")
	return cmd
}
