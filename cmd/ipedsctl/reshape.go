package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ipedspulse/internal/dataprocessing"
	apperrors "ipedspulse/internal/errors"
	"ipedspulse/internal/exporter"
	"ipedspulse/internal/validation"
	"ipedspulse/pkg/contracts/domain"
)

type reshapeOptions struct {
	out    string
	format string
	bom    bool
}

func newReshapeCmd(g *globalOptions) *cobra.Command {
	opts := &reshapeOptions{}
	cmd := &cobra.Command{
		Use:   "reshape",
		Short: "Convert the wide file into long institution-year records",
		Long: `Reads the wide file, drops institution-years with missing, invalid or
inconsistent values and writes one row per institution and year.

Without --out the records are written to stdout as CSV. A relative --out path
is placed in the exports directory.`,
		Example: `  ipedsctl reshape -f data/ipeds_enrollment_wide.csv > long.csv
  ipedsctl reshape --out enrollment_long.xlsx --format xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReshape(cmd, g, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file; stdout when empty")
	cmd.Flags().StringVar(&opts.format, "format", "", "csv or xlsx; inferred from --out when empty")
	cmd.Flags().BoolVar(&opts.bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	return cmd
}

func runReshape(cmd *cobra.Command, g *globalOptions, opts *reshapeOptions) error {
	format, err := outputFormat(opts.format, opts.out)
	if err != nil {
		return err
	}

	records, stats, err := reshapeFile(cmd.Context(), g)
	if err != nil {
		return err
	}

	if opts.out == "" {
		if format == "xlsx" {
			return exporter.NewXLSXWriter().WriteRecords(cmd.OutOrStdout(), records)
		}
		return exporter.WriteRecords(cmd.OutOrStdout(), records, opts.bom)
	}

	var written string
	switch format {
	case "xlsx":
		written, err = writeXLSX(g, opts.out, records)
	default:
		written, err = exporter.NewCSVWriter(g.cfg.ResolvedPaths()).
			WithLogger(g.logger).
			ExportRecords(opts.out, records, opts.bom)
	}
	if err != nil {
		return err
	}

	g.logger.Info("records written",
		slog.String("path", written),
		slog.String("format", format),
		slog.Int("records", len(records)),
		slog.Int("skipped", stats.SkippedTotal()))
	return nil
}

func writeXLSX(g *globalOptions, out string, records []domain.EnrollmentRecord) (string, error) {
	path := out
	if !filepath.IsAbs(path) {
		path = g.cfg.ResolvedPaths().GetExportPath(out)
	}
	if err := validation.NewFileValidator(g.logger).ValidateOutputDirectory(filepath.Dir(path)); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := exporter.NewXLSXWriter().WriteRecords(f, records); err != nil {
		return "", err
	}
	return path, f.Close()
}

// outputFormat picks csv or xlsx from the flag, then the output extension.
func outputFormat(format, out string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		if strings.EqualFold(filepath.Ext(out), ".xlsx") {
			return "xlsx", nil
		}
		return "csv", nil
	}
	switch format {
	case "csv", "xlsx":
		return format, nil
	default:
		return "", apperrors.NewAppValidationError(fmt.Sprintf("unsupported format %q (want csv or xlsx)", format))
	}
}

// reshapeFile parses and reshapes the configured dataset.
func reshapeFile(ctx context.Context, g *globalOptions) ([]domain.EnrollmentRecord, dataprocessing.ReshapeStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path := g.datasetPath()
	start := time.Now()

	if err := validation.NewFileValidator(g.logger).ValidateDatasetFile(path); err != nil {
		return nil, dataprocessing.ReshapeStats{}, err
	}
	raw, err := dataprocessing.NewParser(g.logger, g.cfg.Dataset.Sheet).ParseFile(ctx, path)
	if err != nil {
		return nil, dataprocessing.ReshapeStats{}, err
	}
	reshaper := dataprocessing.NewReshaper(g.logger, dataprocessing.ReshapeConfig{
		Years:           g.cfg.Dataset.Years,
		PctSumTolerance: g.cfg.Dataset.PctSumTolerance,
		MaxSkipDetails:  dataprocessing.DefaultReshapeConfig().MaxSkipDetails,
	})
	records, stats, err := reshaper.Reshape(ctx, raw.Records)
	if err != nil {
		return nil, stats, err
	}

	g.logger.Debug("dataset reshaped",
		slog.String("path", path),
		slog.Int("rows_read", stats.RowsRead),
		slog.Int("records", len(records)),
		slog.Duration("duration", time.Since(start)))
	return records, stats, nil
}
