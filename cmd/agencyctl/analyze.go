package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"agency-insights/internal/analysis"
	"agency-insights/internal/analyzer"
	"agency-insights/internal/config"
	"agency-insights/internal/dataset"
	"agency-insights/internal/report"
	"agency-insights/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	var analyzeCmd = &cobra.Command{
		Use:   "analyze [csv|dir]",
		Short: "Run every analysis and write reports, exports and charts",
		Long: `Run the structure, quality, performance, segmentation and opportunity
analyses over a CSV file or every CSV file below a directory. Each file gets its
own directory under the output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyze,
	}
	analyzeCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Output.Dir = out
	}

	path := datasetPath(cfg, args)
	a, err := analyzer.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := a.Analyze(ctx, path); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	t := report.Table{Headers: []string{"File", "Rows", "Outputs", "Output Dir", "Duration", "Error"}}
	for _, r := range a.Results() {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		t.Rows = append(t.Rows, []string{
			r.File, strconv.Itoa(r.Rows), strconv.Itoa(len(r.Files)), r.OutputDir, r.Duration.Round(time.Millisecond).String(), errText,
		})
	}
	w := cmd.OutOrStdout()
	report.PrintTable(w, t)

	stats := a.Stats()
	fmt.Fprintf(w, "\nAnalysis completed in %v\n", stats.ProcessingTime.Round(time.Millisecond))
	fmt.Fprintf(w, "Files: %d processed, %d failed, %d rows, %d outputs written\n",
		stats.ProcessedFiles, stats.FailedFiles, stats.TotalRows, stats.WrittenFiles)
	if stats.FailedFiles > 0 {
		return fmt.Errorf("%d of %d files failed", stats.FailedFiles, stats.TotalFiles)
	}
	return nil
}

func newQualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality [csv]",
		Short: "Assess missing values, placeholders, duplicates and outliers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, args, func(cfg *config.AppConfig, f *dataset.Frame, path string) error {
				r := analysis.Quality(f)
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Records: %d, complete rows: %d, duplicate rows: %d\n\n", r.Rows, r.CompleteRows, r.DuplicateRows)
				report.PrintTable(w, analysis.MissingTable(r.MissingColumns()))

				if err := report.SaveCSV(filepath.Join(cfg.Output.Dir, "missing_values_summary.csv"), analysis.MissingTable(r.Missing)); err != nil {
					return err
				}
				return saveReport(cmd, filepath.Join(cfg.Output.Dir, "data_quality_report.md"), analysis.QualityMarkdown(r, now()))
			})
		},
	}
}

func newSegmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segment [csv]",
		Short: "Score records and split them into performance tiers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, args, func(cfg *config.AppConfig, f *dataset.Frame, path string) error {
				r, err := analysis.Segment(f)
				if err != nil {
					return err
				}
				counts := report.Table{Headers: []string{"Tier", "Records"}}
				for _, tier := range analysis.TierLabels {
					counts.Rows = append(counts.Rows, []string{tier, strconv.Itoa(r.TierCounts[tier])})
				}
				w := cmd.OutOrStdout()
				report.PrintTable(w, counts)
				fmt.Fprintf(w, "\nBest performing state: %s\n", r.Insights.BestState)

				if r.Tiers != nil {
					if err := report.SaveCSV(filepath.Join(cfg.Output.Dir, "performance_tier_analysis.csv"), report.FromGrouped(r.Tiers, 2)); err != nil {
						return err
					}
				}
				return saveReport(cmd, filepath.Join(cfg.Output.Dir, "segmentation_report.md"), analysis.SegmentationMarkdown(r, now()))
			})
		},
	}
}

func newOpportunitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opportunities [csv]",
		Short: "Rank segments, states, products and agencies by sales opportunity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, args, func(cfg *config.AppConfig, f *dataset.Frame, path string) error {
				r, err := analysis.Opportunities(f)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if r.StateOpportunities != nil {
					fmt.Fprintln(w, "State opportunities:")
					report.PrintTable(w, report.FromGrouped(r.StateOpportunities.Head(10), 2))
				}
				if r.ExpansionCandidates != nil {
					fmt.Fprintln(w, "\nExpansion candidates:")
					report.PrintTable(w, report.FromGrouped(r.ExpansionCandidates, 2))
				}
				return saveReport(cmd, filepath.Join(cfg.Output.Dir, "market_opportunities_report.md"), analysis.OpportunityMarkdown(r, now()))
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var exportCmd = &cobra.Command{
		Use:   "export-sqlite [csv]",
		Short: "Load the dataset with derived metrics into a SQLite table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, args, func(cfg *config.AppConfig, f *dataset.Frame, path string) error {
				dbPath, _ := cmd.Flags().GetString("db")
				table, _ := cmd.Flags().GetString("table")
				if dbPath == "" {
					dbPath = cfg.Storage.SQLitePath
				}
				if table == "" {
					table = cfg.Storage.Table
				}
				return exportSQLite(cmd, f, dbPath, table)
			})
		},
	}
	exportCmd.Flags().String("db", "", "SQLite database path (overrides config)")
	exportCmd.Flags().String("table", "", "table name (overrides config)")
	return exportCmd
}

func exportSQLite(cmd *cobra.Command, f *dataset.Frame, dbPath, table string) error {
	dataset.Derive(f)

	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	n, err := s.ImportFrame(ctx, f, table)
	if err != nil {
		return err
	}
	tables, err := s.Schema(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Imported %d rows into %s (%s)\n\n", n, table, dbPath)
	t := report.Table{Headers: []string{"Table", "Columns", "Rows"}}
	for _, ti := range tables {
		t.Rows = append(t.Rows, []string{ti.Name, strconv.Itoa(len(ti.Columns)), strconv.FormatInt(ti.RowCount, 10)})
	}
	report.PrintTable(w, t)
	return nil
}

// runSingle loads one CSV file and hands it to fn
func runSingle(cmd *cobra.Command, args []string, fn func(cfg *config.AppConfig, f *dataset.Frame, path string) error) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	path := datasetPath(cfg, args)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}
	f, err := dataset.Load(ctx, path, cfg.DatasetOptions())
	if err != nil {
		return err
	}
	logger.Info().Str("file", path).Int("rows", f.Len()).Msg("dataset loaded")
	return fn(cfg, f, path)
}

func datasetPath(cfg *config.AppConfig, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Dataset.Path
}

func saveReport(cmd *cobra.Command, path, body string) error {
	if err := report.SaveText(path, body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved to %s\n", path)
	return nil
}
