package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agency-insights/internal/agents"
	"agency-insights/internal/config"
	"agency-insights/internal/llm"
	"agency-insights/internal/report"
	"agency-insights/internal/store"
	"agency-insights/pkg/interfaces"
)

// newLLM builds the model behind the research commands
var newLLM = func(cfg *config.AppConfig, logger zerolog.Logger) (interfaces.LLM, error) {
	return llm.NewFactory(logger).Create(&cfg.LLM)
}

func newResearchCmd() *cobra.Command {
	var researchCmd = &cobra.Command{
		Use:   "research",
		Short: "Run the data analyst, sales research and final report agents",
		Long: `Run the deep research pipeline: four data analysis stages, four sales
research stages, then the final sales report and executive dashboard. Every stage
writes a Markdown file into the agent communication directory. Failed stages are
reported and the pipeline continues.`,
		Args: cobra.NoArgs,
		RunE: runResearch,
	}
	researchCmd.Flags().String("data", "", "dataset path (overrides config)")
	researchCmd.Flags().Int("max-turns", 0, "cap the turns of every stage (overrides config)")
	return researchCmd
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	dataPath := cfg.Dataset.Path
	if d, _ := cmd.Flags().GetString("data"); d != "" {
		dataPath = d
	}
	maxTurns := cfg.Agents.MaxTurns
	if m, _ := cmd.Flags().GetInt("max-turns"); m > 0 {
		maxTurns = m
	}

	model, err := newLLM(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	orch := agents.NewOrchestrator(agents.NewRunner(model, logger), dataPath, cfg.Agents.CommDir, maxTurns)
	results, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	t := report.Table{Headers: []string{"Pipeline", "Stage", "Output", "Status", "Duration"}}
	for _, group := range []struct {
		name    string
		results []agents.StageResult
	}{
		{"data analysis", results.DataAnalysis},
		{"sales research", results.SalesResearch},
		{"final reports", results.FinalReports},
	} {
		for _, r := range group.results {
			status := "ok"
			if !r.Success {
				status = "failed: " + r.Error
			}
			t.Rows = append(t.Rows, []string{group.name, r.Stage, filepath.Base(r.OutputFile), status, r.Duration.Round(time.Second).String()})
		}
	}
	report.PrintTable(w, t)

	fmt.Fprintf(w, "\nResearch completed in %v, %d files generated\n", results.Duration.Round(time.Second), len(results.Files))
	if len(results.Missing) > 0 {
		fmt.Fprintf(w, "Missing expected files: %s\n", strings.Join(results.Missing, ", "))
	}
	if failed := results.Failed(); failed > 0 {
		fmt.Fprintf(w, "%d stages failed\n", failed)
	}
	return nil
}

func newInvestigateCmd() *cobra.Command {
	var investigateCmd = &cobra.Command{
		Use:   "investigate [csv]",
		Short: "Ask the claude CLI for one investigative research report",
		Long: `Run the claude CLI over a CSV file with the investigative research prompt.
The CLI writes research.md into the working directory; it is moved into the
output directory afterwards.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInvestigate,
	}
	investigateCmd.Flags().StringP("output", "o", "analysis_output", "directory research.md is moved into")
	investigateCmd.Flags().String("workdir", ".", "directory the CLI runs in")
	investigateCmd.Flags().Bool("json", false, "print the full result as JSON")
	return investigateCmd
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	outDir, _ := cmd.Flags().GetString("output")
	workDir, _ := cmd.Flags().GetString("workdir")
	asJSON, _ := cmd.Flags().GetBool("json")

	inv, err := agents.NewInvestigatorFromConfig(cfg, workDir, logger)
	if err != nil {
		return fmt.Errorf("failed to create investigator: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	res := inv.Run(ctx, datasetPath(cfg, args), outDir)

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "CSV file: %s\n", res.CSVFile)
		fmt.Fprintf(w, "Output directory: %s\n", res.OutputDir)
		fmt.Fprintf(w, "Return code: %s\n", strconv.Itoa(res.ReturnCode))
		if res.Message != "" {
			fmt.Fprintln(w, res.Message)
		}
		if res.FilePath != "" {
			fmt.Fprintf(w, "Report: %s (%d bytes)\n", res.FilePath, res.ReportSize)
		}
	}
	if res.Error != "" {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

func newResearchSQLCmd() *cobra.Command {
	var sqlCmd = &cobra.Command{
		Use:   "research-sql",
		Short: "Ask the LLM for a research report on the SQLite database",
		Long: `Send the schema of the SQLite database (tables, typed columns, row counts)
and a research objective to the LLM. The report is saved as sql_research_<time>.md
and the full result as sql_research_<time>.json in the output directory.
Load the database first with export-sqlite.`,
		Args: cobra.NoArgs,
		RunE: runResearchSQL,
	}
	sqlCmd.Flags().String("objective", "", "research objective (default: market structure overview)")
	sqlCmd.Flags().String("db", "", "SQLite database path (overrides config)")
	sqlCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	return sqlCmd
}

func runResearchSQL(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.Storage.SQLitePath
	}
	outDir, _ := cmd.Flags().GetString("output")
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	objective, _ := cmd.Flags().GetString("objective")

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database not found: %s (run export-sqlite first)", dbPath)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	model, err := newLLM(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := agents.NewSchemaResearcher(model, logger).Run(ctx, s, filepath.Base(dbPath), objective, outDir)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	t := report.Table{Headers: []string{"Table", "Columns", "Rows"}}
	names := make([]string, 0, len(res.Schema))
	for name := range res.Schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table := res.Schema[name]
		t.Rows = append(t.Rows, []string{name, strconv.Itoa(len(table.Columns)), strconv.FormatInt(table.RowCount, 10)})
	}
	report.PrintTable(w, t)
	if res.Error != "" {
		return fmt.Errorf("%s", res.Error)
	}
	fmt.Fprintf(w, "\nReport: %s\n", res.ReportFile)
	return nil
}
