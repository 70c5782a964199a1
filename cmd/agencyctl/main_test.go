package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/config"
	"agency-insights/internal/dataset/datasettest"
	"agency-insights/internal/llm/llmtest"
	"agency-insights/pkg/interfaces"
)

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, verbose = "", false
	t.Cleanup(func() { configFile, verbose = "", false })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// workspace writes the sample CSV and a config pointing into a temp dir
func workspace(t *testing.T) (dir, cfgPath, csvPath string) {
	t.Helper()
	dir = t.TempDir()
	csvPath = filepath.Join(dir, "agencies.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(datasettest.SampleCSV), 0644))

	cfg := config.DefaultConfig()
	cfg.Dataset.Path = csvPath
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Agents.CommDir = filepath.Join(dir, "comm")
	cfg.Storage.SQLitePath = filepath.Join(dir, "agency.sqlite")
	cfg.LogLevel = "ERROR"
	cfgPath = filepath.Join(dir, "config.json")
	require.NoError(t, cfg.SaveToFile(cfgPath))
	return dir, cfgPath, csvPath
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency-config.json")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration saved to: "+path)
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid!")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm": {"provider": "nope"}}`), 0644))

	_, err := execute(t, "config", "validate", path)
	assert.Error(t, err)
}

func TestQualityCommand(t *testing.T) {
	dir, cfgPath, _ := workspace(t)

	out, err := execute(t, "--config", cfgPath, "quality")
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 12, complete rows: 10, duplicate rows: 0")
	assert.Contains(t, out, "PRD_INCRD_LOSSES_AMT")
	assert.FileExists(t, filepath.Join(dir, "out", "data_quality_report.md"))
	assert.FileExists(t, filepath.Join(dir, "out", "missing_values_summary.csv"))
}

func TestSegmentCommand(t *testing.T) {
	dir, cfgPath, csvPath := workspace(t)

	out, err := execute(t, "-c", cfgPath, "segment", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Best performing state: ")
	assert.FileExists(t, filepath.Join(dir, "out", "segmentation_report.md"))
	assert.FileExists(t, filepath.Join(dir, "out", "performance_tier_analysis.csv"))
}

func TestOpportunitiesCommand(t *testing.T) {
	dir, cfgPath, _ := workspace(t)

	out, err := execute(t, "-c", cfgPath, "opportunities")
	require.NoError(t, err)
	assert.Contains(t, out, "State opportunities:")
	assert.FileExists(t, filepath.Join(dir, "out", "market_opportunities_report.md"))
}

func TestAnalyzeCommand(t *testing.T) {
	dir, cfgPath, csvPath := workspace(t)

	out, err := execute(t, "-c", cfgPath, "analyze", csvPath, "--output", filepath.Join(dir, "results"))
	require.NoError(t, err)
	assert.Contains(t, out, "agencies.csv")
	assert.FileExists(t, filepath.Join(dir, "results", "agencies", "performance_report.md"))
}

func TestAnalyzeMissingFile(t *testing.T) {
	dir, cfgPath, _ := workspace(t)

	_, err := execute(t, "-c", cfgPath, "quality", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestExportSQLiteCommand(t *testing.T) {
	dir, cfgPath, _ := workspace(t)

	out, err := execute(t, "-c", cfgPath, "export-sqlite", "--table", "records")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 12 rows into records")
	assert.FileExists(t, filepath.Join(dir, "agency.sqlite"))
}

// useFakeLLM routes the research commands to fake for the rest of the test
func useFakeLLM(t *testing.T, fake *llmtest.FakeLLM) {
	t.Helper()
	orig := newLLM
	newLLM = func(*config.AppConfig, zerolog.Logger) (interfaces.LLM, error) { return fake, nil }
	t.Cleanup(func() { newLLM = orig })
}

func TestResearchSQLCommand(t *testing.T) {
	dir, cfgPath, _ := workspace(t)
	fake := llmtest.NewFakeLLM()
	fake.AddResponse("Task: top vendors", "# Vendors\n\nVendor A leads.")
	useFakeLLM(t, fake)

	_, err := execute(t, "-c", cfgPath, "export-sqlite", "--table", "records")
	require.NoError(t, err)

	out, err := execute(t, "-c", cfgPath, "research-sql", "--objective", "top vendors")
	require.NoError(t, err)
	assert.Contains(t, out, "records")
	assert.Contains(t, out, "Report: "+filepath.Join(dir, "out", "sql_research_"))

	require.Equal(t, 1, fake.GetCallCount())
	prompt := fake.Calls()[0].Prompt
	assert.Contains(t, prompt, "Database: 'agency.sqlite'")
	assert.Contains(t, prompt, "WRTN_PREM_AMT (REAL)")

	reports, err := filepath.Glob(filepath.Join(dir, "out", "sql_research_*.md"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	data, err := os.ReadFile(reports[0])
	require.NoError(t, err)
	assert.Equal(t, "# Vendors\n\nVendor A leads.", string(data))
}

func TestResearchSQLCommandErrors(t *testing.T) {
	_, cfgPath, _ := workspace(t)
	fake := llmtest.NewFakeLLM()
	fake.AddError("Task:", errors.New("quota exceeded"))
	useFakeLLM(t, fake)

	_, err := execute(t, "-c", cfgPath, "research-sql")
	assert.ErrorContains(t, err, "run export-sqlite first")
	assert.Zero(t, fake.GetCallCount())

	_, err = execute(t, "-c", cfgPath, "export-sqlite")
	require.NoError(t, err)
	_, err = execute(t, "-c", cfgPath, "research-sql")
	assert.ErrorContains(t, err, "research failed: quota exceeded")
}
