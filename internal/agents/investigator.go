package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"agency-insights/internal/config"
	"agency-insights/internal/llm"
)

// CLIRunner runs one prompt through a command line LLM
type CLIRunner interface {
	Run(ctx context.Context, prompt string) (*llm.CLIResult, error)
}

// ResearchResult is the outcome of one investigative report run
type ResearchResult struct {
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
	CSVFile    string    `json:"csv_file"`
	OutputDir  string    `json:"output_directory"`
	Report     string    `json:"research_report,omitempty"`
	ReportSize int       `json:"research_file_size,omitempty"`
	FilePath   string    `json:"research_file_path,omitempty"`
	ReturnCode int       `json:"command_return_code"`
	Stdout     string    `json:"command_output"`
	Stderr     string    `json:"command_errors"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Investigator asks the CLI for a single research.md report about a CSV file
type Investigator struct {
	cli     CLIRunner
	workDir string
	logger  zerolog.Logger
}

// NewInvestigator creates an investigator. The CLI must run in workDir,
// where it is expected to leave research.md.
func NewInvestigator(cli CLIRunner, workDir string, logger zerolog.Logger) *Investigator {
	return &Investigator{cli: cli, workDir: workDir, logger: logger.With().Str("component", "investigator").Logger()}
}

// NewInvestigatorFromConfig builds an investigator on the claude CLI. Other
// providers cannot drive an investigation, so their configuration only
// contributes the CLI path and arguments; the key comes from ANTHROPIC_API_KEY.
func NewInvestigatorFromConfig(cfg *config.AppConfig, workDir string, logger zerolog.Logger) (*Investigator, error) {
	lc := cfg.LLM
	if lc.Provider != "claude-cli" {
		lc.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		lc.Model = ""
	}
	cli, err := llm.NewClaudeCLI(&lc, logger)
	if err != nil {
		return nil, err
	}
	return NewInvestigator(cli.WithWorkDir(workDir), workDir, logger), nil
}

// Run executes the investigation and moves research.md into outDir
func (i *Investigator) Run(ctx context.Context, csvFile, outDir string) ResearchResult {
	res := ResearchResult{Timestamp: time.Now(), CSVFile: csvFile, OutputDir: outDir}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		res.Error = fmt.Sprintf("failed to create output directory: %v", err)
		return res
	}
	if _, err := os.Stat(csvFile); err != nil {
		res.Error = fmt.Sprintf("CSV file %s not found", csvFile)
		return res
	}

	prompt, err := Render(investigationPrompt, PromptData{DataSource: csvFile, CommDir: outDir, ChartsDir: filepath.Join(outDir, "charts")})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	i.logger.Info().Str("csv", csvFile).Str("output_dir", outDir).Msg("running investigative analysis")
	out, err := i.cli.Run(ctx, prompt)
	if out != nil {
		res.ReturnCode = out.ExitCode
		res.Stdout = orDefault(out.Stdout, "No output")
		res.Stderr = orDefault(out.Stderr, "No errors")
	}
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			res.Error = "Analysis timed out: " + err.Error()
		} else {
			res.Error = "Analysis failed: " + err.Error()
		}
		i.logger.Error().Err(err).Msg("investigative analysis failed")
		return res
	}

	src := filepath.Join(i.workDir, FileInvestigation)
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		res.Message = "Research report not generated - check command output for details"
		return res
	}
	if err != nil {
		res.Error = fmt.Sprintf("failed to read %s: %v", src, err)
		return res
	}

	dst := filepath.Join(outDir, FileInvestigation)
	if err := move(src, dst); err != nil {
		res.Error = fmt.Sprintf("failed to move report: %v", err)
		return res
	}
	res.Success = true
	res.Report = string(data)
	res.ReportSize = len(data)
	res.FilePath = dst
	res.Message = "Research report generated successfully"
	i.logger.Info().Str("report", dst).Int("bytes", len(data)).Msg("research report saved")
	return res
}

// move renames src to dst, copying when they are on different devices
func move(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
