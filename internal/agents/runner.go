// Package agents drives fixed sequences of LLM prompts that produce the
// Markdown research reports
package agents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"agency-insights/pkg/interfaces"
)

// Stage is one prompt of a pipeline
type Stage struct {
	Name string
	// Prompt is a text/template rendered with PromptData
	Prompt string
	// OutputFile is the report the stage is expected to produce, relative to the comm dir
	OutputFile string
	MaxTurns   int
}

// Pipeline is an ordered list of stages
type Pipeline struct {
	Name   string
	Stages []Stage
}

// PromptData is the template input of every stage
type PromptData struct {
	DataSource string
	CommDir    string
	ChartsDir  string
	// Objective and Schema feed the database research prompt
	Objective string
	Schema    string
}

// StageResult is the outcome of one stage. Content holds the model text, or
// "Failed: <err>" when the stage failed.
type StageResult struct {
	Stage      string        `json:"stage"`
	OutputFile string        `json:"output_file,omitempty"`
	Content    string        `json:"content"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Wrote      bool          `json:"wrote_output"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Runner executes pipelines stage by stage against one LLM
type Runner struct {
	llm    interfaces.LLM
	logger zerolog.Logger
}

// NewRunner creates a runner
func NewRunner(llm interfaces.LLM, logger zerolog.Logger) *Runner {
	return &Runner{llm: llm, logger: logger.With().Str("component", "agents").Logger()}
}

// Run executes every stage in order. A failed stage is recorded and the
// pipeline continues with the next one.
func (r *Runner) Run(ctx context.Context, p Pipeline, data PromptData) []StageResult {
	logger := r.logger.With().Str("pipeline", p.Name).Logger()
	if data.CommDir != "" {
		if err := os.MkdirAll(data.CommDir, 0755); err != nil {
			logger.Error().Err(err).Msg("failed to create comm dir")
		}
	}

	results := make([]StageResult, 0, len(p.Stages))
	for i, s := range p.Stages {
		logger.Info().Int("step", i+1).Int("steps", len(p.Stages)).Str("stage", s.Name).Msg("starting stage")
		res := r.runStage(ctx, s, data)
		if res.Success {
			logger.Info().Str("stage", s.Name).Int("chars", len(res.Content)).Dur("duration", res.Duration).Msg("stage completed")
		} else {
			logger.Error().Str("stage", s.Name).Str("error", res.Error).Msg("stage failed")
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) runStage(ctx context.Context, s Stage, data PromptData) StageResult {
	res := StageResult{Stage: s.Name, StartedAt: time.Now()}
	if s.OutputFile != "" {
		res.OutputFile = filepath.Join(data.CommDir, s.OutputFile)
	}
	fail := func(err error) StageResult {
		res.Error = err.Error()
		res.Content = "Failed: " + err.Error()
		res.Duration = time.Since(res.StartedAt)
		return res
	}

	prompt, err := Render(s.Prompt, data)
	if err != nil {
		return fail(err)
	}
	var opts *interfaces.LLMOptions
	if s.MaxTurns > 0 {
		turns := s.MaxTurns
		opts = &interfaces.LLMOptions{MaxTurns: &turns}
	}
	text, err := r.llm.Invoke(ctx, prompt, opts)
	if err != nil {
		return fail(err)
	}
	res.Success = true
	res.Content = text
	res.Duration = time.Since(res.StartedAt)

	if res.OutputFile != "" {
		if _, err := os.Stat(res.OutputFile); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(res.OutputFile, []byte(text), 0644); err != nil {
				r.logger.Warn().Err(err).Str("file", res.OutputFile).Msg("failed to write stage output")
			} else {
				res.Wrote = true
			}
		}
	}
	return res
}

// Render executes a prompt template
func Render(prompt string, data PromptData) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(prompt)
	if err != nil {
		return "", fmt.Errorf("invalid prompt template: %w", err)
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}
