package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ResearchResults collects the stage results of a full research run
type ResearchResults struct {
	DataAnalysis  []StageResult `json:"data_analysis"`
	SalesResearch []StageResult `json:"sales_research"`
	FinalReports  []StageResult `json:"final_reports"`
	Files         []string      `json:"files"`
	Missing       []string      `json:"missing"`
	Duration      time.Duration `json:"duration"`
}

// Failed counts the failed stages
func (r *ResearchResults) Failed() int {
	n := 0
	for _, group := range [][]StageResult{r.DataAnalysis, r.SalesResearch, r.FinalReports} {
		for _, s := range group {
			if !s.Success {
				n++
			}
		}
	}
	return n
}

// Orchestrator runs data analysis, sales research and the final reports in order
type Orchestrator struct {
	runner   *Runner
	data     PromptData
	maxTurns int
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator writing into commDir. maxTurns caps
// the turns of every stage; zero keeps the stage defaults.
func NewOrchestrator(runner *Runner, dataSource, commDir string, maxTurns int) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		data: PromptData{
			DataSource: dataSource,
			CommDir:    commDir,
			ChartsDir:  filepath.Join(commDir, "charts"),
		},
		maxTurns: maxTurns,
		logger:   runner.logger.With().Str("data_source", dataSource).Logger(),
	}
}

// Run executes the whole research pipeline. Stage failures are recorded in
// the results; only an unusable comm dir is an error.
func (o *Orchestrator) Run(ctx context.Context) (*ResearchResults, error) {
	start := time.Now()
	if err := os.MkdirAll(o.data.CommDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create comm dir: %w", err)
	}
	o.logger.Info().Str("comm_dir", o.data.CommDir).Msg("starting research pipeline")

	r := &ResearchResults{}
	r.DataAnalysis = o.runner.Run(ctx, o.capped(DataAnalyst()), o.data)
	r.SalesResearch = o.runner.Run(ctx, o.capped(SalesResearch()), o.data)
	r.FinalReports = o.runner.Run(ctx, o.capped(FinalReports()), o.data)

	var err error
	if r.Files, err = o.ListGeneratedFiles(); err != nil {
		return r, err
	}
	if r.Missing, err = o.ValidateResults(); err != nil {
		return r, err
	}
	r.Duration = time.Since(start)

	o.logger.Info().
		Int("files", len(r.Files)).
		Strs("missing", r.Missing).
		Int("failed_stages", r.Failed()).
		Dur("duration", r.Duration).
		Msg("research pipeline completed")
	return r, nil
}

// ValidateResults returns the expected reports missing from the comm dir
func (o *Orchestrator) ValidateResults() ([]string, error) {
	files, err := o.ListGeneratedFiles()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[f] = true
	}
	var missing []string
	for _, f := range ExpectedFiles {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// ListGeneratedFiles returns the sorted names of the Markdown files in the comm dir
func (o *Orchestrator) ListGeneratedFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(o.data.CommDir, "*.md"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	sort.Strings(names)
	return names, nil
}

func (o *Orchestrator) capped(p Pipeline) Pipeline {
	if o.maxTurns <= 0 {
		return p
	}
	for i := range p.Stages {
		if p.Stages[i].MaxTurns > o.maxTurns {
			p.Stages[i].MaxTurns = o.maxTurns
		}
	}
	return p
}
