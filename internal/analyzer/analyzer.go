// Package analyzer runs the analysis suite over one CSV file or a directory of them
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"agency-insights/internal/analysis"
	"agency-insights/internal/config"
	"agency-insights/internal/dataset"
	"agency-insights/pkg/interfaces"
)

// FileResult is the outcome for a single CSV file
type FileResult struct {
	File      string        `json:"file"`
	OutputDir string        `json:"output_dir"`
	Rows      int           `json:"rows"`
	Files     []string      `json:"files"`
	Duration  time.Duration `json:"duration"`
	Error     error         `json:"-"`
}

// Analyzer processes CSV files concurrently
type Analyzer struct {
	config *config.AppConfig
	logger zerolog.Logger

	stats      interfaces.AnalyzerStats
	results    []FileResult
	statsMutex sync.RWMutex

	maxConcurrency int
}

var _ interfaces.Analyzer = (*Analyzer)(nil)

// New creates an analyzer writing under cfg.Output.Dir
func New(cfg *config.AppConfig, logger zerolog.Logger) (*Analyzer, error) {
	if cfg.Output.Dir == "" {
		return nil, fmt.Errorf("invalid configuration: output directory is required")
	}
	workers := cfg.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		config:         cfg,
		logger:         logger.With().Str("component", "analyzer").Logger(),
		maxConcurrency: workers,
	}, nil
}

// Analyze processes path, a CSV file or a directory walked for CSV files.
// Per-file failures are counted, not returned.
func (a *Analyzer) Analyze(ctx context.Context, path string) error {
	startTime := time.Now()

	files, err := a.filesToProcess(path)
	if err != nil {
		return fmt.Errorf("failed to get files to process: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV files found in %s", path)
	}

	a.statsMutex.Lock()
	a.stats = interfaces.AnalyzerStats{TotalFiles: len(files)}
	a.results = nil
	a.statsMutex.Unlock()

	fileChan := make(chan string, len(files))
	resultChan := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < a.maxConcurrency; i++ {
		wg.Add(1)
		go a.worker(ctx, fileChan, resultChan, &wg)
	}

	go func() {
		defer close(fileChan)
		for _, file := range files {
			select {
			case fileChan <- file:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		a.statsMutex.Lock()
		if result.Error != nil {
			a.stats.FailedFiles++
			a.logger.Error().Err(result.Error).Str("file", result.File).Msg("analysis failed")
		} else {
			a.stats.ProcessedFiles++
			a.stats.TotalRows += result.Rows
			a.stats.WrittenFiles += len(result.Files)
		}
		a.results = append(a.results, result)
		a.statsMutex.Unlock()
	}

	a.statsMutex.Lock()
	a.stats.ProcessingTime = time.Since(startTime)
	if done := a.stats.ProcessedFiles + a.stats.FailedFiles; done > 0 {
		a.stats.AverageFile = a.stats.ProcessingTime / time.Duration(done)
	}
	sort.Slice(a.results, func(i, j int) bool { return a.results[i].File < a.results[j].File })
	stats := a.stats
	a.statsMutex.Unlock()

	a.logger.Info().
		Int("files", stats.TotalFiles).
		Int("processed", stats.ProcessedFiles).
		Int("failed", stats.FailedFiles).
		Dur("duration", stats.ProcessingTime).
		Msg("batch analysis complete")
	return ctx.Err()
}

func (a *Analyzer) worker(ctx context.Context, fileChan <-chan string, resultChan chan<- FileResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case file, ok := <-fileChan:
			if !ok {
				return
			}
			result := a.processFile(ctx, file)
			select {
			case resultChan <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *Analyzer) processFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	result := FileResult{File: path, OutputDir: a.OutputDirFor(path)}

	f, err := dataset.Load(ctx, path, a.config.DatasetOptions())
	if err != nil {
		result.Error = err
		return result
	}
	result.Rows = f.Len()

	suite := analysis.NewSuite(result.OutputDir, filepath.Join(result.OutputDir, "charts"), a.logger)
	res, err := suite.Run(ctx, f, path)
	if err != nil {
		result.Error = fmt.Errorf("failed to analyze %s: %w", path, err)
		return result
	}
	result.Files = res.Files
	result.Duration = time.Since(start)
	return result
}

// OutputDirFor returns the directory the reports of path are written to
func (a *Analyzer) OutputDirFor(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(a.config.Output.Dir, base)
}

func (a *Analyzer) filesToProcess(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if isCSV(path) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isCSV(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// Stats returns the statistics of the last run
func (a *Analyzer) Stats() interfaces.AnalyzerStats {
	a.statsMutex.RLock()
	defer a.statsMutex.RUnlock()
	return a.stats
}

// Results returns the per-file outcomes of the last run, ordered by file
func (a *Analyzer) Results() []FileResult {
	a.statsMutex.RLock()
	defer a.statsMutex.RUnlock()
	return append([]FileResult(nil), a.results...)
}
