package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/agents"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecorder() *recorder { return &recorder{events: make(map[string][]Event)} }

func (r *recorder) Publish(id string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id] = append(r.events[id], event.(Event))
}

func (r *recorder) types(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events[id] {
		out = append(out, e.Type)
	}
	return out
}

type runnerFunc func(ctx context.Context, csvFile, outDir string) agents.ResearchResult

func (f runnerFunc) Run(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
	return f(ctx, csvFile, outDir)
}

func TestManagerCompletes(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	runner := runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "research.md"), []byte("# Findings"), 0644))
		time.Sleep(300 * time.Millisecond)
		return agents.ResearchResult{Success: true, CSVFile: csvFile, OutputDir: outDir, Report: "# Findings"}
	})
	m := NewManager(runner, rec, Options{
		OutputRoot: dir,
		WatchDir:   dir,
		WatchFiles: []string{"research.md"},
		Debounce:   50 * time.Millisecond,
	}, zerolog.Nop())

	id, err := m.Start("data.csv")
	require.NoError(t, err)
	m.Wait()

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.True(t, job.Success)
	assert.True(t, job.ResultsReady)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, filepath.Join(dir, "analysis_output_"+id), job.OutputDir)

	res, err := m.Result(id)
	require.NoError(t, err)
	assert.Equal(t, "# Findings", res.Report)

	types := rec.types(id)
	require.NotEmpty(t, types)
	assert.Equal(t, EventStatusUpdate, types[0])
	assert.Equal(t, EventAnalysisComplete, types[len(types)-1])
	assert.Contains(t, types, EventFileUpdate)
}

func TestManagerFailedRun(t *testing.T) {
	rec := newRecorder()
	m := NewManager(runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		return agents.ResearchResult{Error: "CSV file missing.csv not found"}
	}), rec, Options{OutputRoot: t.TempDir()}, zerolog.Nop())

	id, err := m.Start("missing.csv")
	require.NoError(t, err)
	m.Wait()

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "CSV file missing.csv not found", job.Error)

	rec.mu.Lock()
	last := rec.events[id][len(rec.events[id])-1]
	rec.mu.Unlock()
	assert.Equal(t, EventAnalysisComplete, last.Type)
	require.NotNil(t, last.Success)
	assert.False(t, *last.Success)
	assert.Contains(t, last.Message, "Analysis failed")
}

func TestManagerRunnerPanic(t *testing.T) {
	rec := newRecorder()
	m := NewManager(runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		panic("boom")
	}), rec, Options{OutputRoot: t.TempDir()}, zerolog.Nop())

	id, err := m.Start("data.csv")
	require.NoError(t, err)
	m.Wait()

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "boom")
	assert.Contains(t, rec.types(id), EventAnalysisError)

	_, err = m.Result(id)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManagerUnknownID(t *testing.T) {
	m := NewManager(nil, nil, Options{}, zerolog.Nop())

	_, err := m.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Result("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, m.List())
}

func TestManagerListAndClose(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		select {
		case <-ctx.Done():
			return agents.ResearchResult{Error: ctx.Err().Error()}
		case <-release:
			return agents.ResearchResult{Success: true}
		}
	}), nil, Options{OutputRoot: t.TempDir()}, zerolog.Nop())

	first, err := m.Start("a.csv")
	require.NoError(t, err)
	second, err := m.Start("b.csv")
	require.NoError(t, err)

	jobs := m.List()
	require.Len(t, jobs, 2)
	ids := []string{jobs[0].ID, jobs[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)

	m.Close()
	for _, id := range ids {
		job, err := m.Status(id)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, job.Status)
		assert.True(t, job.Status.Done())
	}

	_, err = m.Start("c.csv")
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestManagerRunsOneJobAtATime(t *testing.T) {
	var (
		mu            sync.Mutex
		active, maxed int
	)
	rec := newRecorder()
	m := NewManager(runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		mu.Lock()
		active++
		if active > maxed {
			maxed = active
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return agents.ResearchResult{Success: true, CSVFile: csvFile, OutputDir: outDir}
	}), rec, Options{OutputRoot: t.TempDir()}, zerolog.Nop())

	var ids []string
	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		id, err := m.Start(name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	m.Wait()

	assert.Equal(t, 1, maxed)
	waited := 0
	for _, id := range ids {
		job, err := m.Status(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, job.Status)

		rec.mu.Lock()
		for _, e := range rec.events[id] {
			if e.Status == StatusStarting {
				waited++
			}
		}
		rec.mu.Unlock()
	}
	assert.Equal(t, 2, waited, "queued jobs announce the wait")
}
