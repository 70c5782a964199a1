// Package jobs tracks background investigative analyses
package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agency-insights/internal/agents"
	"agency-insights/internal/watch"
	"agency-insights/pkg/interfaces"
)

var (
	// ErrNotFound is returned for unknown analysis ids
	ErrNotFound = errors.New("analysis not found")
	// ErrNotReady is returned when results are requested before completion
	ErrNotReady = errors.New("analysis results not available")
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
)

// Done reports whether the job reached a final state
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

// Event types sent to subscribers
const (
	EventStatusUpdate     = "status_update"
	EventFileUpdate       = "file_update"
	EventAnalysisComplete = "analysis_complete"
	EventAnalysisError    = "analysis_error"
	EventHeartbeat        = "heartbeat"
)

// Event is one message about a job
type Event struct {
	Type      string    `json:"type"`
	Status    Status    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Error     string    `json:"error,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Content   string    `json:"content,omitempty"`
	Size      int       `json:"size,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is the tracked state of one analysis
type Job struct {
	ID           string     `json:"analysis_id"`
	Status       Status     `json:"status"`
	CSVFile      string     `json:"csv_file"`
	OutputDir    string     `json:"output_directory"`
	Timestamp    time.Time  `json:"timestamp"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	ResultsReady bool       `json:"results_available"`
	DownloadURL  string     `json:"download_url,omitempty"`
	result       *agents.ResearchResult
}

// Runner produces the research result for one CSV file
type Runner interface {
	Run(ctx context.Context, csvFile, outDir string) agents.ResearchResult
}

// Options configures a Manager
type Options struct {
	OutputRoot string
	WatchDir   string
	WatchFiles []string
	Debounce   time.Duration
}

// Manager starts analyses in the background and keeps their state in memory.
// Runs share the CLI working directory and the watched files, so one job runs
// at a time and later jobs wait in the starting state.
type Manager struct {
	mu      sync.RWMutex
	slot    chan struct{}
	jobs    map[string]*Job
	runner  Runner
	pub     interfaces.Publisher
	opts    Options
	logger  zerolog.Logger
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewManager creates a manager. A nil publisher drops events.
func NewManager(runner Runner, pub interfaces.Publisher, opts Options, logger zerolog.Logger) *Manager {
	if opts.OutputRoot == "" {
		opts.OutputRoot = "."
	}
	if opts.WatchDir == "" {
		opts.WatchDir = "."
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:    make(map[string]*Job),
		slot:    make(chan struct{}, 1),
		runner:  runner,
		pub:     pub,
		opts:    opts,
		logger:  logger.With().Str("component", "jobs").Logger(),
		baseCtx: ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start registers a job for csvFile and runs it in the background
func (m *Manager) Start(csvFile string) (string, error) {
	if err := m.baseCtx.Err(); err != nil {
		return "", fmt.Errorf("manager is closed: %w", err)
	}
	id := uuid.New().String()
	job := &Job{
		ID:        id,
		Status:    StatusStarting,
		CSVFile:   csvFile,
		OutputDir: filepath.Join(m.opts.OutputRoot, "analysis_output_"+id),
		Timestamp: m.now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(m.baseCtx, job)

	m.logger.Info().Str("analysis_id", id).Str("csv", csvFile).Msg("analysis started")
	return id, nil
}

// Status returns a snapshot of the job
func (m *Manager) Status(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *job, nil
}

// Result returns the research result of a finished job
func (m *Manager) Result(id string) (*agents.ResearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, id)
	}
	r := *job.result
	return &r, nil
}

// List returns all jobs, newest first
func (m *Manager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Wait blocks until every running job has finished
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels running jobs and waits for them
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, job *Job) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.fail(job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := m.acquire(ctx, job.ID); err != nil {
		m.complete(job, m.now(), agents.ResearchResult{CSVFile: job.CSVFile, OutputDir: job.OutputDir, Error: "Analysis cancelled: " + err.Error()})
		return
	}
	defer m.release()

	started := m.now()
	m.update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &started
	})
	m.publish(job.ID, Event{Type: EventStatusUpdate, Status: StatusRunning, Message: "Analysis started"})

	if len(m.opts.WatchFiles) > 0 {
		w, err := m.watch(ctx, job.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("analysis_id", job.ID).Msg("file monitoring unavailable")
		} else {
			defer w.Stop()
		}
	}

	m.complete(job, started, m.runner.Run(ctx, job.CSVFile, job.OutputDir))
}

func (m *Manager) complete(job *Job, started time.Time, res agents.ResearchResult) {
	status := StatusFailed
	msg := "Analysis failed: " + orUnknown(res.Error)
	if res.Success {
		status, msg = StatusCompleted, "Analysis completed"
	}
	completed := m.now()
	m.update(job.ID, func(j *Job) {
		j.Status = status
		j.Success = res.Success
		j.Error = res.Error
		j.CompletedAt = &completed
		j.ResultsReady = true
		j.DownloadURL = "/results/" + j.ID + "/markdown"
		j.result = &res
	})
	success := res.Success
	m.publish(job.ID, Event{Type: EventAnalysisComplete, Status: status, Success: &success, Message: msg})
	m.logger.Info().Str("analysis_id", job.ID).Str("status", string(status)).Dur("duration", completed.Sub(started)).Msg("analysis finished")
}

// acquire waits for the run slot, announcing the wait when another job holds it
func (m *Manager) acquire(ctx context.Context, id string) error {
	select {
	case m.slot <- struct{}{}:
		return nil
	default:
	}
	m.publish(id, Event{Type: EventStatusUpdate, Status: StatusStarting, Message: "Waiting for the running analysis to finish"})
	select {
	case m.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() {
	<-m.slot
}

func (m *Manager) fail(job *Job, err error) {
	completed := m.now()
	m.update(job.ID, func(j *Job) {
		j.Status = StatusError
		j.Error = err.Error()
		j.CompletedAt = &completed
	})
	m.publish(job.ID, Event{Type: EventAnalysisError, Error: err.Error()})
	m.logger.Error().Err(err).Str("analysis_id", job.ID).Msg("analysis error")
}

func (m *Manager) watch(ctx context.Context, id string) (*watch.Watcher, error) {
	w, err := watch.New(m.opts.WatchDir, m.opts.WatchFiles, func(u watch.FileUpdate) {
		m.publish(id, Event{
			Type:      EventFileUpdate,
			Filename:  u.Filename,
			Content:   u.Content,
			Size:      u.Size,
			Timestamp: u.Timestamp,
		})
	}, m.logger)
	if err != nil {
		return nil, err
	}
	if m.opts.Debounce > 0 {
		w.SetDebounce(m.opts.Debounce)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(j)
	}
}

func (m *Manager) publish(id string, ev Event) {
	if m.pub == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	m.pub.Publish(id, ev)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown error"
	}
	return s
}
