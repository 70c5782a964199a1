// Package watch relays changes of selected files in a directory
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a file must be quiet before it is read
const DefaultDebounce = 500 * time.Millisecond

// FileUpdate carries the new content of a watched file
type FileUpdate struct {
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats tracks watcher activity
type Stats struct {
	Events        int       `json:"events"`
	Updates       int       `json:"updates"`
	Unchanged     int       `json:"unchanged"`
	Errors        int       `json:"errors"`
	LastEventTime time.Time `json:"last_event_time"`
	LastEventPath string    `json:"last_event_path"`
}

// Watcher watches dir for creates and writes of the target filenames. Each
// settled change whose content differs from the last one sent is passed to
// the handler.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	targets     map[string]bool
	handler     func(FileUpdate)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	lastContent map[string]string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	logger      zerolog.Logger
	stats       Stats
}

// New creates a watcher over dir for the given base filenames
func New(dir string, files []string, handler func(FileUpdate), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	targets := make(map[string]bool, len(files))
	for _, f := range files {
		targets[filepath.Base(f)] = true
	}
	return &Watcher{
		watcher:     fw,
		dir:         dir,
		targets:     targets,
		handler:     handler,
		debounceMap: make(map[string]time.Time),
		debounceDur: DefaultDebounce,
		lastContent: make(map[string]string),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger.With().Str("component", "watch").Str("dir", dir).Logger(),
	}, nil
}

// SetDebounce changes the quiet period. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDur = d
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Debug().Int("targets", len(w.targets)).Msg("watching directory")

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close() // nolint:errcheck
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error().Err(err).Msg("error closing watcher")
	}
	w.logger.Debug().Msg("watcher stopped")
}

// Stats returns a snapshot of the counters
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 5
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-debounceTicker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.targets[filepath.Base(event.Name)] {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.emit(path)
	}
}

func (w *Watcher) emit(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Error().Err(err).Str("file", path).Msg("failed to read watched file")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return
	}
	content := string(data)
	name := filepath.Base(path)

	w.mu.Lock()
	if last, ok := w.lastContent[name]; ok && last == content {
		w.stats.Unchanged++
		w.mu.Unlock()
		return
	}
	w.lastContent[name] = content
	w.stats.Updates++
	w.mu.Unlock()

	if w.handler != nil {
		w.handler(FileUpdate{Filename: name, Content: content, Size: len(data), Timestamp: time.Now()})
	}
}
