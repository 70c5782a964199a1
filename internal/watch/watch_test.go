package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) (*Watcher, chan FileUpdate) {
	t.Helper()
	updates := make(chan FileUpdate, 10)
	w, err := New(dir, []string{"research.md", "analysis.log"}, func(u FileUpdate) { updates <- u }, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, updates
}

func waitUpdate(t *testing.T, updates chan FileUpdate) FileUpdate {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(3 * time.Second):
		t.Fatal("no file update received")
		return FileUpdate{}
	}
}

func TestWatcherEmitsChangedContent(t *testing.T) {
	dir := t.TempDir()
	w, updates := startWatcher(t, dir)
	path := filepath.Join(dir, "research.md")

	require.NoError(t, os.WriteFile(path, []byte("# Draft"), 0644))
	u := waitUpdate(t, updates)
	assert.Equal(t, "research.md", u.Filename)
	assert.Equal(t, "# Draft", u.Content)
	assert.Equal(t, 7, u.Size)

	require.NoError(t, os.WriteFile(path, []byte("# Draft"), 0644))
	select {
	case u := <-updates:
		t.Fatalf("unexpected update for unchanged content: %+v", u)
	case <-time.After(400 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("# Final"), 0644))
	u = waitUpdate(t, updates)
	assert.Equal(t, "# Final", u.Content)

	assert.Eventually(t, func() bool { return w.Stats().Unchanged >= 1 }, time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, w.Stats().Updates)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, updates := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.log"), []byte("step 1"), 0644))

	u := waitUpdate(t, updates)
	assert.Equal(t, "analysis.log", u.Filename)
	assert.Equal(t, "analysis.log", filepath.Base(w.Stats().LastEventPath))
}

func TestWatcherMissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), []string{"research.md"}, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(t.TempDir(), []string{"research.md"}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after cancel")
	}
}
