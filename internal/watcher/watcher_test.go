package watcher

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filepub/internal/logging"
	"filepub/pkg/models"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

func waitForEvent(t *testing.T, w *Watcher, path string) models.FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-w.Changes():
			if event.Path == path {
				return event
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcher_ReportsCreatedFile(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(testLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddWatch(root))
	w.Start()

	path := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	event := waitForEvent(t, w, path)
	// The create and the write may debounce into either operation.
	require.Contains(t, []string{"CREATE", "MODIFY"}, event.Operation)
}

func TestWatcher_WatchesCreatedSubdirectories(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(testLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddWatch(root))
	w.Start()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory.
	time.Sleep(300 * time.Millisecond)

	path := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	waitForEvent(t, w, path)
}
