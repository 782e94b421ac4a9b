package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"artipart/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, w *Watcher, match func(models.FileEvent) bool) models.FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Changes():
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for a change event")
			return models.FileEvent{}
		}
	}
}

func Test_AddWatchSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "obj", "deep"), 0755))

	w, err := NewWatcher(WithSkip(func(path, name string) bool { return name == "obj" }))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddWatch(root))

	dirs := w.WatchedDirs()
	sort.Strings(dirs)
	assert.Equal(t, []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")}, dirs)
}

func Test_WatcherReportsNewFiles(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(WithDebounce(20 * time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddWatch(root))
	w.Start()

	target := filepath.Join(root, "a.dll")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

	ev := waitEvent(t, w, func(ev models.FileEvent) bool { return ev.Path == target })
	assert.Contains(t, []string{"CREATE", "MODIFY"}, ev.Operation)
}

func Test_WatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(WithDebounce(20 * time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddWatch(root))
	w.Start()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	waitEvent(t, w, func(ev models.FileEvent) bool { return ev.Path == sub })

	target := filepath.Join(sub, "b.dll")
	require.NoError(t, os.WriteFile(target, []byte("y"), 0644))
	waitEvent(t, w, func(ev models.FileEvent) bool { return ev.Path == target })
}

func Test_DebounceCoalescesBursts(t *testing.T) {
	w, err := NewWatcher(WithDebounce(50 * time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	fired := make(chan int, 10)
	for i := 0; i < 5; i++ {
		i := i
		w.debouncedSend("/same/path", func() { fired <- i })
	}

	select {
	case got := <-fired:
		assert.Equal(t, 4, got, "only the last call runs")
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never ran")
	}

	select {
	case extra := <-fired:
		t.Fatalf("unexpected extra call %d", extra)
	case <-time.After(150 * time.Millisecond):
	}
}
