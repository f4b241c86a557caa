package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.NotNil(t, watcher.logger)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath(filepath.Join(t.TempDir(), "missing")))
}

// collector gathers every event delivered to its handler.
type collector struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (c *collector) handle(_ context.Context, events []ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.events))
	for _, e := range c.events {
		paths = append(paths, e.Path)
	}
	return paths
}

func startWatching(t *testing.T, root string, filters ...FileFilter) *collector {
	t.Helper()
	watcher, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Stop() })

	for _, f := range filters {
		watcher.AddFilter(f)
	}
	c := &collector{}
	watcher.AddHandler(c.handle)

	require.NoError(t, watcher.AddRecursive(root, IgnoreFilter(root, []string{"**/node_modules"})))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, watcher.Start(ctx))
	return c
}

func TestFileWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "button"), 0755))
	c := startWatching(t, root)

	file := filepath.Join(root, "button", "index.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0644))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{file}, dedupe(c.paths()))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	c := startWatching(t, root)

	dir := filepath.Join(root, "card")
	require.NoError(t, os.MkdirAll(dir, 0755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(dir, "index.scss")
	require.NoError(t, os.WriteFile(file, []byte(".card{}"), 0644))

	assert.Eventually(t, func() bool {
		for _, p := range c.paths() {
			if p == file {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_Filters(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0755))
	c := startWatching(t, root, NoHiddenFilter, NoEditorFilter)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x", "index.js"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js.swp"), []byte("x"), 0644))
	kept := filepath.Join(root, "kept.js")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return len(c.paths()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{kept}, dedupe(c.paths()))
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func TestDebouncer(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Path: "b.js", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "b.js", Type: EventTypeModified}
	debouncer.events <- ChangeEvent{Path: "a.js", Type: EventTypeModified}

	select {
	case events := <-debouncer.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.js", events[0].Path)
		assert.Equal(t, "b.js", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no debounced batch")
	}
}

func TestFileWatcherStopTwice(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func TestNoHiddenFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"/p/button/index.js", true},
		{"/home/me/.local/p/button/index.js", true},
		{"/p/button/.DS_Store", false},
		{"../p/button/index.js", true},
		{"./index.js", true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, NoHiddenFilter(tc.path))
		})
	}
}

func TestNoEditorFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"index.js", true},
		{"index.js~", false},
		{".index.js.swp", false},
		{"#index.js#", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, NoEditorFilter(tc.path))
		})
	}
}

func TestIgnoreFilter(t *testing.T) {
	root := filepath.FromSlash("/p")
	filter := IgnoreFilter(root, []string{"**/node_modules", "dist"})

	for i, tc := range []struct {
		path     string
		expected bool
	}{
		{"/p/button/index.js", true},
		{"/p/node_modules", false},
		{"/p/node_modules/x/index.js", false},
		{"/p/forms/node_modules/y.js", false},
		{"/p/dist/index.js", false},
		{"/elsewhere/dist/index.js", true},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assert.Equal(t, tc.expected, filter(filepath.FromSlash(tc.path)))
		})
	}
}
