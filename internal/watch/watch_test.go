package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
)

const helloTool = `def invoke(arguments):
    """Say hello."""
    return "hi"
`

type countingRefresher struct {
	calls atomic.Int32
	diff  registry.Diff
}

func (r *countingRefresher) Refresh(context.Context) (registry.Diff, error) {
	r.calls.Add(1)

	return r.diff, nil
}

func startWatcher(t *testing.T, cfg Config) {
	t.Helper()

	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestWatcher_RefreshesRegistry(t *testing.T) {
	dir := t.TempDir()

	reg, err := registry.New(registry.Config{Dir: dir})
	require.NoError(t, err)

	_, err = reg.Refresh(context.Background())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		diffs []registry.Diff
	)

	startWatcher(t, Config{
		Dir:       dir,
		Debounce:  20 * time.Millisecond,
		Refresher: reg,
		OnChange: func(_ context.Context, diff registry.Diff) {
			mu.Lock()
			defer mu.Unlock()

			diffs = append(diffs, diff)
		},
	})

	writeFile(t, dir, "hello.star", helloTool)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(diffs) > 0 && slices.Contains(diffs[len(diffs)-1].Added, "hello")
	}, 3*time.Second, 10*time.Millisecond)

	_, ok := reg.Lookup("hello")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "hello.star")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return slices.Contains(diffs[len(diffs)-1].Removed, "hello")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	refresher := &countingRefresher{diff: registry.Diff{Added: []string{"x"}}}

	startWatcher(t, Config{
		Dir:       dir,
		Debounce:  20 * time.Millisecond,
		Refresher: refresher,
	})

	writeFile(t, dir, "_helpers.star", helloTool)
	writeFile(t, dir, ".write-123.tmp", helloTool)
	writeFile(t, dir, "notes.txt", "not a tool")

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(0), refresher.calls.Load())

	writeFile(t, dir, "tool.star", helloTool)

	require.Eventually(t, func() bool {
		return refresher.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_Debounces(t *testing.T) {
	dir := t.TempDir()
	refresher := &countingRefresher{}

	startWatcher(t, Config{
		Dir:       dir,
		Debounce:  200 * time.Millisecond,
		Refresher: refresher,
	})

	for _, name := range []string{"a.star", "b.star", "c.star", "d.star", "e.star"} {
		writeFile(t, dir, name, helloTool)
	}

	require.Eventually(t, func() bool {
		return refresher.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	require.Less(t, refresher.calls.Load(), int32(5))
}

func TestWatcher_EmptyDiffNotReported(t *testing.T) {
	dir := t.TempDir()
	refresher := &countingRefresher{}

	var changes atomic.Int32

	startWatcher(t, Config{
		Dir:       dir,
		Debounce:  20 * time.Millisecond,
		Refresher: refresher,
		OnChange:  func(context.Context, registry.Diff) { changes.Add(1) },
	})

	writeFile(t, dir, "tool.star", helloTool)

	require.Eventually(t, func() bool {
		return refresher.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(0), changes.Load())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing dir", cfg: Config{Refresher: &countingRefresher{}}},
		{name: "missing refresher", cfg: Config{Dir: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}

	w, err := New(Config{Dir: t.TempDir(), Refresher: &countingRefresher{}})
	require.NoError(t, err)
	require.Equal(t, DefaultDebounce, w.cfg.Debounce)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := New(Config{
		Dir:       filepath.Join(t.TempDir(), "missing"),
		Refresher: &countingRefresher{},
	})
	require.NoError(t, err)

	require.Error(t, w.Run(context.Background()))
}
