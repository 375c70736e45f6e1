package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

const greetSource = `def invoke(arguments):
    """Greet someone.

    Parameters:
    - who: Person to greet
    """
    return "hi " + arguments["who"]
`

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) (registry.Diff, error) {
	r.calls++

	return registry.Diff{}, r.err
}

func TestWriter_CreatesAndUpdates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	refresher := &countingRefresher{}
	w := NewWriter(WriterConfig{Dir: dir, Refresher: refresher})

	out, err := w.Handle(context.Background(), map[string]any{"name": "greet", "content": greetSource})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully created tool 'greet'")

	data, err := os.ReadFile(filepath.Join(dir, "greet.star"))
	require.NoError(t, err)
	assert.Equal(t, greetSource, string(data))
	assert.Equal(t, 1, refresher.calls)

	out, err = w.Handle(context.Background(), map[string]any{"name": "greet.star", "content": greetSource})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully updated tool 'greet'")
	assert.Equal(t, 2, refresher.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriter_RejectsInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    map[string]any
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing name",
			args:    map[string]any{"content": greetSource},
			wantMsg: "'name' parameter is required",
		},
		{
			name:    "blank content",
			args:    map[string]any{"name": "x", "content": "   "},
			wantMsg: "'content' parameter is required",
		},
		{
			name:    "non-string name",
			args:    map[string]any{"name": 3.0, "content": greetSource},
			wantMsg: "must be a string",
		},
		{
			name:    "invalid name",
			args:    map[string]any{"name": "../escape", "content": greetSource},
			wantErr: toolerrors.ErrInvalidToolName,
		},
		{
			name:    "private name",
			args:    map[string]any{"name": "_helper", "content": greetSource},
			wantErr: toolerrors.ErrInvalidToolName,
		},
		{
			name:    "reserved name",
			args:    map[string]any{"name": WriteToolName, "content": greetSource},
			wantErr: toolerrors.ErrToolExists,
		},
		{
			name:    "syntax error",
			args:    map[string]any{"name": "bad", "content": "def invoke(:\n"},
			wantMsg: "SyntaxError at line 1",
		},
		{
			name:    "wrong signature",
			args:    map[string]any{"name": "bad", "content": "def invoke():\n    return 1\n"},
			wantMsg: "SignatureError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			refresher := &countingRefresher{}
			w := NewWriter(WriterConfig{Dir: dir, Refresher: refresher})

			_, err := w.Handle(context.Background(), tt.args)
			require.Error(t, err)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
			assert.Zero(t, refresher.calls)
		})
	}
}

func TestWriter_Builtin(t *testing.T) {
	t.Parallel()

	w := NewWriter(WriterConfig{Dir: t.TempDir(), Extension: ".sky"})
	b := w.Builtin()

	assert.Equal(t, WriteToolName, b.Descriptor.Name)
	require.Len(t, b.Descriptor.Parameters, 2)
	assert.True(t, b.Descriptor.Parameters[0].Required)
	assert.Contains(t, b.Descriptor.Parameters[0].Description, ".sky")
	require.NotNil(t, b.Handler)
}

func TestWriter_RoundTripThroughRegistry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var reg *registry.Registry

	w := NewWriter(WriterConfig{Dir: dir, Refresher: refresherFunc(func(ctx context.Context) (registry.Diff, error) {
		return reg.Refresh(ctx)
	})})

	reg, err := registry.New(registry.Config{Dir: dir, Builtins: []tool.Builtin{w.Builtin()}})
	require.NoError(t, err)

	_, err = w.Handle(context.Background(), map[string]any{"name": "greet", "content": greetSource})
	require.NoError(t, err)

	desc, ok := reg.Lookup("greet")
	require.True(t, ok)
	assert.Equal(t, "Greet someone.", desc.Summary)
	assert.Equal(t, []string{WriteToolName, "greet"}, reg.Snapshot().Names())
}

type refresherFunc func(ctx context.Context) (registry.Diff, error)

func (f refresherFunc) Refresh(ctx context.Context) (registry.Diff, error) { return f(ctx) }

func TestWriter_RefreshFailure(t *testing.T) {
	t.Parallel()

	refresher := &countingRefresher{err: toolerrors.ErrToolsDirNotFound}
	w := NewWriter(WriterConfig{Dir: t.TempDir(), Refresher: refresher})

	_, err := w.Handle(context.Background(), map[string]any{"name": "greet", "content": greetSource})
	require.ErrorIs(t, err, toolerrors.ErrToolsDirNotFound)
}
