package mcp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

func TestNewTool(t *testing.T) {
	t.Parallel()

	def := "World"
	desc := &tool.Descriptor{
		Name:    "hello",
		Summary: "Say hello.",
		Parameters: []tool.Parameter{
			{Name: "name", Description: "Who to greet (default: World)", Default: &def},
			{Name: "tone", Description: "How to say it", Required: true},
		},
		SourcePath: "/secret/path/hello.star",
	}

	raw, err := json.Marshal(NewTool(desc))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "hello",
		"description": "Say hello.",
		"inputSchema": {
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Who to greet (default: World)", "default": "World"},
				"tone": {"type": "string", "description": "How to say it"}
			},
			"required": ["tone"]
		}
	}`, string(raw))
	assert.NotContains(t, string(raw), "/secret/path")
}

func TestNewTool_PropertyOrderOnWire(t *testing.T) {
	t.Parallel()

	desc := &tool.Descriptor{
		Name: "ordered",
		Parameters: []tool.Parameter{
			{Name: "zulu", Required: true},
			{Name: "alpha", Required: true},
		},
	}

	raw, err := json.Marshal(NewTool(desc))
	require.NoError(t, err)

	s := string(raw)
	s = s[strings.Index(s, `"properties"`):]
	assert.Less(t, strings.Index(s, `"zulu"`), strings.Index(s, `"alpha"`))
}

func TestNewTool_BuiltinAnnotations(t *testing.T) {
	t.Parallel()

	out := NewTool(&tool.Descriptor{Name: "write_tool", Builtin: true})
	require.NotNil(t, out.Annotations)
	require.NotNil(t, out.Annotations.DestructiveHint)
	assert.True(t, *out.Annotations.DestructiveHint)

	assert.Nil(t, NewTool(&tool.Descriptor{Name: "plain"}).Annotations)
}

func TestListTools_KeepsOrder(t *testing.T) {
	t.Parallel()

	res := ListTools([]*tool.Descriptor{{Name: "b"}, {Name: "a"}})
	require.Len(t, res.Tools, 2)
	assert.Equal(t, "b", res.Tools[0].Name)

	raw, err := json.Marshal(ListTools(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tools": []}`, string(raw))
}

func TestCallResult(t *testing.T) {
	t.Parallel()

	t.Run("string success", func(t *testing.T) {
		t.Parallel()

		raw, err := json.Marshal(CallResult(executor.Result{Value: "Hello, World!"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"content": [{"type": "text", "text": "Hello, World!"}],
			"structuredContent": {"ok": "Hello, World!"}
		}`, string(raw))
	})

	t.Run("map success renders indented json", func(t *testing.T) {
		t.Parallel()

		res := CallResult(executor.Result{Value: map[string]any{"a": int64(1)}})
		assert.False(t, res.IsError)
		assert.Equal(t, "{\n  \"a\": 1\n}", Text(map[string]any{"a": int64(1)}))
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		res := CallResult(executor.Result{Failure: &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    "boom",
			Message: "fail: kaboom",
			Detail:  "Traceback (most recent call last):",
		}})
		assert.True(t, res.IsError)

		raw, err := json.Marshal(res)
		require.NoError(t, err)

		var decoded struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			StructuredContent struct {
				Error struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
				} `json:"error"`
			} `json:"structuredContent"`
			IsError bool `json:"isError"`
		}
		require.NoError(t, json.Unmarshal(raw, &decoded))

		assert.True(t, decoded.IsError)
		assert.Equal(t, "RuntimeError", decoded.StructuredContent.Error.Kind)
		assert.Equal(t, "fail: kaboom", decoded.StructuredContent.Error.Message)
		require.Len(t, decoded.Content, 1)
		assert.Contains(t, decoded.Content[0].Text, "RuntimeError in boom: fail: kaboom")
		assert.Contains(t, decoded.Content[0].Text, "Traceback")
	})
}

func TestText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "plain", Text("plain"))
	assert.Equal(t, "42", Text(int64(42)))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, "[\n  1,\n  \"<b>\"\n]", Text([]any{int64(1), "<b>"}))
}

func TestParseArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "absent", raw: "", want: map[string]any{}},
		{name: "null", raw: "null", want: map[string]any{}},
		{name: "empty object", raw: "{}", want: map[string]any{}},
		{name: "values", raw: `{"n": 3, "s": "x"}`, want: map[string]any{"n": json.Number("3"), "s": "x"}},
		{name: "array", raw: `[1, 2]`, wantErr: true},
		{name: "string", raw: `"x"`, wantErr: true},
		{name: "broken", raw: `{"a":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseArguments(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
