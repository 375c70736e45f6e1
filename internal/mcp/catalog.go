package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/schema"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// NewTool renders a descriptor as a catalog entry.
func NewTool(desc *tool.Descriptor) *mcp.Tool {
	t := &mcp.Tool{
		Name:        desc.Name,
		Description: desc.Summary,
		InputSchema: schema.InputSchema(desc.Parameters),
	}

	if desc.Builtin {
		destructive := true
		t.Annotations = &mcp.ToolAnnotations{
			DestructiveHint: &destructive,
		}
	}

	return t
}

// ListTools renders the catalog in the order given.
func ListTools(descs []*tool.Descriptor) *mcp.ListToolsResult {
	tools := make([]*mcp.Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, NewTool(d))
	}

	return &mcp.ListToolsResult{Tools: tools}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	res := TextResult(message)
	res.IsError = true

	return res
}

// CallResult renders an invocation result. Strings are sent as-is; maps and
// lists are rendered as indented JSON. Failures set isError and carry the
// failure kind in structuredContent so clients can branch on it.
func CallResult(res executor.Result) *mcp.CallToolResult {
	if !res.OK() {
		f := res.Failure

		text := fmt.Sprintf("%s in %s: %s", f.Kind, f.Tool, f.Message)
		if f.Detail != "" {
			text += "\n\n" + f.Detail
		}

		out := ErrorResult(text)
		out.StructuredContent = map[string]any{
			"error": map[string]any{
				"kind":    string(f.Kind),
				"message": f.Message,
			},
		}

		return out
	}

	out := TextResult(Text(res.Value))
	out.StructuredContent = map[string]any{"ok": res.Value}

	return out
}

// Text renders a result value as the text clients display.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any, []any:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")

		if err := enc.Encode(x); err != nil {
			return fmt.Sprint(x)
		}

		return string(bytes.TrimRight(buf.Bytes(), "\n"))
	default:
		if raw, err := json.Marshal(x); err == nil {
			return string(raw)
		}

		return fmt.Sprint(x)
	}
}

// ParseArguments decodes tools/call arguments. Absent or null arguments are
// an empty map; anything other than a JSON object is an error. Numbers are
// kept as json.Number so integers survive the round trip.
func ParseArguments(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	if trimmed[0] != '{' {
		return nil, errors.New("arguments must be an object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}
