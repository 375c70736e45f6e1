package dyntools

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/mcp-dynamic-tools/internal/mcp"
	"github.com/wagiedev/mcp-dynamic-tools/internal/schema"
)

// Re-export MCP SDK types for public API.
// These are the official MCP protocol types.
type (
	// CallToolResult is the server's response to a tool call.
	CallToolResult = mcp.CallToolResult

	// McpTool is a catalog entry as sent to clients.
	McpTool = mcp.Tool

	// McpTextContent represents text content in a tool result.
	McpTextContent = mcp.TextContent

	// Schema is a JSON Schema object for tool input.
	Schema = jsonschema.Schema
)

// BuiltinOption configures a Builtin during construction.
type BuiltinOption func(*Builtin)

// WithParameter documents one parameter of a built-in tool. A nil default
// makes the parameter required.
func WithParameter(name, description string, def *string) BuiltinOption {
	return func(b *Builtin) {
		b.Descriptor.Parameters = append(b.Descriptor.Parameters, Parameter{
			Name:        name,
			Description: description,
			Default:     def,
			Required:    def == nil,
		})
	}
}

// NewBuiltin creates a Go-implemented tool.
//
// Example:
//
//	add := dyntools.NewBuiltin("add", "Add two numbers",
//	    func(ctx context.Context, args map[string]any) (any, error) {
//	        a, _ := strconv.Atoi(fmt.Sprint(args["a"]))
//	        b, _ := strconv.Atoi(fmt.Sprint(args["b"]))
//	        return a + b, nil
//	    },
//	    dyntools.WithParameter("a", "First addend", nil),
//	    dyntools.WithParameter("b", "Second addend", nil),
//	)
func NewBuiltin(name, summary string, handler Handler, opts ...BuiltinOption) Builtin {
	b := Builtin{
		Descriptor: &Descriptor{
			Name:       name,
			Summary:    summary,
			Parameters: []Parameter{},
			Builtin:    true,
		},
		Handler: handler,
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// InputSchema renders the JSON Schema clients see for a parameter list.
func InputSchema(params []Parameter) *Schema {
	return schema.InputSchema(params)
}

// NewMcpTool renders a descriptor as the catalog entry sent to clients.
func NewMcpTool(desc *Descriptor) *mcp.Tool {
	return internalmcp.NewTool(desc)
}

// ToCallToolResult converts an invocation result into the tools/call
// response body.
func ToCallToolResult(res Result) *mcp.CallToolResult {
	return internalmcp.CallResult(res)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return internalmcp.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return internalmcp.ErrorResult(message)
}
