package schema

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// InputSchema renders parameters as a JSON Schema object.
//
// Every property is a string; declaration order is preserved on the wire
// through PropertyOrder. Parameters without a default that are not described
// as optional are listed as required.
func InputSchema(params []tool.Parameter) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(params))
	order := make([]string, 0, len(params))
	required := make([]string, 0, len(params))

	for _, p := range params {
		prop := &jsonschema.Schema{
			Type:        "string",
			Description: p.Description,
		}

		if p.Default != nil {
			if raw, err := json.Marshal(*p.Default); err == nil {
				prop.Default = raw
			}
		}

		properties[p.Name] = prop
		order = append(order, p.Name)

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:          "object",
		Properties:    properties,
		Required:      required,
		PropertyOrder: order,
	}
}
