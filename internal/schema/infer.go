package schema

import (
	"regexp"
	"strings"

	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

var (
	defaultPattern = regexp.MustCompile(`(?i)\(default:\s*([^)]*)\)`)
	sectionPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _-]*:$`)
)

// Doc is the structured view of a docstring.
type Doc struct {
	Summary    string
	Parameters []tool.Parameter
}

// Infer parses a docstring into a summary and an ordered parameter list.
//
// Infer never fails: malformed parameter lines are skipped and a missing
// "Parameters:" block yields an empty list.
func Infer(docstring string) Doc {
	lines := splitLines(docstring)

	doc := Doc{
		Parameters: make([]tool.Parameter, 0, 4),
	}

	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			doc.Summary = trimmed

			break
		}
	}

	start := -1

	for i, line := range lines {
		if isParametersHeader(line) {
			start = i + 1

			break
		}
	}

	if start < 0 {
		return doc
	}

	seen := make(map[string]struct{}, 4)

	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}

		entry, ok := strings.CutPrefix(trimmed, "-")
		if !ok {
			if sectionPattern.MatchString(trimmed) {
				break
			}

			continue
		}

		param, ok := parseParameter(entry)
		if !ok {
			continue
		}

		if _, dup := seen[param.Name]; dup {
			continue
		}

		seen[param.Name] = struct{}{}
		doc.Parameters = append(doc.Parameters, param)
	}

	return doc
}

// parseParameter splits "name: description" on the first colon.
func parseParameter(entry string) (tool.Parameter, bool) {
	name, description, found := strings.Cut(entry, ":")
	if !found {
		return tool.Parameter{}, false
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return tool.Parameter{}, false
	}

	description = strings.TrimSpace(description)

	param := tool.Parameter{
		Name:        name,
		Description: description,
	}

	if m := defaultPattern.FindStringSubmatch(description); m != nil {
		value := strings.TrimSpace(m[1])
		param.Default = &value
	}

	// Any mention of a default or of being optional makes a parameter
	// optional, not only a well-formed (default: X) fragment.
	lower := strings.ToLower(description)
	param.Required = !strings.Contains(lower, "default") && !strings.Contains(lower, "optional")

	return param, true
}

func isParametersHeader(line string) bool {
	trimmed := strings.TrimSpace(line)

	return strings.EqualFold(trimmed, "parameters:") || strings.EqualFold(trimmed, "parameters")
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return strings.Split(text, "\n")
}

// CleanDoc normalizes the indentation of a raw docstring literal: the first
// line loses its leading whitespace, the common indentation of the remaining
// lines is removed, and leading and trailing blank lines are dropped.
func CleanDoc(raw string) string {
	lines := splitLines(strings.ReplaceAll(raw, "\t", "        "))
	if len(lines) == 0 {
		return ""
	}

	indent := -1

	for _, line := range lines[1:] {
		stripped := strings.TrimLeft(line, " ")
		if stripped == "" {
			continue
		}

		if n := len(line) - len(stripped); indent < 0 || n < indent {
			indent = n
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " ")

	if indent > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= indent {
				lines[i] = lines[i][indent:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}

	return strings.Join(lines, "\n")
}
