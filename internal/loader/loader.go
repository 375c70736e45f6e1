// Package loader turns tool files into descriptors and, at call time, into
// callable Starlark functions.
//
// Discovery is static: files are parsed, never executed, so a broken or slow
// tool cannot stall a scan. Execution is deferred to Materialize.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/schema"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// EntryPoint is the function every tool file must define at top level.
const EntryPoint = "invoke"

// DefaultExtensions are the file extensions treated as tools when none are
// configured.
var DefaultExtensions = []string{".star"}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrNoEntryPoint indicates a file that no longer defines a usable invoke
// function when executed.
var ErrNoEntryPoint = errors.New("no usable invoke function")

// FileOptions returns the Starlark dialect tool files are written in. It is
// the same for parsing and execution so that a file accepted at scan time is
// not rejected by the interpreter for dialect reasons.
//
// Recursion stays disabled: unbounded recursion would exhaust the Go stack,
// which no recover can catch, whereas the interpreter reports a recursive
// call as an ordinary evaluation error.
func FileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       false,
	}
}

// ToolName derives a tool name from a file path: the base name without its
// extension.
func ToolName(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidName reports whether name can be addressed by clients.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// IsPrivate reports whether a file name is hidden from discovery.
func IsPrivate(fileName string) bool {
	return strings.HasPrefix(fileName, "_") || strings.HasPrefix(fileName, ".")
}

// HasExtension reports whether fileName ends in one of exts. An empty list
// means DefaultExtensions.
func HasExtension(fileName string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	ext := filepath.Ext(fileName)

	return ext != "" && slices.Contains(exts, ext)
}

// Load statically validates the file at path and builds its descriptor.
func Load(path string) (*tool.Descriptor, *toolerrors.ValidationFailure) {
	name := ToolName(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSyntaxError,
			Tool:    name,
			Path:    path,
			Message: "cannot read source: " + err.Error(),
			Err:     err,
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSyntaxError,
			Tool:    name,
			Path:    path,
			Message: "cannot read source: " + err.Error(),
			Err:     err,
		}
	}

	desc, failure := Parse(name, path, src)
	if failure != nil {
		return nil, failure
	}

	desc.ModTime = info.ModTime()
	desc.Size = info.Size()

	return desc, nil
}

// Parse validates src as the source of tool name without touching the
// filesystem. The path is only used for positions and diagnostics.
func Parse(name, path string, src []byte) (*tool.Descriptor, *toolerrors.ValidationFailure) {
	if !ValidName(name) {
		return nil, &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSignatureError,
			Tool:    name,
			Path:    path,
			Message: fmt.Sprintf("tool name %q must match %s", name, namePattern.String()),
			Err:     toolerrors.ErrInvalidToolName,
		}
	}

	file, err := FileOptions().Parse(path, src, 0)
	if err != nil {
		failure := &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSyntaxError,
			Tool:    name,
			Path:    path,
			Message: err.Error(),
			Err:     err,
		}

		if syntaxErr, ok := errors.AsType[syntax.Error](err); ok {
			failure.Line = int(syntaxErr.Pos.Line)
			failure.Message = syntaxErr.Msg
		}

		return nil, failure
	}

	def := findEntryPoint(file)
	if def == nil {
		return nil, &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSignatureError,
			Tool:    name,
			Path:    path,
			Message: "missing top-level function " + EntryPoint + "(arguments)",
		}
	}

	if msg := checkSignature(def); msg != "" {
		return nil, &toolerrors.ValidationFailure{
			Kind:    toolerrors.KindSignatureError,
			Tool:    name,
			Path:    path,
			Line:    int(def.Def.Line),
			Message: msg,
		}
	}

	doc := schema.Infer(docstring(def))
	sum := sha256.Sum256(src)

	return &tool.Descriptor{
		Name:       name,
		Summary:    doc.Summary,
		Parameters: doc.Parameters,
		SourcePath: path,
		Size:       int64(len(src)),
		Digest:     hex.EncodeToString(sum[:]),
	}, nil
}

// findEntryPoint returns the last top-level definition of the entry point,
// matching which binding wins when the file executes.
func findEntryPoint(file *syntax.File) *syntax.DefStmt {
	var found *syntax.DefStmt

	for _, stmt := range file.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == EntryPoint {
			found = def
		}
	}

	return found
}

// checkSignature returns a non-empty message when def does not take exactly
// one positional parameter.
func checkSignature(def *syntax.DefStmt) string {
	if len(def.Params) != 1 {
		return fmt.Sprintf("%s must take exactly one parameter, found %d", EntryPoint, len(def.Params))
	}

	switch p := def.Params[0].(type) {
	case *syntax.Ident:
		return ""
	case *syntax.BinaryExpr:
		if p.Op == syntax.EQ {
			return ""
		}
	case *syntax.UnaryExpr:
		return fmt.Sprintf("%s must take one positional parameter, not %s", EntryPoint, p.Op)
	}

	return EntryPoint + " has an unsupported parameter form"
}

func docstring(def *syntax.DefStmt) string {
	if len(def.Body) == 0 {
		return ""
	}

	stmt, ok := def.Body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}

	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}

	text, _ := lit.Value.(string)

	return schema.CleanDoc(text)
}

// Materialize executes the tool's source file in a fresh module on thread and
// returns its entry point. The file is read again on every call so edits take
// effect without a refresh.
func Materialize(
	thread *starlark.Thread,
	desc *tool.Descriptor,
	predeclared starlark.StringDict,
) (*starlark.Function, error) {
	src, err := os.ReadFile(desc.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	globals, err := starlark.ExecFileOptions(FileOptions(), thread, desc.SourcePath, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("execute module: %w", err)
	}

	fn, ok := globals[EntryPoint].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a function", ErrNoEntryPoint, EntryPoint)
	}

	if fn.NumParams() != 1 || fn.HasVarargs() || fn.HasKwargs() {
		return nil, fmt.Errorf("%w: %s must take exactly one parameter", ErrNoEntryPoint, EntryPoint)
	}

	return fn, nil
}
