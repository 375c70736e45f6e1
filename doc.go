// Package dyntools serves a directory of Starlark scripts as Model Context
// Protocol tools.
//
// Every file in the tools directory that defines a top-level
// invoke(arguments) function becomes a tool. The tool's description and
// input schema are inferred from the docstring of invoke:
//
//	def invoke(arguments):
//	    """Say hello.
//
//	    Parameters:
//	    - name: Who to greet (default: World)
//	    """
//	    return "Hello, " + arguments.get("name", "World")
//
// Files are validated statically when the directory is scanned and executed
// fresh on every call, so edits take effect immediately. A file that fails
// validation is reported as a diagnostic and never stops the other tools from
// being served.
//
// # Basic Usage
//
// Serve the tools directory over standard input and output:
//
//	ctx := context.Background()
//	srv, err := dyntools.New(ctx,
//	    dyntools.WithToolsDir("./tools"),
//	    dyntools.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := srv.ServeStdio(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Calling Tools Directly
//
// Call runs a tool without a protocol session:
//
//	res := srv.Call(ctx, "hello", map[string]any{"name": "Ada"})
//	if !res.OK() {
//	    fmt.Println(res.Failure.Kind, res.Failure.Message)
//	}
//
// # Built-in Tools
//
// Go functions can be served next to the scripts with NewBuiltin and
// WithBuiltins. WithWriteTool registers write_tool, which lets a client author
// new script tools at runtime.
//
// # Change Notification
//
// With WithWatch the tools directory is watched and connected sessions
// receive notifications/tools/list_changed when the catalog changes.
package dyntools
