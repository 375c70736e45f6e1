// Package cli implements the mcp-dynamic-tools command line.
//
// Settings are resolved in order: built-in defaults, the settings file
// (--config, ./mcp-dynamic-tools.yaml or
// ~/.config/mcp-dynamic-tools/config.yaml), DYNTOOLS_* environment variables,
// then command line flags.
//
// Commands:
//
//	serve   serve the tools directory over stdio
//	list    print the catalog and rejected files
//	call    invoke one tool and print its result
//
// Logs always go to stderr; stdout belongs to the protocol when serving.
package cli
