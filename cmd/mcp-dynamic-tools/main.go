package main

import (
	"os"

	dyntools "github.com/wagiedev/mcp-dynamic-tools"
	"github.com/wagiedev/mcp-dynamic-tools/internal/cli"
)

// Set via ldflags at build time.
var version = dyntools.Version

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
