package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools directory over stdio",
		Long: "Serve runs one MCP session over standard input and output until the client\n" +
			"disconnects, sends shutdown, or the process is interrupted.",
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().Bool(flagWatch, false, "Watch the tools directory and notify the client of changes")
	cmd.Flags().Bool(flagWriteTool, true, "Serve the write_tool built-in")
	cmd.Flags().Bool(flagRefreshOnList, true, "Re-scan the tools directory on every tools/list")
	cmd.Flags().Int(flagMaxConcurrentCalls, 1, "Tool calls a session may run at once")
	cmd.Flags().Duration(flagCallTimeout, 0, "Per-call timeout (0 disables)")
	cmd.Flags().Bool(flagStdoutTraces, false, "Write OpenTelemetry spans as JSON to stderr")

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SetContext(ctx)

	env, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer env.shutdown()

	env.logger.Info("Serving tools over stdio",
		"tools_dir", env.settings.ToolsDir,
		"watch", env.settings.Watch,
		"write_tool", env.settings.EnableWriteTool,
	)

	if err := env.server.ServeStream(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return exitError(exitRuntime, "serve: %v", err)
	}

	return nil
}
