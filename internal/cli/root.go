package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	dyntools "github.com/wagiedev/mcp-dynamic-tools"
	"github.com/wagiedev/mcp-dynamic-tools/internal/config"
	"github.com/wagiedev/mcp-dynamic-tools/internal/telemetry"
)

// telemetryShutdownTimeout bounds flushing buffered spans on exit.
const telemetryShutdownTimeout = 5 * time.Second

// NewRootCmd creates the mcp-dynamic-tools command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, os.LookupEnv)
}

func newRootCmd(version string, lookupEnv func(string) (string, bool)) *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-dynamic-tools",
		Short: "Serve a directory of Starlark scripts as MCP tools",
		Long: "mcp-dynamic-tools exposes every Starlark script in a directory as a Model Context Protocol tool.\n" +
			"Scripts are re-scanned on demand, so tools can be added and edited while the server runs.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
		Version:      version,
	}

	root.SetVersionTemplate(fmt.Sprintf("mcp-dynamic-tools version %s\n", version))

	flags := root.PersistentFlags()
	flags.String(flagConfig, "", "Path to a settings file (default: ./mcp-dynamic-tools.yaml)")
	flags.String(flagToolsDir, "", "Directory containing tool scripts")
	flags.String(flagLogLevel, "", "Log level: debug | info | warn | error")
	flags.String(flagLogFormat, "", "Log format: text | json")
	flags.Bool(flagVerbose, false, "Enable verbose/debug logging")
	flags.Bool(flagQuiet, false, "Suppress all log output except errors")
	root.MarkFlagsMutuallyExclusive(flagVerbose, flagQuiet)

	app := &app{version: version, lookupEnv: lookupEnv}

	root.AddCommand(app.newServeCmd())
	root.AddCommand(app.newListCmd())
	root.AddCommand(app.newCallCmd())

	return root
}

// app carries what every command needs to build a server.
type app struct {
	version   string
	lookupEnv func(string) (string, bool)
}

// environment is what a command runs with once settings are resolved.
type environment struct {
	settings config.Settings
	logger   *slog.Logger
	server   *dyntools.Server
	shutdown func()
}

// setup resolves settings, builds the logger and optional telemetry, and
// scans the tools directory.
func (a *app) setup(cmd *cobra.Command) (*environment, error) {
	settings, err := resolveSettings(cmd, a.lookupEnv)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), settings)
	if err != nil {
		return nil, err
	}

	env := &environment{
		settings: settings,
		logger:   logger,
		shutdown: func() {},
	}

	opts := []dyntools.Option{
		dyntools.WithOptions(settings.Options()),
		dyntools.WithLogger(logger),
	}

	if settings.ServerVersion == "" {
		opts = append(opts, dyntools.WithServerInfo(settings.ServerName, a.version))
	}

	if settings.Telemetry.StdoutTraces {
		provider, err := telemetry.NewProvider(telemetry.ProviderConfig{
			ServiceName:    settings.ServerName,
			ServiceVersion: a.version,
			StdoutTraces:   true,
			TraceWriter:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return nil, exitError(exitConfig, "start telemetry: %v", err)
		}

		env.shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()

			if err := provider.Shutdown(ctx); err != nil {
				logger.Warn("Failed to flush telemetry", "error", err)
			}
		}

		opts = append(opts, dyntools.WithObserver(provider.Observer()))
	}

	srv, err := dyntools.New(cmd.Context(), opts...)
	if err != nil {
		env.shutdown()

		return nil, exitError(exitConfig, "%v", err)
	}

	env.server = srv

	return env, nil
}
