package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wagiedev/mcp-dynamic-tools/internal/config"
)

// Flag names shared by several commands.
const (
	flagConfig             = "config"
	flagToolsDir           = "tools-dir"
	flagLogLevel           = "log-level"
	flagLogFormat          = "log-format"
	flagVerbose            = "verbose"
	flagQuiet              = "quiet"
	flagWatch              = "watch"
	flagWriteTool          = "write-tool"
	flagRefreshOnList      = "refresh-on-list"
	flagMaxConcurrentCalls = "max-concurrent-calls"
	flagCallTimeout        = "call-timeout"
	flagStdoutTraces       = "stdout-traces"
)

// resolveSettings layers defaults, the settings file, the environment and
// the flags that were set on cmd, then validates the result.
func resolveSettings(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (config.Settings, error) {
	settings := config.Default()

	explicit, _ := cmd.Flags().GetString(flagConfig)

	path, found, err := config.DiscoverPath(explicit)
	if err != nil {
		return settings, exitError(exitConfig, "%v", err)
	}

	if found {
		if err := settings.LoadFile(path); err != nil {
			return settings, exitError(exitConfig, "%v", err)
		}
	}

	if err := settings.ApplyEnv(lookupEnv); err != nil {
		return settings, exitError(exitConfig, "%v", err)
	}

	applyFlags(cmd, &settings)

	if err := settings.Validate(); err != nil {
		return settings, exitError(exitConfig, "invalid configuration: %v", err)
	}

	return settings, nil
}

// applyFlags overlays the flags explicitly set on the command line.
func applyFlags(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()

	changed := func(name string) bool {
		f := flags.Lookup(name)

		return f != nil && f.Changed
	}

	str := func(name string, dst *string) {
		if changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	boolean := func(name string, dst *bool) {
		if changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	str(flagToolsDir, &s.ToolsDir)
	str(flagLogLevel, &s.LogLevel)
	str(flagLogFormat, &s.LogFormat)
	boolean(flagWatch, &s.Watch)
	boolean(flagWriteTool, &s.EnableWriteTool)
	boolean(flagRefreshOnList, &s.RefreshOnList)
	boolean(flagStdoutTraces, &s.Telemetry.StdoutTraces)

	if changed(flagMaxConcurrentCalls) {
		s.MaxConcurrentCalls, _ = flags.GetInt(flagMaxConcurrentCalls)
	}

	if changed(flagCallTimeout) {
		s.CallTimeout, _ = flags.GetDuration(flagCallTimeout)
	}

	// --verbose and --quiet win over any configured level.
	if verbose, _ := flags.GetBool(flagVerbose); verbose {
		s.LogLevel = slog.LevelDebug.String()
	} else if quiet, _ := flags.GetBool(flagQuiet); quiet {
		s.LogLevel = slog.LevelError.String()
	}
}

// newLogger builds the process logger. Output never goes to stdout.
func newLogger(w io.Writer, s config.Settings) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := config.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	opts := &slog.HandlerOptions{Level: level}

	if s.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}
