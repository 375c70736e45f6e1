package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
)

const (
	projectConfigName = "mcp-dynamic-tools.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = "mcp-dynamic-tools"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DYNTOOLS_"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// TelemetrySettings controls the OpenTelemetry pipeline.
type TelemetrySettings struct {
	// StdoutTraces writes spans as JSON to stderr.
	StdoutTraces bool `yaml:"stdout_traces"`
}

// Settings is the file and environment form of the server configuration.
type Settings struct {
	ToolsDir           string            `yaml:"tools_dir"`
	Extensions         []string          `yaml:"extensions"`
	ServerName         string            `yaml:"server_name"`
	ServerVersion      string            `yaml:"server_version"`
	Instructions       string            `yaml:"instructions"`
	LogLevel           string            `yaml:"log_level"`
	LogFormat          string            `yaml:"log_format"`
	Watch              bool              `yaml:"watch"`
	WatchDebounce      time.Duration     `yaml:"watch_debounce"`
	RefreshOnList      bool              `yaml:"refresh_on_list"`
	EnableWriteTool    bool              `yaml:"enable_write_tool"`
	MaxConcurrentCalls int               `yaml:"max_concurrent_calls"`
	CallTimeout        time.Duration     `yaml:"call_timeout"`
	MaxMessageSize     int               `yaml:"max_message_size"`
	Telemetry          TelemetrySettings `yaml:"telemetry"`
}

// Default returns the settings used when nothing overrides them.
func Default() Settings {
	return Settings{
		ToolsDir:           "tools",
		Extensions:         []string{".star"},
		ServerName:         "mcp-dynamic-tools",
		LogLevel:           "info",
		LogFormat:          LogFormatText,
		WatchDebounce:      200 * time.Millisecond,
		RefreshOnList:      true,
		EnableWriteTool:    true,
		MaxConcurrentCalls: 1,
		MaxMessageSize:     1024 * 1024,
	}
}

// DiscoverPath resolves the settings file with first-match semantics: the
// explicit path, then ./mcp-dynamic-tools.yaml, then
// ~/.config/mcp-dynamic-tools/config.yaml. The bool is false when no file
// exists; a missing explicit path is an error.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	explicit := strings.TrimSpace(explicitPath)

	candidates := make([]string, 0, 2)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		if homeDir != "" {
			candidates = append(candidates, filepath.Join(homeDir, ".config", homeConfigDir, homeConfigName))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}

		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}

			continue
		}

		if err != nil {
			return "", false, fmt.Errorf("check config path %q: %w", candidate, err)
		}
	}

	return "", false, nil
}

// LoadFile overlays the YAML file at path onto s. Keys absent from the file
// keep their current values. A relative tools_dir is resolved against the
// file's directory.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}

	before := s.ToolsDir

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	if s.ToolsDir != before && s.ToolsDir != "" && !filepath.IsAbs(s.ToolsDir) {
		s.ToolsDir = filepath.Join(filepath.Dir(path), s.ToolsDir)
	}

	return nil
}

// ApplyEnv overlays DYNTOOLS_* variables read through lookup.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	boolean := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))

			return
		}

		*dst = b
	}

	integer := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))

			return
		}

		*dst = n
	}

	duration := func(name string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))

			return
		}

		*dst = d
	}

	str("TOOLS_DIR", &s.ToolsDir)
	str("SERVER_NAME", &s.ServerName)
	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)
	boolean("WATCH", &s.Watch)
	duration("WATCH_DEBOUNCE", &s.WatchDebounce)
	boolean("REFRESH_ON_LIST", &s.RefreshOnList)
	boolean("WRITE_TOOL", &s.EnableWriteTool)
	integer("MAX_CONCURRENT_CALLS", &s.MaxConcurrentCalls)
	duration("CALL_TIMEOUT", &s.CallTimeout)
	integer("MAX_MESSAGE_SIZE", &s.MaxMessageSize)
	boolean("STDOUT_TRACES", &s.Telemetry.StdoutTraces)

	if v, ok := lookup(EnvPrefix + "EXTENSIONS"); ok {
		s.Extensions = SplitList(v)
	}

	return errors.Join(errs...)
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string

	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// Validate checks the settings. The tools directory must exist.
func (s *Settings) Validate() error {
	var errs []error

	if s.ToolsDir == "" {
		errs = append(errs, errors.New("tools_dir is required"))
	} else if info, err := os.Stat(s.ToolsDir); err != nil {
		errs = append(errs, fmt.Errorf("tools_dir %q: %w", s.ToolsDir, toolerrors.ErrToolsDirNotFound))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("tools_dir %q is not a directory", s.ToolsDir))
	}

	if len(s.Extensions) == 0 {
		errs = append(errs, errors.New("extensions must not be empty"))
	}

	for _, ext := range s.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Errorf("extension %q must start with a dot", ext))
		}
	}

	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if s.LogFormat != LogFormatText && s.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log_format %q must be %q or %q", s.LogFormat, LogFormatText, LogFormatJSON))
	}

	if s.MaxConcurrentCalls < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_calls must be at least 1, got %d", s.MaxConcurrentCalls))
	}

	if s.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("call_timeout must not be negative, got %s", s.CallTimeout))
	}

	if s.WatchDebounce < 0 {
		errs = append(errs, fmt.Errorf("watch_debounce must not be negative, got %s", s.WatchDebounce))
	}

	if s.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("max_message_size must be positive, got %d", s.MaxMessageSize))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", name, err)
	}

	return level, nil
}

// Options converts the settings into server options. Logger, Observer and
// Builtins are left for the caller.
func (s *Settings) Options() *Options {
	return &Options{
		ToolsDir:           s.ToolsDir,
		Extensions:         s.Extensions,
		ServerName:         s.ServerName,
		ServerVersion:      s.ServerVersion,
		Instructions:       s.Instructions,
		RefreshOnList:      s.RefreshOnList,
		WriteTool:          s.EnableWriteTool,
		Watch:              s.Watch,
		WatchDebounce:      s.WatchDebounce,
		MaxConcurrentCalls: s.MaxConcurrentCalls,
		CallTimeout:        s.CallTimeout,
		MaxMessageSize:     s.MaxMessageSize,
	}
}
