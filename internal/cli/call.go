package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	mcpadapter "github.com/wagiedev/mcp-dynamic-tools/internal/mcp"
)

const flagArgs = "args"

func (a *app) newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [key=value ...]",
		Short: "Invoke one tool and print its result",
		Long: "Call runs a tool once without a client session. Arguments are given as\n" +
			"key=value pairs, as a JSON object with --args, or both; pairs win.",
		Example: "  mcp-dynamic-tools call greet name=Ada\n" +
			"  mcp-dynamic-tools call calculator --args '{\"a\": 2, \"b\": 3}'",
		Args: cobra.MinimumNArgs(1),
		RunE: a.runCall,
	}

	cmd.Flags().String(flagArgs, "", "Arguments as a JSON object")
	cmd.Flags().Duration(flagCallTimeout, 0, "Call timeout (0 disables)")
	cmd.Flags().Bool(flagStdoutTraces, false, "Write OpenTelemetry spans as JSON to stderr")

	return cmd
}

func (a *app) runCall(cmd *cobra.Command, args []string) error {
	arguments, err := parseCallArguments(cmd, args[1:])
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	env, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer env.shutdown()

	res := env.server.Call(cmd.Context(), args[0], arguments)
	if !res.OK() {
		f := res.Failure

		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", f.Error())

		if f.Detail != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", f.Detail)
		}

		return exitError(exitRuntime, "call %s failed: %s", args[0], f.Kind)
	}

	fmt.Fprintln(cmd.OutOrStdout(), mcpadapter.Text(res.Value))

	return nil
}

// parseCallArguments merges --args with key=value pairs. Pair values are
// decoded as JSON when they parse, otherwise kept as strings.
func parseCallArguments(cmd *cobra.Command, pairs []string) (map[string]any, error) {
	arguments := make(map[string]any)

	if raw, _ := cmd.Flags().GetString(flagArgs); strings.TrimSpace(raw) != "" {
		parsed, err := mcpadapter.ParseArguments(json.RawMessage(raw))
		if err != nil {
			return nil, fmt.Errorf("--args: %w", err)
		}

		maps.Copy(arguments, parsed)
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: expected key=value", pair)
		}

		arguments[key] = decodeValue(value)
	}

	return arguments, nil
}

// decodeValue reads numbers the way tools/call arguments are read.
func decodeValue(value string) any {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		return value
	}

	return decoded
}
