package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dyntools "github.com/wagiedev/mcp-dynamic-tools"
)

const flagJSON = "json"

func (a *app) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools and any rejected files",
		Args:  cobra.NoArgs,
		RunE:  a.runList,
	}

	cmd.Flags().Bool(flagJSON, false, "Print the catalog as sent to clients, as JSON")
	cmd.Flags().Bool("strict", false, "Exit with a validation error if any file was rejected")

	return cmd
}

// listOutput is the --json form of the list command.
type listOutput struct {
	Tools    []*dyntools.McpTool          `json:"tools"`
	Rejected []dyntools.ValidationFailure `json:"rejected"`
}

func (a *app) runList(cmd *cobra.Command, _ []string) error {
	env, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer env.shutdown()

	catalog := env.server.Catalog()
	rejected := env.server.Diagnostics()

	asJSON, _ := cmd.Flags().GetBool(flagJSON)
	if asJSON {
		out := listOutput{
			Tools:    make([]*dyntools.McpTool, 0, len(catalog)),
			Rejected: rejected,
		}

		for _, desc := range catalog {
			out.Tools = append(out.Tools, dyntools.NewMcpTool(desc))
		}

		if out.Rejected == nil {
			out.Rejected = []dyntools.ValidationFailure{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return exitError(exitRuntime, "encode catalog: %v", err)
		}
	} else {
		printCatalog(cmd, catalog, rejected)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && len(rejected) > 0 {
		return exitError(exitValidation, "%d tool file(s) rejected", len(rejected))
	}

	return nil
}

func printCatalog(cmd *cobra.Command, catalog []*dyntools.Descriptor, rejected []dyntools.ValidationFailure) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tPARAMETERS\tSUMMARY")

	for _, desc := range catalog {
		params := make([]string, 0, len(desc.Parameters))
		for _, p := range desc.Parameters {
			if p.Required {
				params = append(params, p.Name)
			} else {
				params = append(params, p.Name+"?")
			}
		}

		name := desc.Name
		if desc.Builtin {
			name += " (builtin)"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(params, ", "), firstLine(desc.Summary))
	}

	_ = w.Flush()

	if len(rejected) == 0 {
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRejected files:\n")

	for _, failure := range rejected {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", failure.Error())
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
