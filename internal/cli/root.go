package cli

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
)

// Execute runs the ubergen CLI.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI with ctx; canceling it aborts a running extraction.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ubergen",
		Short:         "Extract the Ubersmith API schema and generate a Python client",
		Long:          "ubergen crawls an Ubersmith instance's method registry into a schema file and renders a Python API package from it.",
		Version:       versioninfo.Short(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagError)

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file path (YAML)")
	pf.String("env-file", "", "Dotenv file with UBERSMITH_* variables")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Only log warnings and errors")
	pf.String("log-format", "", "Log format: text or json (default text)")

	for _, sub := range []*cobra.Command{newExtractCmd(), newGenerateCmd(), newOpenAPICmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
