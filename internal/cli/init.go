package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnassif/ubersmith-api/internal/fileutil"
)

const defaultInitOut = "ubergen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample ubergen configuration file",
		Long:  "Scaffold a commented ubergen configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force})
		},
	}

	cmd.Flags().String("out", defaultInitOut, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(_ context.Context, cfg *InitConfig) error {
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultInitOut
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := fileutil.WriteFileAtomic(absPath, []byte(content), fileutil.FileMode); err != nil {
		return newUsageError(fmt.Sprintf("init: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# ubergen configuration (YAML)
# All fields are optional. Environment variables override file values and
# command-line flags override both.

remote:
  # Ubersmith host name, without scheme ($UBERSMITH_HOST).
  # host: billing.example.com

  # Port; 443 by default, 80 with insecure ($UBERSMITH_PORT).
  # port: 443

  # API credentials ($UBERSMITH_USERNAME, $UBERSMITH_PASSWORD).
  # Prefer the environment or an --env-file for the password.
  # username: api

  # Skip TLS certificate verification.
  # noVerify: false

  # Use plain HTTP.
  # insecure: false

  # Timeout for each remote call.
  # timeout: 1m

  # Maximum requests per second; 0 disables pacing.
  # rateLimit: 0

schema:
  # Directory holding schema files.
  # dir: ../schema

  # Schema file name; extract defaults to <version>.json.
  # filename: 4.5.2.json

generate:
  # Python package directory receiving one module per section.
  # outDir: ../src/ubersmith/api

  # Directory with section.py.tmpl, api__init__.py.tmpl or base.py.tmpl overrides.
  # templateDir: ./templates

  # Overwrite a non-empty output directory.
  # force: false

  # Preview planned outputs without writing files.
  # dryRun: false

openapi:
  # Output file; defaults to <schema dir>/<name>.openapi.json.
  # out: ./ubersmith.openapi.json
  # serverUrl: https://billing.example.com/api/2.0/
  # title: Ubersmith API

log:
  # text or json.
  # format: text
  # verbose: false
  # quiet: false
`
