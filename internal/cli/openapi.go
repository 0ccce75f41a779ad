package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnassif/ubersmith-api/internal/emitter/oasemitter"
)

// OpenAPIConfig captures the inputs of the openapi command.
type OpenAPIConfig struct {
	SchemaDir  string
	Filename   string
	Out        string
	ServerURL  string
	Title      string
	ConfigPath string
	Log        LogOptions
}

var openapiRunner = runOpenAPI

func newOpenAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Export a schema file as an OpenAPI 3 document",
		Long: "Describe every method of a schema file as a POST operation on " +
			"/<section>.<method> with a form encoded body, for use with generic OpenAPI tooling.",
		Example: strings.TrimSpace(`  ubergen openapi -f 4.5.2.json
  ubergen openapi -f 4.5.2.json --out api.json --server-url https://billing.example.com/api/2.0/`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveOpenAPIConfig(cmd)
			if err != nil {
				return err
			}
			return openapiRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("schema-dir", "s", "", "Directory holding schema files (default "+defaultSchemaDir+")")
	flags.StringP("filename", "f", "", "Schema file name inside --schema-dir")
	flags.String("out", "", "Output file (default <schema-dir>/<name>.openapi.json)")
	flags.String("server-url", "", "Server URL recorded in the document")
	flags.String("title", "", "Document title (default Ubersmith API)")

	return cmd
}

func resolveOpenAPIConfig(cmd *cobra.Command) (*OpenAPIConfig, error) {
	common, err := resolveCommon(cmd)
	if err != nil {
		return nil, err
	}
	cfg := OpenAPIConfig{SchemaDir: defaultSchemaDir, ConfigPath: common.ConfigPath, Log: common.Log}
	setString(&cfg.SchemaDir, common.File.Schema.Dir)
	setString(&cfg.Filename, common.File.Schema.Filename)
	setString(&cfg.Out, common.File.OpenAPI.Out)
	setString(&cfg.ServerURL, common.File.OpenAPI.ServerURL)
	setString(&cfg.Title, common.File.OpenAPI.Title)

	flags := cmd.Flags()
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"schema-dir", &cfg.SchemaDir},
		{"filename", &cfg.Filename},
		{"out", &cfg.Out},
		{"server-url", &cfg.ServerURL},
		{"title", &cfg.Title},
	} {
		if err := stringFlag(flags, f.name, f.dst); err != nil {
			return nil, err
		}
	}

	if cfg.Filename == "" {
		return nil, newUsageError("openapi: --filename is required (set via flag or config file)")
	}
	if cfg.Out == "" {
		cfg.Out = filepath.Join(cfg.SchemaDir, cfg.stem()+".openapi.json")
	}
	return &cfg, nil
}

// stem is the schema file name without its extension; extract names files
// after the Ubersmith version, so it doubles as the document version.
func (c *OpenAPIConfig) stem() string {
	return strings.TrimSuffix(c.Filename, filepath.Ext(c.Filename))
}

func runOpenAPI(ctx context.Context, cfg *OpenAPIConfig) error {
	logger, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	doc, err := loadSchema(filepath.Join(cfg.SchemaDir, cfg.Filename))
	if err != nil {
		return err
	}
	logger.Debug("exporting openapi", "sections", doc.Len(), "methods", doc.MethodCount(), "out", cfg.Out)

	err = oasemitter.Emit(ctx, doc, oasemitter.Options{
		Out: cfg.Out,
		Info: oasemitter.Info{
			Title:     cfg.Title,
			Version:   cfg.stem(),
			ServerURL: cfg.ServerURL,
		},
	})
	if err != nil {
		return wrapOutputError(err, cfg.Out)
	}
	fmt.Fprintf(os.Stdout, "Wrote OpenAPI document for %d methods to %s\n", doc.MethodCount(), cfg.Out)
	return nil
}
