package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnassif/ubersmith-api/internal/emitter/pyemitter"
	"github.com/bnassif/ubersmith-api/internal/schema"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	SchemaDir   string
	Filename    string
	OutDir      string
	TemplateDir string
	ConfigPath  string
	DryRun      bool
	Force       bool
	Log         LogOptions
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{SchemaDir: defaultSchemaDir, OutDir: defaultOutDir}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the Python API package from a schema file",
		Long: "Render one Python module per Ubersmith section plus an __init__ index " +
			"from a schema file written by extract. Options can be provided via flags, " +
			"config files, or defaults.",
		Example: strings.TrimSpace(`  ubergen generate -f 4.5.2.json
  ubergen --config ubergen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("schema-dir", "s", "", "Directory holding schema files (default "+defaultSchemaDir+")")
	flags.StringP("filename", "f", "", "Schema file name inside --schema-dir")
	flags.StringP("out-dir", "o", "", "Output package directory (default "+defaultOutDir+")")
	flags.String("template-dir", "", "Directory with template overrides")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	common, err := resolveCommon(cmd)
	if err != nil {
		return nil, err
	}
	cfg := defaultGenerateConfig()
	cfg.ConfigPath = common.ConfigPath
	cfg.Log = common.Log

	setString(&cfg.SchemaDir, common.File.Schema.Dir)
	setString(&cfg.Filename, common.File.Schema.Filename)
	setString(&cfg.OutDir, common.File.Generate.OutDir)
	setString(&cfg.TemplateDir, common.File.Generate.TemplateDir)
	setBool(&cfg.Force, common.File.Generate.Force)
	setBool(&cfg.DryRun, common.File.Generate.DryRun)

	flags := cmd.Flags()
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"schema-dir", &cfg.SchemaDir},
		{"filename", &cfg.Filename},
		{"out-dir", &cfg.OutDir},
		{"template-dir", &cfg.TemplateDir},
	} {
		if err := stringFlag(flags, f.name, f.dst); err != nil {
			return nil, err
		}
	}
	if err := boolFlag(flags, "dry-run", &cfg.DryRun); err != nil {
		return nil, err
	}
	if err := boolFlag(flags, "force", &cfg.Force); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *GenerateConfig) validate() error {
	if c.Filename == "" {
		return newUsageError("generate: --filename is required (set via flag or config file)")
	}
	if c.OutDir == "" {
		return newUsageError("generate: --out-dir must not be empty")
	}
	return nil
}

// SchemaPath is the schema file the command reads.
func (c *GenerateConfig) SchemaPath() string {
	return filepath.Join(c.SchemaDir, c.Filename)
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	doc, err := loadSchema(cfg.SchemaPath())
	if err != nil {
		return err
	}
	logger.Info("generating client", "schema", cfg.SchemaPath(), "sections", doc.Len(), "methods", doc.MethodCount())

	var templates *pyemitter.TemplateSet
	if cfg.TemplateDir != "" {
		templates, err = pyemitter.LoadTemplates(os.DirFS(cfg.TemplateDir))
		if err != nil {
			return newUsageError(fmt.Sprintf("templates: %v", err))
		}
	}

	absOut := cfg.OutDir
	if ap, err := filepath.Abs(cfg.OutDir); err == nil {
		absOut = ap
	}

	res, err := pyemitter.Emit(ctx, doc, pyemitter.Options{
		OutDir:    cfg.OutDir,
		Templates: templates,
		Force:     cfg.Force,
		DryRun:    cfg.DryRun,
		Logger:    logger,
	})
	if res == nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(res.Planned), paths)
	} else {
		fmt.Fprintf(os.Stdout, "Wrote %d files to %s\n", len(res.Written), absOut)
	}
	if err != nil && len(res.Failed) == 0 {
		return wrapOutputError(err, absOut)
	}
	if err != nil {
		return fmt.Errorf("%d of %d sections failed:\n%w", len(res.Failed), doc.Len(), err)
	}
	return nil
}

// loadSchema maps schema load failures into friendly usage errors.
func loadSchema(path string) (*schema.Document, error) {
	doc, err := schema.Load(path)
	if err == nil {
		return doc, nil
	}
	var le *schema.LoadError
	if errors.As(err, &le) {
		msg := fmt.Sprintf("schema: %s", le.Message)
		if le.Location != "" {
			loc := le.Location
			if le.Line > 0 {
				loc = fmt.Sprintf("%s:%d", loc, le.Line)
			}
			msg = fmt.Sprintf("%s\nLocation: %s", msg, loc)
		}
		return nil, newUsageError(msg)
	}
	return nil, err
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out-dir or use --force when appropriate.", outDir, msg))
	}
	return err
}
