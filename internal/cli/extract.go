package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bnassif/ubersmith-api/internal/extract"
	"github.com/bnassif/ubersmith-api/internal/schema"
	"github.com/bnassif/ubersmith-api/internal/ubersmith"
)

// ExtractConfig captures all inputs of the extract command after merging
// defaults, config file values, environment and CLI overrides.
type ExtractConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	NoVerify   bool
	Insecure   bool
	Timeout    time.Duration
	RateLimit  float64
	OutDir     string
	Filename   string
	ConfigPath string
	Log        LogOptions
}

func defaultExtractConfig() ExtractConfig {
	return ExtractConfig{OutDir: defaultSchemaDir, Timeout: ubersmith.DefaultTimeout}
}

var extractRunner = runExtract

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Crawl an Ubersmith instance's method registry into a schema file",
		Long: "Query uber.method_list and uber.method_get on an Ubersmith instance and " +
			"write the collected method descriptors to <out-dir>/<version>.json. " +
			"Methods whose details cannot be fetched are skipped.",
		Example: strings.TrimSpace(`  ubergen extract --host billing.example.com -u api -p secret
  UBERSMITH_PASSWORD=secret ubergen --config ubergen.yaml extract --insecure`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveExtractConfig(cmd)
			if err != nil {
				return err
			}
			return extractRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("host", "H", "", "Ubersmith host name ($"+envHost+")")
	flags.IntP("port", "P", 0, "Port; defaults to 443, or 80 with --insecure ($"+envPort+")")
	flags.StringP("username", "u", "", "API user ($"+envUsername+")")
	flags.StringP("password", "p", "", "API password or token ($"+envPassword+")")
	flags.Bool("no-verify", false, "Skip TLS certificate verification")
	flags.BoolP("insecure", "k", false, "Use plain HTTP instead of HTTPS")
	flags.StringP("out-dir", "o", "", "Directory for the schema file (default "+defaultSchemaDir+")")
	flags.StringP("filename", "f", "", "Schema file name (default <version>.json)")
	flags.Duration("timeout", 0, "Timeout for each remote call (default 1m0s)")
	flags.Float64("rate-limit", 0, "Maximum requests per second; 0 disables pacing")

	return cmd
}

func resolveExtractConfig(cmd *cobra.Command) (*ExtractConfig, error) {
	common, err := resolveCommon(cmd)
	if err != nil {
		return nil, err
	}
	cfg := defaultExtractConfig()
	cfg.ConfigPath = common.ConfigPath
	cfg.Log = common.Log

	remote := common.File.Remote
	setString(&cfg.Host, remote.Host)
	if remote.Port != 0 {
		cfg.Port = remote.Port
	}
	setString(&cfg.Username, remote.Username)
	setString(&cfg.Password, remote.Password)
	setBool(&cfg.NoVerify, remote.NoVerify)
	setBool(&cfg.Insecure, remote.Insecure)
	if remote.Timeout != nil {
		cfg.Timeout = *remote.Timeout
	}
	if remote.RateLimit != nil {
		cfg.RateLimit = *remote.RateLimit
	}
	setString(&cfg.OutDir, common.File.Schema.Dir)
	setString(&cfg.Filename, common.File.Schema.Filename)

	envString(common.Env, envHost, &cfg.Host)
	if err := envInt(common.Env, envPort, &cfg.Port); err != nil {
		return nil, err
	}
	envString(common.Env, envUsername, &cfg.Username)
	envString(common.Env, envPassword, &cfg.Password)

	flags := cmd.Flags()
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"host", &cfg.Host},
		{"username", &cfg.Username},
		{"password", &cfg.Password},
		{"out-dir", &cfg.OutDir},
		{"filename", &cfg.Filename},
	} {
		if err := stringFlag(flags, f.name, f.dst); err != nil {
			return nil, err
		}
	}
	if err := intFlag(flags, "port", &cfg.Port); err != nil {
		return nil, err
	}
	if err := boolFlag(flags, "no-verify", &cfg.NoVerify); err != nil {
		return nil, err
	}
	if err := boolFlag(flags, "insecure", &cfg.Insecure); err != nil {
		return nil, err
	}
	if err := durationFlag(flags, "timeout", &cfg.Timeout); err != nil {
		return nil, err
	}
	if err := float64Flag(flags, "rate-limit", &cfg.RateLimit); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ExtractConfig) validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "--host")
	}
	if c.Username == "" {
		missing = append(missing, "--username")
	}
	if c.Password == "" {
		missing = append(missing, "--password")
	}
	if len(missing) > 0 {
		return newUsageError(fmt.Sprintf("extract: %s required (set via flag, environment or config file)", strings.Join(missing, ", ")))
	}
	if c.Port < 0 || c.Port > 65535 {
		return newUsageError(fmt.Sprintf("extract: invalid --port %d", c.Port))
	}
	if c.Timeout <= 0 {
		return newUsageError("extract: --timeout must be positive")
	}
	if c.RateLimit < 0 {
		return newUsageError("extract: --rate-limit must not be negative")
	}
	if strings.ContainsAny(c.Filename, `/\`) {
		return newUsageError(fmt.Sprintf("extract: --filename %q must not contain a path separator", c.Filename))
	}
	return nil
}

func (c *ExtractConfig) clientConfig() ubersmith.Config {
	return ubersmith.Config{
		Host:      c.Host,
		Port:      c.Port,
		Username:  c.Username,
		Password:  c.Password,
		VerifyTLS: !c.NoVerify,
		Secure:    !c.Insecure,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
	}
}

func runExtract(ctx context.Context, cfg *ExtractConfig) error {
	progress := progressPrinter(os.Stderr, !cfg.Log.Quiet && isatty.IsTerminal(os.Stderr.Fd()))
	logger, err := newLogger(progress, cfg.Log)
	if err != nil {
		return err
	}
	client, err := ubersmith.New(cfg.clientConfig())
	if err != nil {
		return newUsageError(err.Error())
	}
	logger.Info("gathering method details", "host", client.Host())

	res, err := extract.Extract(ctx, client, extract.Options{Progress: progress.step, Logger: logger})
	progress.done()
	if err != nil {
		var ce *ubersmith.ConnectivityError
		if errors.As(err, &ce) && ce.Auth {
			return fmt.Errorf("%w\nHint: check --username/--password or the %s/%s variables", err, envUsername, envPassword)
		}
		return err
	}

	name := cfg.Filename
	if name == "" {
		name = extract.DefaultFilename(res.Version)
	}
	outFile := filepath.Join(cfg.OutDir, name)
	if err := schema.Save(outFile, res.Document); err != nil {
		return wrapOutputError(err, outFile)
	}

	fmt.Fprintf(os.Stdout, "Wrote %d methods in %d sections (Ubersmith %s) to %s\n",
		res.Document.MethodCount(), res.Document.Len(), res.Version, outFile)
	if n := len(res.Skipped); n > 0 {
		fmt.Fprintf(os.Stdout, "Skipped %d of %d methods:\n", n, res.Methods)
		for _, s := range res.Skipped {
			fmt.Fprintf(os.Stdout, "- %s: %v\n", s.Method, errors.Unwrap(s.Err))
		}
	}
	return nil
}

// progressLine rewrites a single "Processing item i/N" line on a terminal.
// Log records written through it clear that line first so they start at
// column zero.
type progressLine struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	active  bool
}

func progressPrinter(w io.Writer, enabled bool) *progressLine {
	return &progressLine{w: w, enabled: enabled}
}

func (p *progressLine) step(index, total int, method string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	fmt.Fprintf(p.w, "\r\033[KProcessing item %d/%d: %s", index, total, method)
}

// Write implements io.Writer for the logger.
func (p *progressLine) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		io.WriteString(p.w, "\r\033[K")
		p.active = false
	}
	return p.w.Write(b)
}

func (p *progressLine) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}
