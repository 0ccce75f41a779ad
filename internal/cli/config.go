package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for connection settings. They override the
// config file and are overridden by flags.
const (
	envHost     = "UBERSMITH_HOST"
	envPort     = "UBERSMITH_PORT"
	envUsername = "UBERSMITH_USERNAME"
	envPassword = "UBERSMITH_PASSWORD"
)

const (
	defaultSchemaDir = "../schema"
	defaultOutDir    = "../src/ubersmith/api"
)

// fileConfig mirrors the YAML config file. Unknown keys are rejected.
type fileConfig struct {
	Remote   remoteFileConfig   `yaml:"remote"`
	Schema   schemaFileConfig   `yaml:"schema"`
	Generate generateFileConfig `yaml:"generate"`
	OpenAPI  openapiFileConfig  `yaml:"openapi"`
	Log      logFileConfig      `yaml:"log"`
}

type remoteFileConfig struct {
	Host      string         `yaml:"host"`
	Port      int            `yaml:"port"`
	Username  string         `yaml:"username"`
	Password  string         `yaml:"password"`
	NoVerify  *bool          `yaml:"noVerify"`
	Insecure  *bool          `yaml:"insecure"`
	Timeout   *time.Duration `yaml:"timeout"`
	RateLimit *float64       `yaml:"rateLimit"`
}

type schemaFileConfig struct {
	Dir      string `yaml:"dir"`
	Filename string `yaml:"filename"`
}

type generateFileConfig struct {
	OutDir      string `yaml:"outDir"`
	TemplateDir string `yaml:"templateDir"`
	Force       *bool  `yaml:"force"`
	DryRun      *bool  `yaml:"dryRun"`
}

type openapiFileConfig struct {
	Out       string `yaml:"out"`
	ServerURL string `yaml:"serverUrl"`
	Title     string `yaml:"title"`
}

type logFileConfig struct {
	Format  string `yaml:"format"`
	Verbose *bool  `yaml:"verbose"`
	Quiet   *bool  `yaml:"quiet"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

// loadEnv returns a lookup over the process environment, falling back to the
// variables of envFile when one is given. Empty process variables count as
// unset. The process environment is not modified.
func loadEnv(envFile string) (lookupFunc, error) {
	var dotenv map[string]string
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("read env file %q: %v", envFile, err))
		}
		dotenv = m
	}
	return func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// commonConfig holds what every command resolves from persistent flags.
type commonConfig struct {
	ConfigPath string
	File       *fileConfig
	Env        lookupFunc
	Log        LogOptions
}

func resolveCommon(cmd *cobra.Command) (*commonConfig, error) {
	flags := cmd.Flags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	file, err := loadFileConfig(configPath)
	if err != nil {
		return nil, err
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	env, err := loadEnv(strings.TrimSpace(envFile))
	if err != nil {
		return nil, err
	}

	log := LogOptions{Format: file.Log.Format}
	if file.Log.Verbose != nil {
		log.Verbose = *file.Log.Verbose
	}
	if file.Log.Quiet != nil {
		log.Quiet = *file.Log.Quiet
	}
	if err := stringFlag(flags, "log-format", &log.Format); err != nil {
		return nil, err
	}
	if err := boolFlag(flags, "verbose", &log.Verbose); err != nil {
		return nil, err
	}
	if err := boolFlag(flags, "quiet", &log.Quiet); err != nil {
		return nil, err
	}

	return &commonConfig{ConfigPath: configPath, File: file, Env: env, Log: log}, nil
}

func stringFlag(flags *pflag.FlagSet, name string, dst *string) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return err
	}
	*dst = strings.TrimSpace(v)
	return nil
}

func boolFlag(flags *pflag.FlagSet, name string, dst *bool) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func intFlag(flags *pflag.FlagSet, name string, dst *int) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func durationFlag(flags *pflag.FlagSet, name string, dst *time.Duration) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func float64Flag(flags *pflag.FlagSet, name string, dst *float64) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetFloat64(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func envString(env lookupFunc, key string, dst *string) {
	if v, ok := env(key); ok {
		setString(dst, v)
	}
}

func envInt(env lookupFunc, key string, dst *int) error {
	v, ok := env(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return newUsageError(fmt.Sprintf("environment %s: invalid integer %q", key, v))
	}
	*dst = n
	return nil
}
