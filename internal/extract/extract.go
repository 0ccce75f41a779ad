// Package extract crawls a remote API's method registry into a schema document.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bnassif/ubersmith-api/internal/schema"
	"github.com/bnassif/ubersmith-api/internal/ubersmith"
)

// API is the remote capability the extractor needs. *ubersmith.Client
// implements it.
type API interface {
	SystemInfo(ctx context.Context) (*ubersmith.SystemInfo, error)
	MethodList(ctx context.Context) ([]string, error)
	MethodGet(ctx context.Context, name string) (json.RawMessage, error)
}

// Options controls an extraction run.
type Options struct {
	// Progress, if set, is called before each method detail is fetched.
	// index is 1-based.
	Progress func(index, total int, method string)
	Logger   *slog.Logger
}

// Result is the outcome of a crawl.
type Result struct {
	Document *schema.Document
	Version  string
	// Methods is the number of identifiers reported by the method list.
	Methods int
	Skipped []Skipped
}

// Skipped records a method omitted from the document.
type Skipped struct {
	Method string
	Err    error
}

// MethodDetailError wraps a failed or unusable method detail response.
type MethodDetailError struct {
	Method string
	Cause  error
}

func (e *MethodDetailError) Error() string {
	return fmt.Sprintf("method detail %s: %v", e.Method, e.Cause)
}

func (e *MethodDetailError) Unwrap() error { return e.Cause }

// ErrNoSeparator is reported for identifiers that cannot be split into a
// section and a method.
var ErrNoSeparator = errors.New("identifier has no section separator")

// Extract queries the remote version and method list, then fetches each method
// detail in list order. Failures of the first two calls are fatal. A failed or
// invalid method detail only drops that method; the crawl continues.
func Extract(ctx context.Context, api API, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	info, err := api.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("connected", "version", info.Version)

	methods, err := api.MethodList(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("methods found", "count", len(methods))

	res := &Result{Document: schema.New(), Version: info.Version, Methods: len(methods)}
	for i, name := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(methods), name)
		}

		section, method, ok := strings.Cut(name, ".")
		if !ok || section == "" || method == "" {
			res.skip(logger, name, ErrNoSeparator)
			continue
		}
		// The section exists even if every one of its methods fails.
		res.Document.EnsureSection(section)

		raw, err := api.MethodGet(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			res.skip(logger, name, err)
			continue
		}
		m, err := schema.DecodeMethod(raw)
		if err != nil {
			res.skip(logger, name, schema.WithMethod(err, section, method))
			continue
		}
		logger.Debug("method extracted", "method", name, "parameters", len(m.Parameters))
		res.Document.Set(section, method, m)
	}
	return res, nil
}

func (r *Result) skip(logger *slog.Logger, name string, cause error) {
	err := &MethodDetailError{Method: name, Cause: cause}
	r.Skipped = append(r.Skipped, Skipped{Method: name, Err: err})
	logger.Warn("skipping method", "method", name, "error", cause)
}

// DefaultFilename names the schema file for a remote version.
func DefaultFilename(version string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "schema"
	}
	v = strings.NewReplacer("/", "_", "\\", "_").Replace(v)
	return v + ".json"
}
