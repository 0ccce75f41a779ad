// Package pyemitter renders a schema document into a Python package: one module
// per section plus an index module.
package pyemitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bnassif/ubersmith-api/internal/fileutil"
	"github.com/bnassif/ubersmith-api/internal/schema"
)

const (
	indexFile = "__init__.py"
	baseFile  = "_base.py"
)

// Options controls how the Python emitter renders a package.
type Options struct {
	OutDir    string       // required; target package directory
	Templates *TemplateSet // nil selects DefaultTemplates()
	Force     bool         // overwrite a non-empty OutDir
	DryRun    bool         // don't write, only plan
	Logger    *slog.Logger // nil discards
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result reports what was planned, written and skipped.
type Result struct {
	Planned []PlannedFile
	// Written lists relative paths in write order. Empty for dry runs.
	Written []string
	// Failed lists sections whose module could not be rendered or written.
	Failed []string
}

// Emit renders doc into opts.OutDir. A section that fails to render is skipped
// and reported; the remaining sections and the index are still written, and
// the returned error joins every section failure.
func Emit(ctx context.Context, doc *schema.Document, opts Options) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("pyemitter: nil schema document")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("pyemitter: OutDir is required")
	}
	ts := opts.Templates
	if ts == nil {
		ts = DefaultTemplates()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("pyemitter: resolve output directory: %w", err)
	}
	if err := fileutil.ValidateOutputDirectory(abs, opts.Force); err != nil {
		return nil, err
	}

	type rendered struct {
		rel     string
		section string
		content []byte
	}
	var (
		files []rendered
		errs  []error
		res   = &Result{}
	)
	fail := func(section string, err error) {
		res.Failed = append(res.Failed, section)
		errs = append(errs, err)
		logger.Error("section failed", "section", section, "error", err)
	}

	base, err := execute(ts.base, "", map[string]any{})
	if err != nil {
		return nil, err
	}
	files = append(files, rendered{rel: baseFile, content: base})

	index, err := execute(ts.index, "", indexData(doc))
	if err != nil {
		return nil, err
	}

	modules := map[string]string{}
	for _, s := range doc.Sections() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("rendering section", "section", s.Name, "methods", s.Len())

		rel := pyIdent(s.Name) + ".py"
		if _, dup := modules[rel]; dup || rel == baseFile || rel == indexFile {
			fail(s.Name, &RenderError{Section: s.Name, Field: "name",
				Cause: fmt.Errorf("module %s is already taken", rel)})
			continue
		}
		modules[rel] = s.Name

		data, err := sectionData(s)
		if err != nil {
			fail(s.Name, err)
			continue
		}
		content, err := execute(ts.section, s.Name, data)
		if err != nil {
			fail(s.Name, err)
			continue
		}
		files = append(files, rendered{rel: rel, section: s.Name, content: content})
	}
	files = append(files, rendered{rel: indexFile, content: index})

	for _, f := range files {
		res.Planned = append(res.Planned, PlannedFile{RelPath: f.rel, Size: len(f.content), Mode: fileutil.FileMode})
	}
	sort.Slice(res.Planned, func(i, j int) bool { return res.Planned[i].RelPath < res.Planned[j].RelPath })

	if opts.DryRun {
		return res, errors.Join(errs...)
	}

	for _, f := range files {
		if err := fileutil.WriteFileAtomic(filepath.Join(abs, f.rel), f.content, fileutil.FileMode); err != nil {
			if f.section == "" {
				errs = append(errs, fmt.Errorf("pyemitter: write file %s: %w", f.rel, err))
				return res, errors.Join(errs...)
			}
			fail(f.section, &RenderError{Section: f.section, Cause: err})
			continue
		}
		logger.Debug("wrote file", "path", f.rel)
		res.Written = append(res.Written, f.rel)
	}
	return res, errors.Join(errs...)
}
