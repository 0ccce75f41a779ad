// Package oasemitter exports a schema document as an OpenAPI 3 description of
// the Ubersmith form-encoded RPC endpoint.
package oasemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bnassif/ubersmith-api/internal/fileutil"
	"github.com/bnassif/ubersmith-api/internal/normalize"
	"github.com/bnassif/ubersmith-api/internal/schema"
)

// Extension keys added to operations and request schemas.
const (
	ExtMethod         = "x-ubersmith-method"
	ExtWildcardPrefix = "x-ubersmith-wildcard-prefix"
)

const formContentType = "application/x-www-form-urlencoded"

// Info describes the exported document.
type Info struct {
	Title     string
	Version   string
	ServerURL string
}

// Options controls Emit.
type Options struct {
	Out  string // output file path; required
	Info Info
}

// Build converts doc into an OpenAPI document with one POST operation per
// method. Parameters go through the same normalization as generated code, so
// unsupported names are left out.
func Build(doc *schema.Document, info Info) (*openapi3.T, error) {
	if doc == nil {
		return nil, fmt.Errorf("oasemitter: nil schema document")
	}
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = "Ubersmith API"
	}
	version := strings.TrimSpace(info.Version)
	if version == "" {
		version = "unknown"
	}

	out := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.Paths{},
	}
	if info.ServerURL != "" {
		out.Servers = openapi3.Servers{{URL: info.ServerURL}}
	}

	for _, s := range doc.Sections() {
		out.Tags = append(out.Tags, &openapi3.Tag{Name: s.Name})
		for _, m := range s.Methods() {
			op, err := operation(m)
			if err != nil {
				return nil, err
			}
			out.Paths["/"+m.Dotted()] = &openapi3.PathItem{Post: op}
		}
	}
	return out, nil
}

func operation(m *schema.Method) (*openapi3.Operation, error) {
	required, optional, err := normalize.Normalize(m.Parameters)
	if err != nil {
		return nil, schema.WithMethod(err, m.Section(), m.Name)
	}

	body := openapi3.NewObjectSchema()
	addProp := func(p normalize.Param) {
		if p.WirePrefix != "" {
			if body.Extensions == nil {
				body.Extensions = map[string]interface{}{}
			}
			body.Extensions[ExtWildcardPrefix] = p.WirePrefix
			return
		}
		prop := openapi3.NewStringSchema()
		prop.Description = p.Description
		body.WithProperty(p.WireName, prop)
		if p.Required {
			body.Required = append(body.Required, p.WireName)
		}
	}
	for _, p := range required {
		addProp(p)
	}
	for _, p := range optional {
		addProp(p)
	}

	op := &openapi3.Operation{
		OperationID: m.Dotted(),
		Tags:        []string{m.Section()},
		Summary:     firstLine(m.Description),
		Description: m.Description,
		RequestBody: &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(len(body.Required) > 0).
				WithContent(openapi3.Content{formContentType: openapi3.NewMediaType().WithSchema(body)}),
		},
		Responses: openapi3.Responses{
			"200": &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("Ubersmith response envelope").
				WithJSONSchema(envelopeSchema())},
		},
		Extensions: map[string]interface{}{ExtMethod: m.Dotted()},
	}
	return op, nil
}

func envelopeSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewBoolSchema()).
		WithProperty("error_code", openapi3.NewIntegerSchema().WithNullable()).
		WithProperty("error_message", openapi3.NewStringSchema()).
		WithProperty("data", &openapi3.Schema{})
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// Emit builds, validates and writes the OpenAPI document as indented JSON.
func Emit(ctx context.Context, doc *schema.Document, opts Options) error {
	if strings.TrimSpace(opts.Out) == "" {
		return fmt.Errorf("oasemitter: Out is required")
	}
	spec, err := Build(doc, opts.Info)
	if err != nil {
		return err
	}
	if err := spec.Validate(ctx); err != nil {
		return fmt.Errorf("oasemitter: generated document is invalid: %w", err)
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("oasemitter: marshal: %w", err)
	}
	abs, err := filepath.Abs(opts.Out)
	if err != nil {
		return fmt.Errorf("oasemitter: resolve output path: %w", err)
	}
	return fileutil.WriteFileAtomic(abs, append(data, '\n'), fileutil.FileMode)
}
