package pyemitter

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/bnassif/ubersmith-api/internal/normalize"
	"github.com/bnassif/ubersmith-api/internal/schema"
)

// RenderError aborts rendering of a single section. Field names the missing
// template key or invalid descriptor field when it is known.
type RenderError struct {
	Section  string
	Template string
	Field    string
	Cause    error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString("render")
	if e.Section != "" {
		fmt.Fprintf(&b, " section %q", e.Section)
	}
	if e.Template != "" {
		fmt.Fprintf(&b, " (%s)", e.Template)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	return b.String()
}

func (e *RenderError) Unwrap() error { return e.Cause }

var (
	missingKeyRe   = regexp.MustCompile(`map has no entry for key "([^"]+)"`)
	missingFieldRe = regexp.MustCompile(`can't evaluate field (\w+)`)
)

// missingField extracts the offending key from a text/template exec error.
func missingField(err error) string {
	msg := err.Error()
	if m := missingKeyRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := missingFieldRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func execute(t *template.Template, section string, data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, &RenderError{Section: section, Template: t.Name(), Field: missingField(err), Cause: err}
	}
	return buf.Bytes(), nil
}

// sectionData builds the strict data map for one section template. Methods
// keep document order; parameters are required then optional, each sorted.
func sectionData(s *schema.Section) (map[string]any, error) {
	methods := make([]any, 0, s.Len())
	funcNames := map[string]string{}
	for _, m := range s.Methods() {
		required, optional, err := normalize.Normalize(m.Parameters)
		if err != nil {
			field := ""
			var ve *schema.ValidationError
			if errors.As(err, &ve) {
				field = ve.Field
			}
			return nil, &RenderError{Section: s.Name, Field: field, Cause: schema.WithMethod(err, s.Name, m.Name)}
		}

		fn := pyIdent(m.Name)
		if prev, dup := funcNames[fn]; dup {
			return nil, &RenderError{Section: s.Name, Field: "name",
				Cause: fmt.Errorf("methods %q and %q both map to %s()", prev, m.Name, fn)}
		}
		funcNames[fn] = m.Name

		md, err := methodData(m, required, optional)
		if err != nil {
			return nil, &RenderError{Section: s.Name, Field: "param", Cause: err}
		}
		md["func_name"] = fn
		methods = append(methods, md)
	}
	return map[string]any{
		"section_name": s.Name,
		"module_name":  pyIdent(s.Name),
		"class_name":   className(s.Name),
		"section_data": methods,
	}, nil
}

func methodData(m *schema.Method, required, optional []normalize.Param) (map[string]any, error) {
	idents := map[string]string{}
	convert := func(ps []normalize.Param) ([]any, error) {
		out := make([]any, 0, len(ps))
		for _, p := range ps {
			id := pyIdent(p.Name)
			if prev, dup := idents[id]; dup {
				return nil, fmt.Errorf("%s: parameters %q and %q both map to %s", m.Dotted(), prev, p.WireName, id)
			}
			idents[id] = p.WireName
			out = append(out, map[string]any{
				"name":        id,
				"wire_name":   p.WireName,
				"wire_prefix": p.WirePrefix,
				"required":    p.Required,
				"description": paramDoc(p, id),
			})
		}
		return out, nil
	}
	req, err := convert(required)
	if err != nil {
		return nil, err
	}
	opt, err := convert(optional)
	if err != nil {
		return nil, err
	}

	sig := []string{"self"}
	for _, p := range req {
		sig = append(sig, p.(map[string]any)["name"].(string))
	}
	for _, p := range opt {
		sig = append(sig, p.(map[string]any)["name"].(string)+"=None")
	}

	desc := strings.TrimSpace(m.Description)
	if desc == "" {
		desc = "Call " + m.Dotted() + "."
	}
	return map[string]any{
		"name":        m.Name,
		"dotted":      m.Dotted(),
		"description": desc,
		"signature":   strings.Join(sig, ", "),
		"required":    req,
		"optional":    opt,
		"params":      append(append([]any{}, req...), opt...),
	}, nil
}

func paramDoc(p normalize.Param, ident string) string {
	parts := []string{}
	if d := strings.TrimSpace(p.Description); d != "" {
		parts = append(parts, d)
	}
	switch {
	case p.WirePrefix != "":
		parts = append(parts, "Mapping sent as ``"+p.WirePrefix+"<key>`` fields.")
	case ident != p.WireName:
		parts = append(parts, "Sent as ``"+p.WireName+"``.")
	}
	if len(parts) == 0 {
		return "Sent as ``" + p.WireName + "``."
	}
	return strings.Join(parts, " ")
}

// indexData lists every section in document order.
func indexData(doc *schema.Document) map[string]any {
	sections := make([]any, 0, doc.Len())
	for _, s := range doc.Sections() {
		sections = append(sections, map[string]any{
			"section_name": s.Name,
			"module_name":  pyIdent(s.Name),
			"class_name":   className(s.Name),
		})
	}
	return map[string]any{"sections": sections}
}
