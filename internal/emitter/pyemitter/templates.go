package pyemitter

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"text/template"
)

// Template file names. An override directory may provide any subset of them.
const (
	SectionTemplate = "section.py.tmpl"
	IndexTemplate   = "api__init__.py.tmpl"
	BaseTemplate    = "base.py.tmpl"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// TemplateSet holds the parsed templates used by Emit. It is built once and
// is safe to share between concurrent Emit calls.
type TemplateSet struct {
	section *template.Template
	index   *template.Template
	base    *template.Template
}

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() *TemplateSet {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	ts, err := parseSet(sub, nil)
	if err != nil {
		panic(fmt.Sprintf("pyemitter: built-in templates: %v", err))
	}
	return ts
}

// LoadTemplates parses templates from fsys. Files missing from fsys fall back
// to the built-in ones.
func LoadTemplates(fsys fs.FS) (*TemplateSet, error) {
	return parseSet(fsys, DefaultTemplates())
}

func parseSet(fsys fs.FS, fallback *TemplateSet) (*TemplateSet, error) {
	load := func(name string, def *template.Template) (*template.Template, error) {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) && def != nil {
			return def, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		t, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		return t, nil
	}

	var ts TemplateSet
	var defSection, defIndex, defBase *template.Template
	if fallback != nil {
		defSection, defIndex, defBase = fallback.section, fallback.index, fallback.base
	}
	var err error
	if ts.section, err = load(SectionTemplate, defSection); err != nil {
		return nil, err
	}
	if ts.index, err = load(IndexTemplate, defIndex); err != nil {
		return nil, err
	}
	if ts.base, err = load(BaseTemplate, defBase); err != nil {
		return nil, err
	}
	return &ts, nil
}

var funcs = template.FuncMap{
	"pystr":  pyString,
	"pydoc":  pyDoc,
	"indent": indent,
}

// pyString quotes s as a Python string literal.
func pyString(s string) string {
	return strconv.Quote(s)
}

// pyDoc makes s safe inside a triple-quoted docstring.
func pyDoc(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"""`, `\"\"\"`)
	if strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1] + `\"`
	}
	return s
}

// indent prefixes every line after the first with n spaces and strips
// trailing whitespace.
func indent(n int, s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(s), "\n")
	pad := strings.Repeat(" ", n)
	for i, l := range lines {
		l = strings.TrimRight(l, " \t")
		if i > 0 && l != "" {
			l = pad + l
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}
