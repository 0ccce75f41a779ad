package pyemitter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	// names bound by the generated method body
	"self": true, "_params": true, "_key": true, "_value": true,
}

// pyIdent turns name into a valid Python identifier. Characters outside
// [A-Za-z0-9_] become underscores, a leading digit gets an underscore prefix
// and keywords get an underscore suffix.
func pyIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if pythonKeywords[out] {
		out += "_"
	}
	return out
}

// className derives the section class name, e.g. "sales_order" -> "SalesOrderAPI".
func className(section string) string {
	parts := strings.FieldsFunc(section, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	titler := cases.Title(language.English)
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titler.String(p))
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "Section" + name
	}
	return name + "API"
}
