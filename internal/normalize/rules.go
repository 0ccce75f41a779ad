package normalize

import "strings"

// Rule renames one family of raw parameter names.
type Rule struct {
	Name        string
	Match       func(raw string) bool
	Replacement string
	// Collapse marks rules that fold many raw names into a single parameter.
	// Collisions produced by a collapse rule are merged instead of rejected.
	Collapse bool
	// WirePrefix is prepended to each key of a collapsed parameter's value when
	// it is sent to the remote API.
	WirePrefix string
}

const (
	metaPrefix          = "meta_"
	customFieldWildcard = "[any included custom field variable]"
)

// Rules is the ordered rename table. The first matching rule wins.
var Rules = []Rule{
	{
		Name: "meta-wildcard",
		Match: func(raw string) bool {
			return strings.HasPrefix(raw, metaPrefix) || raw == customFieldWildcard
		},
		Replacement: "meta",
		Collapse:    true,
		WirePrefix:  metaPrefix,
	},
	{
		Name:        "reserved-pass",
		Match:       func(raw string) bool { return raw == "pass" },
		Replacement: "passwd",
	},
	{
		Name:        "reserved-from",
		Match:       func(raw string) bool { return raw == "from" },
		Replacement: "from_address",
	},
}

// Apply returns the normalized name for raw and the rule that produced it, or
// raw and nil when no rule matches. Applying it to its own output is a no-op.
func Apply(raw string) (string, *Rule) {
	for i := range Rules {
		if Rules[i].Match(raw) {
			return Rules[i].Replacement, &Rules[i]
		}
	}
	return raw, nil
}

// Unsupported reports names the generator cannot represent: templated,
// array-style and placeholder parameters such as "ip{n}", "items[]" or "<id>".
func Unsupported(name string) bool {
	return strings.ContainsAny(name, "{[<")
}
