// Package normalize turns raw remote parameter descriptors into the parameter
// lists used by generated method signatures.
package normalize

import (
	"fmt"
	"sort"

	"github.com/bnassif/ubersmith-api/internal/schema"
)

// Param is a normalized parameter.
type Param struct {
	// Name is the identifier used in generated code.
	Name string
	// WireName is the raw name sent to the remote API.
	WireName string
	// Aliases lists every raw name folded into this parameter by a collapse
	// rule, in raw order. Empty otherwise.
	Aliases     []string
	Required    bool
	Description string
	// WirePrefix is set for collapsed parameters whose mapping value is sent as
	// one field per key.
	WirePrefix string
	// Rule names the rename rule applied, if any.
	Rule string
}

// Renamed reports whether generated code must translate Name back to WireName.
func (p Param) Renamed() bool { return p.WirePrefix == "" && p.Name != p.WireName }

// Normalize validates raw, applies the rename rules, drops unsupported names
// and splits the result into required and optional parameters, each sorted by
// name. raw is not modified.
func Normalize(raw []schema.ParamDescriptor) (required, optional []Param, err error) {
	for i, p := range raw {
		if err := schema.ValidateParam(p, i); err != nil {
			return nil, nil, err
		}
	}

	sorted := make([]schema.ParamDescriptor, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var params []Param
	seen := map[string]int{}
	for _, p := range sorted {
		name, rule := Apply(p.Name)
		if Unsupported(name) {
			continue
		}
		np := Param{
			Name:        name,
			WireName:    p.Name,
			Required:    p.IsRequired(),
			Description: p.Description,
		}
		if rule != nil {
			np.Rule = rule.Name
			if rule.Collapse {
				np.WirePrefix = rule.WirePrefix
				np.Aliases = []string{p.Name}
			}
		}

		i, dup := seen[name]
		if !dup {
			seen[name] = len(params)
			params = append(params, np)
			continue
		}
		prev := &params[i]
		if rule == nil || !rule.Collapse || prev.Rule != rule.Name {
			return nil, nil, &schema.ValidationError{
				Index:   indexOf(raw, p.Name),
				Field:   "param",
				Message: fmt.Sprintf("%q and %q both normalize to %q", prev.WireName, p.Name, name),
			}
		}
		prev.Required = prev.Required || np.Required
		prev.Aliases = append(prev.Aliases, p.Name)
	}

	for _, p := range params {
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	byName := func(ps []Param) {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	}
	byName(required)
	byName(optional)
	return required, optional, nil
}

func indexOf(raw []schema.ParamDescriptor, name string) int {
	for i, p := range raw {
		if p.Name == name {
			return i
		}
	}
	return -1
}
