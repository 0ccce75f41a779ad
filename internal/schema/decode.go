package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bnassif/ubersmith-api/internal/jsonnode"
)

// outputField is the remote result-shape field. It is not needed to generate a
// callable signature and is dropped wherever a method descriptor is decoded.
const outputField = "output"

// Load reads a persisted schema document. JSON and YAML are both accepted;
// section and method order is preserved. Only the document's shape is checked
// here: whether each parameter carries a name and a required flag is left to
// normalization, so one bad method fails only its own section.
func Load(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &LoadError{Code: InputError, Message: "schema: path is empty"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return Decode(raw, abs)
}

// Decode parses a schema document from memory. location is only used in
// diagnostics.
func Decode(data []byte, location string) (*Document, error) {
	top, err := parseNode(data)
	if err != nil {
		le := &LoadError{Code: ParseError, Message: fmt.Sprintf("parse schema: %v", err), Location: location, Cause: err}
		var se *jsonnode.SyntaxError
		if errors.As(err, &se) {
			le.Line = se.Line
		}
		return nil, le
	}
	if top.Kind == yaml.DocumentNode {
		if len(top.Content) == 0 {
			return nil, &LoadError{Code: ParseError, Message: "parse schema: document is empty", Location: location}
		}
		top = top.Content[0]
	}
	if top.Kind != yaml.MappingNode {
		return nil, &LoadError{Code: ParseError, Message: "parse schema: root must map section names to methods", Location: location, Line: top.Line}
	}

	doc := New()
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]
		section := key.Value
		if section == "" {
			return nil, validationLoadError(location, key.Line, &ValidationError{Index: -1, Message: "empty section name"})
		}
		if isNull(val) {
			doc.EnsureSection(section)
			continue
		}
		if val.Kind != yaml.MappingNode {
			return nil, validationLoadError(location, val.Line, &ValidationError{Section: section, Index: -1, Message: "section must map method names to descriptors"})
		}
		doc.EnsureSection(section)
		for j := 0; j+1 < len(val.Content); j += 2 {
			mkey, mval := val.Content[j], val.Content[j+1]
			if mkey.Value == "" {
				return nil, validationLoadError(location, mkey.Line, &ValidationError{Section: section, Index: -1, Message: "empty method name"})
			}
			m, err := decodeMethodNode(mval)
			if err != nil {
				line := mval.Line
				var ne *nodeError
				if errors.As(err, &ne) {
					line = ne.line
					err = ne.err
				}
				return nil, validationLoadError(location, line, WithMethod(err, section, mkey.Value))
			}
			doc.Set(section, mkey.Value, m)
		}
	}
	return doc, nil
}

// parseNode decodes JSON through encoding/json and anything else as YAML.
// Flow-style YAML also opens with a brace, so it gets a second chance.
func parseNode(data []byte) (*yaml.Node, error) {
	if jsonnode.LooksLikeJSON(data) {
		n, err := jsonnode.Parse(data)
		if err == nil {
			return n, nil
		}
		var root yaml.Node
		if yaml.Unmarshal(data, &root) == nil {
			return &root, nil
		}
		return nil, err
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// DecodeMethod validates one remote method-detail payload (JSON) and converts
// it to a Method. The output shape is discarded. Unlike Load, every parameter
// must carry a name and a required flag.
func DecodeMethod(data []byte) (*Method, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Index: -1, Message: "method detail is empty"}
	}
	n, err := jsonnode.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode method detail: %w", err)
	}
	m, err := decodeMethodNode(n)
	if err != nil {
		var ne *nodeError
		if errors.As(err, &ne) {
			return nil, ne.err
		}
		return nil, err
	}
	for i, p := range m.Parameters {
		if err := ValidateParam(p, i); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func validationLoadError(location string, line int, err error) error {
	return &LoadError{Code: ValidationCode, Message: err.Error(), Location: location, Line: line, Cause: err}
}

// nodeError carries the line of the node that failed validation.
type nodeError struct {
	line int
	err  error
}

func (e *nodeError) Error() string { return e.err.Error() }
func (e *nodeError) Unwrap() error { return e.err }

func failAt(n *yaml.Node, err error) error {
	return &nodeError{line: n.Line, err: err}
}

func decodeMethodNode(n *yaml.Node) (*Method, error) {
	if n.Kind != yaml.MappingNode {
		return nil, failAt(n, &ValidationError{Index: -1, Message: "method descriptor must be a mapping"})
	}
	m := &Method{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case outputField:
			continue
		case "description":
			s, err := scalarString(val)
			if err != nil {
				return nil, failAt(val, &ValidationError{Index: -1, Field: "description", Message: err.Error()})
			}
			m.Description = s
		case "parameters":
			params, err := decodeParams(val)
			if err != nil {
				return nil, err
			}
			m.Parameters = params
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return nil, failAt(val, &ValidationError{Index: -1, Field: key.Value, Message: err.Error()})
			}
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[key.Value] = v
		}
	}
	return m, nil
}

func decodeParams(n *yaml.Node) ([]ParamDescriptor, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, failAt(n, &ValidationError{Index: -1, Field: "parameters", Message: "must be a list"})
	}
	params := make([]ParamDescriptor, 0, len(n.Content))
	for idx, item := range n.Content {
		p, err := decodeParam(item, idx)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func decodeParam(n *yaml.Node, idx int) (ParamDescriptor, error) {
	var p ParamDescriptor
	if n.Kind != yaml.MappingNode {
		return p, failAt(n, &ValidationError{Index: idx, Message: "parameter must be a mapping"})
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "param", "name":
			s, err := scalarString(val)
			if err != nil {
				return p, failAt(val, &ValidationError{Index: idx, Field: "param", Message: err.Error()})
			}
			p.Name = s
		case "required":
			if isNull(val) {
				continue
			}
			b, err := scalarBool(val)
			if err != nil {
				return p, failAt(val, &ValidationError{Index: idx, Field: "required", Message: err.Error()})
			}
			p.Required = &b
		case "description":
			s, err := scalarString(val)
			if err != nil {
				return p, failAt(val, &ValidationError{Index: idx, Field: "description", Message: err.Error()})
			}
			p.Description = s
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return p, failAt(val, &ValidationError{Index: idx, Field: key.Value, Message: err.Error()})
			}
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[key.Value] = v
		}
	}
	return p, nil
}

// ValidateParam checks the fields every parameter must carry.
func ValidateParam(p ParamDescriptor, idx int) error {
	if p.Name == "" {
		return &ValidationError{Index: idx, Field: "param", Message: "missing parameter name"}
	}
	if p.Required == nil {
		return &ValidationError{Index: idx, Field: "required", Message: fmt.Sprintf("missing required flag for %q", p.Name)}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func scalarString(n *yaml.Node) (string, error) {
	if isNull(n) {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a string")
	}
	return n.Value, nil
}

func scalarBool(n *yaml.Node) (bool, error) {
	if n.Kind != yaml.ScalarNode {
		return false, fmt.Errorf("expected a boolean")
	}
	switch n.Tag {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return false, err
		}
		return b, nil
	case "!!int":
		switch n.Value {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	case "!!str":
		switch strings.ToLower(strings.TrimSpace(n.Value)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("invalid boolean value %q", n.Value)
}
