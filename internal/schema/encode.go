package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bnassif/ubersmith-api/internal/fileutil"
)

const indent = "    "

// MarshalJSON writes sections and methods in document order. Keys inside a
// method or parameter object are sorted, so equal documents encode to equal bytes.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range d.Sections() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, s.Name); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for j, m := range s.Methods() {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, m.Name); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeJSON(&buf, m.fields()); err != nil {
				return nil, fmt.Errorf("encode %s: %w", m.Dotted(), err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode returns the persisted, indented form of the document.
func Encode(d *Document) ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", indent); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Save encodes d and writes it to path atomically.
func Save(path string, d *Document) error {
	data, err := Encode(d)
	if err != nil {
		return &LoadError{Code: EncodeErrorCode, Message: fmt.Sprintf("encode schema: %v", err), Location: path, Cause: err}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return &LoadError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	return fileutil.WriteFileAtomic(abs, data, fileutil.FileMode)
}

func (m *Method) fields() map[string]any {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["description"] = m.Description
	params := make([]map[string]any, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		params = append(params, p.fields())
	}
	out["parameters"] = params
	return out
}

func (p ParamDescriptor) fields() map[string]any {
	out := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["param"] = p.Name
	if p.Required != nil {
		out["required"] = *p.Required
	}
	out["description"] = p.Description
	return out
}

// writeJSON encodes v without HTML escaping; parameter names such as
// "<field>" stay readable in the persisted file.
func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
