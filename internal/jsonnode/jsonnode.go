// Package jsonnode decodes JSON into yaml.v3 nodes. Object keys keep their
// order and every node carries its line, while escapes are handled by
// encoding/json, so payloads such as PHP's "\/" decode cleanly.
package jsonnode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var bom = []byte("\xef\xbb\xbf")

// SyntaxError is a malformed JSON input with the line it was detected on.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *SyntaxError) Unwrap() error { return e.Err }

// LooksLikeJSON reports whether data starts with an object or an array.
func LooksLikeJSON(data []byte) bool {
	t := bytes.TrimLeft(bytes.TrimPrefix(data, bom), " \t\r\n")
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

// Parse decodes a single JSON value. Objects become mapping nodes, arrays
// sequence nodes, and scalars carry the yaml tag matching their JSON type.
func Parse(data []byte) (*yaml.Node, error) {
	data = bytes.TrimPrefix(data, bom)
	p := &parser{data: data, dec: json.NewDecoder(bytes.NewReader(data))}
	p.dec.UseNumber()
	for i, c := range data {
		if c == '\n' {
			p.newlines = append(p.newlines, i)
		}
	}

	n, err := p.value()
	if err != nil {
		return nil, err
	}
	if _, err := p.dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("invalid data after top-level value")
		}
		return nil, p.fail(err)
	}
	return n, nil
}

type parser struct {
	data     []byte
	dec      *json.Decoder
	newlines []int
}

func (p *parser) value() (*yaml.Node, error) {
	tok, line, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.node(tok, line)
}

func (p *parser) node(tok json.Token, line int) (*yaml.Node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: line}
			for p.dec.More() {
				ktok, kline, err := p.next()
				if err != nil {
					return nil, err
				}
				key, ok := ktok.(string)
				if !ok {
					return nil, p.fail(fmt.Errorf("object key %v is not a string", ktok))
				}
				val, err := p.value()
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, str(key, kline), val)
			}
			if _, _, err := p.next(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Line: line}
			for p.dec.More() {
				item, err := p.value()
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, item)
			}
			if _, _, err := p.next(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, p.fail(fmt.Errorf("unexpected %q", rune(v)))
	case string:
		return str(v, line), nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(string(v), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(v), Line: line}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v), Line: line}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null", Line: line}, nil
	}
	return nil, p.fail(fmt.Errorf("unexpected token %v", tok))
}

func str(s string, line int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: s, Line: line}
}

// next reads one token and the line it starts on.
func (p *parser) next() (json.Token, int, error) {
	start := p.skip(int(p.dec.InputOffset()))
	tok, err := p.dec.Token()
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, 0, p.fail(err)
	}
	return tok, p.line(start), nil
}

// skip moves past whitespace and separators the decoder has not consumed yet.
func (p *parser) skip(off int) int {
	for off < len(p.data) {
		switch p.data[off] {
		case ' ', '\t', '\r', '\n', ',', ':':
			off++
		default:
			return off
		}
	}
	return off
}

func (p *parser) line(off int) int {
	return 1 + sort.SearchInts(p.newlines, off)
}

// fail reports err at the decoder's offset, which stays at the start of the
// token that could not be read.
func (p *parser) fail(err error) error {
	off := p.skip(int(p.dec.InputOffset()))
	if off > len(p.data) {
		off = len(p.data)
	}
	return &SyntaxError{Line: p.line(off), Err: err}
}
