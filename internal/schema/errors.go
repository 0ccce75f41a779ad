package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes load errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	ParseError      ErrorCode = "ParseError"
	ValidationCode  ErrorCode = "ValidationError"
	EncodeErrorCode ErrorCode = "EncodeError"
)

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = errors.New("schema validation error")

// LoadError is a structured error with the file location and, when known, the
// line of the offending node.
type LoadError struct {
	Code     ErrorCode
	Message  string
	Location string // file path
	Line     int
	Cause    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Location != "" {
		b.WriteString(" (")
		b.WriteString(e.Location)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ValidationError reports a descriptor missing a required field or carrying an
// unusable value. Section and Method are empty when not known at the point of
// detection; Index is the position in the parameter list, or -1.
type ValidationError struct {
	Section string
	Method  string
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := "schema validation error"
	if loc := e.location(); loc != "" {
		msg += " at " + loc
	}
	if e.Field != "" {
		msg += ": field " + fmt.Sprintf("%q", e.Field)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ValidationError) location() string {
	var parts []string
	switch {
	case e.Section != "" && e.Method != "":
		parts = append(parts, e.Section+"."+e.Method)
	case e.Section != "":
		parts = append(parts, e.Section)
	case e.Method != "":
		parts = append(parts, e.Method)
	}
	if e.Index >= 0 {
		parts = append(parts, fmt.Sprintf("parameters[%d]", e.Index))
	}
	return strings.Join(parts, " ")
}

// Is reports whether target matches this error type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WithMethod returns a copy of err annotated with section and method when err is
// a *ValidationError that does not carry them yet. Other errors are returned as is.
func WithMethod(err error, section, method string) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	cp := *ve
	if cp.Section == "" {
		cp.Section = section
	}
	if cp.Method == "" {
		cp.Method = method
	}
	return &cp
}
