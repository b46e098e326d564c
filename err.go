package mdtemplate

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error by the stage of the pipeline that produced it.
type Kind int

const (
	// ParseError covers malformed or unrecognizable template HTML.
	ParseError Kind = iota
	// RenderError covers failures while applying bindings to the DOM.
	RenderError
	// SelectorError covers a synthesized or authored selector that cascadia
	// rejects. A selector that matches zero elements is not an error.
	SelectorError
	// ConstraintError covers a data-constraint expression outside the
	// supported grammar, or one that fails to evaluate against the data.
	ConstraintError
	// DomError covers failures manipulating the working document itself
	// (detached nodes, missing parents, serialization failures).
	DomError
	// JsonError covers failures decoding a JSON-backed DataValue.
	JsonError
	// IoError covers failures fetching or reading an external document.
	IoError
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse"
	case RenderError:
		return "render"
	case SelectorError:
		return "selector"
	case ConstraintError:
		return "constraint"
	case DomError:
		return "dom"
	case JsonError:
		return "json"
	case IoError:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the error type returned throughout the compiler, renderer and
// constraint evaluator. It carries the Kind of failure plus the element
// path (tag names from document root down to the offending element) and
// source location, when known.
type Error struct {
	Kind   Kind
	Op     string // the operation that failed, e.g. "compile", "bind property"
	Path   string // slash-joined element path, e.g. "html/body/ul/li"
	Source Source
	Err    error // wrapped cause, may be nil
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath returns a copy of e with Path set.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// WithSource returns a copy of e with Source set.
func (e *Error) WithSource(src Source) *Error {
	c := *e
	c.Source = src
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports equality on Kind, the same way errors.Is matches sentinel
// errors: two *Error values are considered the same error class if their
// Kind matches, regardless of Op/Path/Err.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// buildErrorPath joins element tag names, ordered from the root down (as
// returned by htmldom's Selection.AncestorTags), into an Error.Path.
func buildErrorPath(tags []string) string {
	return strings.Join(tags, "/")
}
