package mdtemplate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PathSegment is one dotted component of a variable path, optionally
// carrying an array index (the "name[k]" syntax).
type PathSegment struct {
	Name     string
	HasIndex bool
	Index    int
}

func (p PathSegment) String() string {
	if p.HasIndex {
		return fmt.Sprintf("%s[%d]", p.Name, p.Index)
	}
	return p.Name
}

// ParsePath splits a dotted variable path such as "items[0].name" into its
// segments. A segment may carry a bracketed non-negative integer index,
// which denotes "resolve the parent segment, then take its k-th element"
// rather than a property lookup.
func ParsePath(s string) ([]PathSegment, error) {
	if s == "" {
		return nil, newError(ParseError, "parse path", fmt.Errorf("empty variable path"))
	}
	parts := strings.Split(s, ".")
	segs := make([]PathSegment, 0, len(parts))
	for _, part := range parts {
		seg, err := parsePathSegment(part)
		if err != nil {
			return nil, newError(ParseError, "parse path", fmt.Errorf("%q: %w", s, err))
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parsePathSegment(part string) (PathSegment, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if part == "" {
			return PathSegment{}, fmt.Errorf("empty path segment")
		}
		return PathSegment{Name: part}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return PathSegment{}, fmt.Errorf("unterminated index in %q", part)
	}
	name := part[:open]
	idxStr := part[open+1 : len(part)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return PathSegment{}, fmt.Errorf("invalid index %q", idxStr)
	}
	return PathSegment{Name: name, HasIndex: true, Index: idx}, nil
}

// VariableToken is one piece of a scanned template-text string: either a
// literal run of text, or a "${path}" substitution.
type VariableToken struct {
	Literal string
	IsVar   bool
	Path    []PathSegment
}

const (
	eof        rune = -1
	leftDelim       = "${"
	rightDelim      = "}"
	escapeDollar    = "$$"
)

// ParseTemplateText scans s for "${dotted.path}" substitutions, returning
// the literal/variable token sequence. "$$" anywhere in the text is a
// literal escape producing a single "$" and never opens a substitution.
// A non-empty string with no "${" and no "$$" comes back as a single
// literal token; an empty string yields no tokens.
func ParseTemplateText(s string) ([]VariableToken, error) {
	l := &textLexer{input: s}
	for state := lexTplText; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, newError(ParseError, "scan variable tokens", l.err)
	}
	if len(l.items) == 0 {
		return nil, nil
	}

	out := make([]VariableToken, 0, len(l.items))
	for _, it := range l.items {
		switch it.typ {
		case itemLiteral:
			out = append(out, VariableToken{Literal: it.val})
		case itemVar:
			path, err := ParsePath(it.val)
			if err != nil {
				return nil, err
			}
			out = append(out, VariableToken{IsVar: true, Path: path})
		}
	}
	return out, nil
}

// Implementation of the scanner based on the classic Go text/template
// lexer shape (https://go.dev/talks/2011/lex.slide): a chain of state
// functions emitting items from a shared buffer.

type itemType int

const (
	itemLiteral itemType = iota
	itemVar
)

type textItem struct {
	typ itemType
	val string
}

type textLexer struct {
	input string
	start int
	pos   int
	width int
	items []textItem
	err   error
}

type textStateFn func(*textLexer) textStateFn

func (l *textLexer) emit(t itemType) {
	l.items = append(l.items, textItem{t, l.input[l.start:l.pos]})
	l.start = l.pos
}

func (l *textLexer) errorf(format string, args ...any) textStateFn {
	l.err = fmt.Errorf(format, args...)
	return nil
}

func (l *textLexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	l.width = w
	return r
}

func (l *textLexer) backup() {
	l.pos -= l.width
}

func lexTplText(l *textLexer) textStateFn {
	for {
		if l.pos >= len(l.input) {
			if l.pos > l.start {
				l.emit(itemLiteral)
			}
			return nil
		}
		rest := l.input[l.pos:]
		if strings.HasPrefix(rest, escapeDollar) {
			// Flush preceding literal text plus one "$", then drop the second "$".
			l.pos++
			l.emit(itemLiteral)
			l.pos++
			l.start = l.pos
			continue
		}
		if strings.HasPrefix(rest, leftDelim) {
			if l.pos > l.start {
				l.emit(itemLiteral)
			}
			l.pos += len(leftDelim)
			l.start = l.pos
			return lexTplVar
		}
		l.next()
	}
}

func lexTplVar(l *textLexer) textStateFn {
	for {
		if strings.HasPrefix(l.input[l.pos:], rightDelim) {
			if l.pos == l.start {
				return l.errorf("empty variable reference at offset %d", l.start)
			}
			l.emit(itemVar)
			l.pos += len(rightDelim)
			l.start = l.pos
			return lexTplText
		}
		switch r := l.next(); {
		case r == eof:
			return l.errorf("unclosed variable reference %q", leftDelim+l.input[l.start:])
		case isPathRune(r):
			// absorb
		default:
			return l.errorf("invalid character %q in variable reference", r)
		}
	}
}

func isPathRune(r rune) bool {
	return r == '_' || r == '.' || r == '[' || r == ']' || r == '-' ||
		unicode.IsLetter(r) || unicode.IsDigit(r)
}
