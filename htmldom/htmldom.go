// Package htmldom is the DOM facade the compiler and renderer operate on:
// a CSS-selector-addressed working document backed by goquery/cascadia
// over golang.org/x/net/html, offering the query/mutate/serialize surface
// the rest of the engine needs without leaking x/net/html's lower-level
// Node type into callers.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML document (or fragment) for selector-driven
// traversal and mutation.
type Document struct {
	sel *goquery.Selection
	doc *goquery.Document
}

// Parse parses a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return &Document{sel: doc.Selection, doc: doc}, nil
}

// ParseFragment parses an HTML fragment (a template body, not a full
// document) the way a <template> element's innerHTML would be parsed.
func ParseFragment(s string) (*Document, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse fragment: %w", err)
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	doc := goquery.NewDocumentFromNode(root)
	return &Document{sel: doc.Selection, doc: doc}, nil
}

// Selection is a possibly-multi-element node set, mirroring goquery's own
// type but kept as a distinct name so callers depend on this package's
// surface rather than goquery directly.
type Selection struct {
	s *goquery.Selection
}

// Root returns the document's root selection.
func (d *Document) Root() *Selection {
	return &Selection{s: d.sel}
}

// Find runs a CSS selector against the document root.
func (d *Document) Find(selector string) (*Selection, error) {
	if err := ValidateSelector(selector); err != nil {
		return nil, err
	}
	return &Selection{s: d.sel.Find(selector)}, nil
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	return d.sel.Html()
}

// ValidateSelector compiles selector with cascadia without applying it,
// surfacing a SelectorError-shaped failure at compile time rather than at
// first use.
func ValidateSelector(selector string) error {
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("htmldom: invalid selector %q: %w", selector, err)
	}
	return nil
}

// Find runs a CSS selector scoped to this selection's descendants.
func (s *Selection) Find(selector string) (*Selection, error) {
	if err := ValidateSelector(selector); err != nil {
		return nil, err
	}
	return &Selection{s: s.s.Find(selector)}, nil
}

// Length returns the number of elements in this selection.
func (s *Selection) Length() int { return s.s.Length() }

// Each calls fn once per element in this selection, in document order.
func (s *Selection) Each(fn func(i int, sel *Selection)) {
	s.s.Each(func(i int, gs *goquery.Selection) {
		fn(i, &Selection{s: gs})
	})
}

// Eq returns the i-th element of this selection.
func (s *Selection) Eq(i int) *Selection {
	return &Selection{s: s.s.Eq(i)}
}

// Parent returns the immediate parent element.
func (s *Selection) Parent() *Selection {
	return &Selection{s: s.s.Parent()}
}

// Children returns this selection's direct element children.
func (s *Selection) Children() *Selection {
	return &Selection{s: s.s.Children()}
}

// Parents returns every ancestor, nearest first.
func (s *Selection) Parents() *Selection {
	return &Selection{s: s.s.Parents()}
}

// TagName returns the element's tag name, lower-cased, or "" if this
// selection is empty or its first node isn't an element.
func (s *Selection) TagName() string {
	if s.s.Length() == 0 {
		return ""
	}
	n := s.s.Get(0)
	if n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether this element is an HTML void element. Void
// elements cannot carry child nodes; writing text content into one makes
// the document unserializable.
func (s *Selection) IsVoid() bool {
	return voidElements[s.TagName()]
}

// AncestorTags returns tag names from the document root down to (and
// including) this element, for Error.Path construction.
func (s *Selection) AncestorTags() []string {
	var tags []string
	cur := s.s
	for cur.Length() > 0 {
		n := cur.Get(0)
		if n == nil || n.Type != html.ElementNode {
			break
		}
		tags = append(tags, n.Data)
		cur = cur.Parent()
	}
	for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
		tags[i], tags[j] = tags[j], tags[i]
	}
	return tags
}

// Attr returns the named attribute's value.
func (s *Selection) Attr(name string) (string, bool) {
	return s.s.Attr(name)
}

// SetAttr sets the named attribute's value.
func (s *Selection) SetAttr(name, value string) {
	s.s.SetAttr(name, value)
}

// RemoveAttr removes the named attribute.
func (s *Selection) RemoveAttr(name string) {
	s.s.RemoveAttr(name)
}

// HasAttr reports whether the attribute is present, regardless of value
// (used for boolean attributes like "checked"/"selected"/"disabled").
func (s *Selection) HasAttr(name string) bool {
	_, ok := s.s.Attr(name)
	return ok
}

// Attr is one element attribute, in source order.
type Attr struct {
	Key string
	Val string
}

// AttrList returns every attribute on this selection's first element in
// source order. Compilation depends on this order being stable so the
// same template always produces the same Plan.
func (s *Selection) AttrList() []Attr {
	if s.s.Length() == 0 {
		return nil
	}
	n := s.s.Get(0)
	if n.Type != html.ElementNode {
		return nil
	}
	out := make([]Attr, 0, len(n.Attr))
	for _, a := range n.Attr {
		out = append(out, Attr{Key: a.Key, Val: a.Val})
	}
	return out
}

// Text returns the concatenated text content of this selection.
func (s *Selection) Text() string {
	return s.s.Text()
}

// SetText replaces this element's children with a single text node,
// HTML-escaped by goquery's underlying renderer.
func (s *Selection) SetText(text string) {
	s.s.SetText(text)
}

// HTML returns this selection's inner HTML.
func (s *Selection) HTML() (string, error) {
	return s.s.Html()
}

// SetHTML replaces this element's inner HTML, unescaped; the caller is
// responsible for ensuring text meant as plain text is escaped first.
func (s *Selection) SetHTML(innerHTML string) {
	s.s.SetHtml(innerHTML)
}

// AddClass adds a CSS class if not already present.
func (s *Selection) AddClass(class string) {
	s.s.AddClass(class)
}

// RemoveClass removes a CSS class.
func (s *Selection) RemoveClass(class string) {
	s.s.RemoveClass(class)
}

// HasClass reports whether class is present.
func (s *Selection) HasClass(class string) bool {
	return s.s.HasClass(class)
}

// Remove detaches this selection from the document.
func (s *Selection) Remove() {
	s.s.Remove()
}

// InsertBefore inserts other immediately before this selection's elements
// in the document, preserving other's internal order.
func (s *Selection) InsertBefore(other *Selection) {
	s.s.BeforeSelection(other.s)
}

// SubstituteLeafText rewrites this element's direct text-node children in
// place via fn, without descending into child elements. The array-item
// renderer's bare "${...}" substitution needs exactly this, since a
// child element carrying its own itemprop must not have its text touched
// by an ancestor's substitution pass.
func (s *Selection) SubstituteLeafText(fn func(string) string) {
	for _, n := range s.s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				c.Data = fn(c.Data)
			}
		}
	}
}

// Clone returns a deep copy of this selection, detached from the document
// it was taken from until explicitly reattached (AppendTo/ReplaceWith).
func (s *Selection) Clone() *Selection {
	return &Selection{s: s.s.Clone()}
}

// AppendTo appends this selection as the last child of dst.
func (s *Selection) AppendTo(dst *Selection) *Selection {
	dst.s.AppendSelection(s.s)
	return s
}

// ReplaceWith replaces s in the document with repl.
func (s *Selection) ReplaceWith(repl *Selection) {
	s.s.ReplaceWithSelection(repl.s)
}

// OuterHTML serializes this selection's elements, including their own
// tags, the way the renderer needs to splice a rendered array item back
// into the working document.
func (s *Selection) OuterHTML() (string, error) {
	var buf bytes.Buffer
	for _, n := range s.s.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("htmldom: render: %w", err)
		}
	}
	return buf.String(), nil
}

// Is reports whether this selection matches selector.
func (s *Selection) Is(selector string) bool {
	return s.s.Is(selector)
}

// Same reports whether s and other refer to the same underlying element
// node (pointer identity), the way a recursive ancestor walk needs to
// recognize "we've reached the element we started from".
func (s *Selection) Same(other *Selection) bool {
	if s.s.Length() == 0 || other.s.Length() == 0 {
		return false
	}
	return s.s.Get(0) == other.s.Get(0)
}
