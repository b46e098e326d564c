package mdtemplate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-microdata/mdtemplate/htmldom"
)

// Render executes the plan against data using the plan's handler
// registry (the default one unless replaced with WithHandlers).
func (p *Plan) Render(data DataValue) (string, error) {
	return p.render(data, NewScope())
}

// RenderFromElement extracts one microdata item from el and renders it
// through p, the cross-document entry point for a single already-parsed
// node.
func (p *Plan) RenderFromElement(el *htmldom.Selection) (string, error) {
	v, err := ExtractMicrodata(el)
	if err != nil {
		return "", err
	}
	return p.Render(v)
}

// RenderFromDocument extracts every top-level microdata item from doc and
// renders each through p, in document order.
func (p *Plan) RenderFromDocument(doc *htmldom.Document) ([]string, error) {
	values, err := ExtractMicrodataFromDocument(doc)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, err := p.Render(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RenderFromMicrodata parses htmlSrc, extracts its top-level microdata
// items and renders each through p, the many-document convenience form
// of RenderFromDocument.
func (p *Plan) RenderFromMicrodata(htmlSrc string) ([]string, error) {
	doc, err := htmldom.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, newError(ParseError, "render from microdata", err)
	}
	return p.RenderFromDocument(doc)
}

func (p *Plan) render(data DataValue, scope *Scope) (string, error) {
	handlers := p.handlers
	if handlers == nil {
		handlers = DefaultHandlerRegistry()
	}

	doc, err := htmldom.ParseFragment(p.TemplateHTML)
	if err != nil {
		return "", newError(ParseError, "render", err)
	}

	root, err := selectRoot(doc, p.RootSelector)
	if err != nil {
		return "", err
	}
	if root.Length() == 0 {
		return "", newError(RenderError, "render", fmt.Errorf("no root elements in working DOM"))
	}

	processed := make(map[string]bool)
	constraintsDone := make(map[string]bool)
	for _, te := range p.Elements {
		if processed[te.Selector] {
			continue
		}
		processed[te.Selector] = true
		matches, err := matchSelfOrDescendants(root, te.Selector)
		if err != nil {
			return "", err
		}
		for _, el := range matches {
			if err := renderElement(p, el, te, data, scope, handlers, processed, constraintsDone); err != nil {
				return "", err
			}
		}
	}

	if err := applyConstraints(p, root, data, scope, constraintsDone); err != nil {
		return "", err
	}

	out, err := serializeSelection(root)
	if err != nil {
		return "", newError(DomError, "serialize", err)
	}
	return out, nil
}

// matchSelfOrDescendants resolves selector against root's own elements
// and their descendants, in document order. The root nodes themselves
// are candidates too, since a binding root can carry its own itemprop.
func matchSelfOrDescendants(root *htmldom.Selection, selector string) ([]*htmldom.Selection, error) {
	var out []*htmldom.Selection
	var walkErr error
	root.Each(func(_ int, el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		if el.Is(selector) {
			out = append(out, el)
		}
		found, err := el.Find(selector)
		if err != nil {
			walkErr = newError(SelectorError, "match selector", err)
			return
		}
		found.Each(func(_ int, d *htmldom.Selection) { out = append(out, d) })
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// renderElement dispatches a single matched element to array or
// single-element rendering based on its binding entry's IsArray flag.
func renderElement(plan *Plan, el *htmldom.Selection, te TemplateElement, data DataValue, scope *Scope, handlers *HandlerRegistry, processed, constraintsDone map[string]bool) error {
	if te.IsArray {
		return renderArrayElement(plan, el, te, data, scope, handlers, processed, constraintsDone)
	}
	return renderSingleElement(plan, el, te, data, scope, handlers, processed, constraintsDone)
}

// renderSingleElement binds one matched element: scope descent, property
// binding, handler dispatch, and (for itemscope elements) recursive
// binding of nested entries against the scoped data.
func renderSingleElement(plan *Plan, el *htmldom.Selection, te TemplateElement, data DataValue, scope *Scope, handlers *HandlerRegistry, processed, constraintsDone map[string]bool) error {
	childData := data
	childScope := scope

	if te.IsScope {
		scopeName := te.Properties[0].Name
		if data != nil {
			if v, ok := data.GetValue([]PathSegment{{Name: scopeName}}); ok {
				childData = v
			} else {
				childData = nil
			}
		}
		childScope = scope.Spawn(scopeName)
		if id, ok := el.Attr("itemid"); ok && childData != nil {
			childScope.RegisterID(id, childData)
		}
	} else if id, ok := el.Attr("itemid"); ok && !el.HasAttr("data-scope") && !el.HasAttr("data-constraint") {
		// A plain itemid-bearing element (no constraint of its own)
		// registers its resolved data under that id.
		scope.RegisterID(id, data)
	}

	for _, prop := range te.Properties {
		if te.IsScope && prop.Target.Kind == TargetTextContent {
			continue
		}
		if _, err := applyProperty(plan, el, prop, data); err != nil {
			return err
		}
	}

	// Handlers receive the bound property's own resolved value, not the
	// literal the element happened to contain: a <select>'s text is its
	// options, not the value to mark selected.
	handlerValue := ""
	if len(te.Properties) > 0 {
		if path, err := ParsePath(te.Properties[0].Name); err == nil {
			handlerValue = resolveVariable(data, Variable{Path: path})
		}
	}
	if err := handlers.HandleElement(el, handlerValue); err != nil {
		return newError(RenderError, "handler dispatch", err).WithPath(buildErrorPath(el.AncestorTags()))
	}

	if te.IsScope {
		for _, other := range plan.Elements {
			if other.Selector == te.Selector || processed[other.Selector] {
				continue
			}
			matches, err := matchSelfOrDescendants(el, other.Selector)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				continue
			}
			processed[other.Selector] = true
			for _, m := range matches {
				if err := renderElement(plan, m, other, childData, childScope, handlers, processed, constraintsDone); err != nil {
					return err
				}
			}
		}
		if err := applyConstraints(plan, el, childData, childScope, constraintsDone); err != nil {
			return err
		}
	}
	return nil
}

// applyProperty resolves prop's variables against data, writes the
// result into el's target slot, and returns the resolved string. An
// empty literal with a single
// (implicit) variable binds the resolved value directly, as does a
// literal that is exactly the variable's raw token; that pair is the
// zero-copy fast path. Everything else is token substitution in place.
func applyProperty(plan *Plan, el *htmldom.Selection, prop Property, data DataValue) (string, error) {
	literal, err := readLiteral(el, prop.Target)
	if err != nil {
		return "", err
	}

	var resolved string
	if len(prop.Variables) == 1 && (literal == "" || prop.Variables[0].Raw == literal) {
		resolved = resolveVariable(data, prop.Variables[0])
		if !plan.config.ZeroCopy {
			resolved = strings.Clone(resolved)
		}
	} else {
		resolved = literal
		for _, v := range prop.Variables {
			resolved = strings.ReplaceAll(resolved, v.Raw, resolveVariable(data, v))
		}
	}

	// An unchanged slot is left alone: rewriting identical text content
	// would still flatten the element's children (a <select> losing its
	// options, an array item losing its nested spans). Void elements
	// never take text content at all.
	if resolved != literal {
		if prop.Target.Kind == TargetTextContent && el.IsVoid() {
			return resolved, nil
		}
		if err := writeLiteral(el, prop.Target, resolved); err != nil {
			return "", err
		}
	}
	return resolved, nil
}

func readLiteral(el *htmldom.Selection, target PropertyTarget) (string, error) {
	switch target.Kind {
	case TargetTextContent:
		return el.Text(), nil
	case TargetAttribute:
		v, _ := el.Attr(target.Attribute)
		return v, nil
	case TargetValue:
		v, _ := el.Attr("value")
		return v, nil
	default:
		return "", newError(RenderError, "read literal", fmt.Errorf("unknown target kind %v", target.Kind))
	}
}

func writeLiteral(el *htmldom.Selection, target PropertyTarget, value string) error {
	switch target.Kind {
	case TargetTextContent:
		el.SetText(value)
	case TargetAttribute:
		el.SetAttr(target.Attribute, value)
	case TargetValue:
		el.SetAttr("value", value)
	default:
		return newError(RenderError, "write literal", fmt.Errorf("unknown target kind %v", target.Kind))
	}
	return nil
}

// resolveVariable resolves v's path against data via GetValue (which,
// unlike GetProperty, follows "name[k]" index segments) and stringifies
// the result. A missing property, a nil data context, or a value with no
// scalar rendering all resolve to the empty string, never an error.
func resolveVariable(data DataValue, v Variable) string {
	if data == nil {
		return ""
	}
	child, ok := data.GetValue(v.Path)
	if !ok || child == nil {
		return ""
	}
	s, _ := child.String()
	return s
}

// renderArrayElement expands an array binding: one fresh per-item
// fragment per data element, binding every non-array entry plus the
// array entry's own inline variables against that item, substituting
// bare "${...}" tokens in itemprop-free text/attributes, and pruning
// that item's own data-constraint-guarded elements before splicing the
// fragment into the working document in place of the template element.
func renderArrayElement(plan *Plan, el *htmldom.Selection, te TemplateElement, data DataValue, scope *Scope, handlers *HandlerRegistry, processed, constraintsDone map[string]bool) error {
	name := te.Properties[0].Name
	if data == nil {
		el.Remove()
		return nil
	}
	value, ok := data.GetValue([]PathSegment{{Name: name}})
	if !ok || value == nil {
		el.Remove()
		return nil
	}

	items, isArr := value.AsArray()
	if !isArr {
		items = []DataValue{value}
	}
	if len(items) == 0 {
		el.Remove()
		return nil
	}

	outerHTML, err := el.OuterHTML()
	if err != nil {
		return newError(DomError, "array item outer html", err)
	}

	nonArray := te
	nonArray.IsArray = false

	for idx, item := range items {
		frag, err := htmldom.ParseFragment(outerHTML)
		if err != nil {
			return newError(ParseError, "parse array item fragment", err)
		}
		itemRoot := frag.Root().Children().Eq(0)

		// A scalar item still resolves under the array's own name, so
		// <li itemprop="tags[]"> renders the string itself.
		itemData := item
		if s, ok := item.String(); ok {
			itemData = NewJSONValue(map[string]any{name: s})
		}

		itemScope := scope.Spawn(name + "[" + strconv.Itoa(idx) + "]")
		if id, ok := itemRoot.Attr("itemid"); ok {
			itemScope.RegisterID(id, itemData)
		}

		itemProcessed := map[string]bool{te.Selector: true}
		itemDone := make(map[string]bool)
		for _, other := range plan.Elements {
			if itemProcessed[other.Selector] {
				continue
			}
			matches, err := matchSelfOrDescendants(itemRoot, other.Selector)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				continue
			}
			itemProcessed[other.Selector] = true
			for _, m := range matches {
				if err := renderElement(plan, m, other, itemData, itemScope, handlers, itemProcessed, itemDone); err != nil {
					return err
				}
			}
		}

		if err := renderSingleElement(plan, itemRoot, nonArray, itemData, itemScope, handlers, itemProcessed, itemDone); err != nil {
			return err
		}

		substituteBareVariables(itemRoot, itemData)

		if err := applyConstraints(plan, itemRoot, itemData, itemScope, itemDone); err != nil {
			return err
		}

		// Entries and constraints handled inside this item must not be
		// re-processed against the outer data once the rendered items are
		// spliced back into the working document.
		for sel := range itemProcessed {
			processed[sel] = true
		}
		for sel := range itemDone {
			constraintsDone[sel] = true
		}

		el.InsertBefore(itemRoot)
	}
	el.Remove()
	return nil
}

// substituteBareVariables walks itemRoot and every descendant lacking its
// own itemprop, rewriting "${...}" tokens in direct text and in attribute
// values against item, the array item's inline-variable pass.
func substituteBareVariables(itemRoot *htmldom.Selection, item DataValue) {
	targets := []*htmldom.Selection{itemRoot}
	if descendants, err := itemRoot.Find("*"); err == nil {
		descendants.Each(func(_ int, d *htmldom.Selection) { targets = append(targets, d) })
	}
	for _, el := range targets {
		if el.HasAttr("itemprop") {
			continue
		}
		el.SubstituteLeafText(func(text string) string {
			return substituteBareText(text, item)
		})
		for _, a := range el.AttrList() {
			if !strings.Contains(a.Val, "${") {
				continue
			}
			el.SetAttr(a.Key, substituteBareText(a.Val, item))
		}
	}
}

func substituteBareText(text string, data DataValue) string {
	tokens, err := ParseTemplateText(text)
	if err != nil || len(tokens) == 0 {
		return text
	}
	var b strings.Builder
	for _, t := range tokens {
		if t.IsVar {
			b.WriteString(resolveVariable(data, Variable{Path: t.Path}))
		} else {
			b.WriteString(t.Literal)
		}
	}
	return b.String()
}

// applyConstraints prunes every element matched by a data-scope or
// data-constraint entry whose guard evaluates false against data/scope.
// Called once over the top-level working root, once per itemscope
// element and once per array item fragment, so a constrained element
// nested inside a scope or an array item is judged against that scope's
// or item's own data.
func applyConstraints(plan *Plan, root *htmldom.Selection, data DataValue, scope *Scope, done map[string]bool) error {
	for _, c := range plan.Constraints {
		if done[c.ElementSelector] {
			continue
		}
		matches, err := matchSelfOrDescendants(root, c.ElementSelector)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			continue
		}
		done[c.ElementSelector] = true
		for _, el := range matches {
			ok, err := evaluateConstraint(c, data, scope)
			if err != nil {
				return err
			}
			if !ok {
				el.Remove()
			}
		}
	}
	return nil
}

func evaluateConstraint(c Constraint, data DataValue, scope *Scope) (bool, error) {
	switch c.Type {
	case ConstraintScope:
		return scope.Name() == c.ScopeName, nil
	case ConstraintExpression:
		return c.Expression.Evaluate(data, scope)
	default:
		return true, nil
	}
}

func serializeSelection(root *htmldom.Selection) (string, error) {
	var b strings.Builder
	var err error
	root.Each(func(_ int, el *htmldom.Selection) {
		if err != nil {
			return
		}
		h, e := el.OuterHTML()
		if e != nil {
			err = e
			return
		}
		b.WriteString(h)
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
