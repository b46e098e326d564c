package mdtemplate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-microdata/mdtemplate/htmldom"
)

// ErrNoTemplate is the cause wrapped by a ParseError when the source HTML
// carries no <template> element.
var ErrNoTemplate = errors.New("no <template> element found")

// ErrNoContent is the cause wrapped by a ParseError when root_selector
// (or its fallbacks) selects nothing inside the template's content.
var ErrNoContent = errors.New("no content selected by root selector")

// Compile parses htmlSrc (the first <template> element it contains is
// used) into an immutable Plan, with the default handler registry and
// NewTemplateConfig's caching preferences. rootSelector narrows the template's
// content to its binding root; an empty string falls back to direct
// children of the content's body, then to ":root > *".
func Compile(htmlSrc, rootSelector string) (*Plan, error) {
	return CompileWithConfig(htmlSrc, rootSelector, NewTemplateConfig())
}

// CompileFile reads an HTML template from disk and compiles it.
func CompileFile(path, rootSelector string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(IoError, "read template file", err)
	}
	return Compile(string(raw), rootSelector)
}

// CompileWithConfig is Compile with an explicit TemplateConfig, the way a
// caller wanting zero-copy substitution off, or a different cache mode,
// compiles without going through the package-level default.
func CompileWithConfig(htmlSrc, rootSelector string, cfg TemplateConfig) (*Plan, error) {
	cacheKey := rootSelector + "\x00" + htmlSrc
	usePlanCache := cfg.CacheMode != CacheNone && cfg.CacheCompiledTemplates
	if usePlanCache {
		if cached, ok := planCache.Get(cacheKey); ok {
			cfg.logger().Debug("compiled plan cache hit", slog.String("root_selector", rootSelector))
			c := *cached
			c.config = cfg
			return &c, nil
		}
	}

	src, err := templateSourceFor(htmlSrc, cfg)
	if err != nil {
		return nil, err
	}

	frag, err := htmldom.ParseFragment(src.content)
	if err != nil {
		return nil, newError(ParseError, "parse template content", err)
	}

	root, err := selectRoot(frag, rootSelector)
	if err != nil {
		return nil, err
	}
	if root.Length() == 0 {
		return nil, newError(ParseError, "compile", ErrNoContent)
	}

	elements, err := collectBindings(root, cfg)
	if err != nil {
		return nil, err
	}
	constraints, err := collectConstraints(root, cfg)
	if err != nil {
		return nil, err
	}

	// Link each binding entry to constraints declared on its own element,
	// so callers inspecting a Plan can see which guards gate which entry.
	for i := range elements {
		for ci, c := range constraints {
			if c.ElementSelector == elements[i].Selector {
				elements[i].Constraints = append(elements[i].Constraints, ConstraintRef{Index: ci})
			}
		}
	}

	plan := &Plan{
		TemplateHTML: src.content,
		RootSelector: rootSelector,
		Elements:     elements,
		Constraints:  constraints,
		BaseURI:      src.baseURI,
		config:       cfg,
		handlers:     DefaultHandlerRegistry(),
	}
	if usePlanCache {
		planCache.Add(cacheKey, plan)
	}
	return plan, nil
}

// templateSourceFor locates the <template> element in htmlSrc and returns
// its content plus the document's <base href>, consulting the parsed-
// template cache when the config allows.
func templateSourceFor(htmlSrc string, cfg TemplateConfig) (templateSource, error) {
	useCache := cfg.CacheMode != CacheNone
	if useCache {
		if src, ok := templateCache.Get(htmlSrc); ok {
			return src, nil
		}
	}

	doc, err := htmldom.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return templateSource{}, newError(ParseError, "compile", err)
	}

	tmpl, err := doc.Find("template")
	if err != nil {
		return templateSource{}, newError(ParseError, "compile", err)
	}
	if tmpl.Length() == 0 {
		return templateSource{}, newError(ParseError, "compile", ErrNoTemplate)
	}
	content, err := tmpl.Eq(0).HTML()
	if err != nil {
		return templateSource{}, newError(DomError, "read template content", err)
	}

	src := templateSource{content: content, baseURI: extractBaseURI(doc)}
	if useCache {
		templateCache.Add(htmlSrc, src)
	}
	return src, nil
}

// selectRoot applies root_selector to doc, falling back to direct
// children of its content root and then to ":root > *". The compiler and
// the renderer share this fallback chain so both resolve the same roots.
func selectRoot(doc *htmldom.Document, selector string) (*htmldom.Selection, error) {
	if selector != "" {
		sel, err := doc.Find(selector)
		if err != nil {
			return nil, newError(SelectorError, "apply root selector", err)
		}
		return sel, nil
	}
	if children := doc.Root().Children(); children.Length() > 0 {
		return children, nil
	}
	sel, err := doc.Find(":root > *")
	if err != nil {
		return nil, newError(SelectorError, "apply fallback root selector", err)
	}
	return sel, nil
}

func extractBaseURI(doc *htmldom.Document) string {
	bases, err := doc.Find("base[href]")
	if err != nil || bases.Length() == 0 {
		return ""
	}
	href, _ := bases.Eq(0).Attr("href")
	return href
}

// collectBindings walks root (itself and its descendants, in document
// order) gathering one TemplateElement per [itemprop]-bearing element.
func collectBindings(root *htmldom.Selection, cfg TemplateConfig) ([]TemplateElement, error) {
	var elements []TemplateElement
	var walkErr error

	visit := func(el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		te, ok, err := buildTemplateElement(el, cfg)
		if err != nil {
			walkErr = err
			return
		}
		if ok {
			elements = append(elements, te)
		}
	}

	root.Each(func(_ int, el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		visit(el)
		descendants, err := el.Find("[itemprop]")
		if err != nil {
			walkErr = newError(DomError, "collect bindings", err)
			return
		}
		descendants.Each(func(_ int, d *htmldom.Selection) { visit(d) })
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return elements, nil
}

func buildTemplateElement(el *htmldom.Selection, cfg TemplateConfig) (TemplateElement, bool, error) {
	itempropAttr, ok := el.Attr("itemprop")
	if !ok || strings.TrimSpace(itempropAttr) == "" {
		return TemplateElement{}, false, nil
	}

	selector, err := synthesizeSelector(el, cfg)
	if err != nil {
		return TemplateElement{}, false, err
	}

	isScope := el.HasAttr("itemscope")
	itemType, _ := el.Attr("itemtype")

	var properties []Property
	isArray := false
	for _, rawName := range strings.Fields(itempropAttr) {
		name := rawName
		arr := false
		if strings.HasSuffix(name, "[]") {
			arr = true
			name = strings.TrimSuffix(name, "[]")
		}
		if arr {
			isArray = true
		}
		props, err := buildProperties(el, name, arr)
		if err != nil {
			return TemplateElement{}, false, err
		}
		properties = append(properties, props...)
	}
	if len(properties) == 0 {
		return TemplateElement{}, false, nil
	}

	return TemplateElement{
		Selector:   selector,
		Properties: properties,
		IsArray:    isArray,
		IsScope:    isScope,
		ItemType:   itemType,
	}, true, nil
}

// buildProperties produces every Property binding for one itemprop name
// on el: always TextContent, one Attribute(name) per "${...}"-carrying
// attribute, and a synthetic Value binding for bare <input> elements.
func buildProperties(el *htmldom.Selection, name string, isArray bool) ([]Property, error) {
	implicitPath, err := ParsePath(name)
	if err != nil {
		return nil, err
	}
	implicit := Variable{Path: implicitPath, Raw: "${" + name + "}"}

	textLiteral := el.Text()
	textVars, err := variablesIn(textLiteral, implicit)
	if err != nil {
		return nil, err
	}
	props := []Property{{
		Name:      name,
		IsArray:   isArray,
		Target:    PropertyTarget{Kind: TargetTextContent},
		Variables: textVars,
	}}

	hasValueAttr := false
	for _, a := range el.AttrList() {
		if !strings.Contains(a.Val, "${") {
			continue
		}
		attrVars, err := variablesIn(a.Val, implicit)
		if err != nil {
			return nil, err
		}
		props = append(props, Property{
			Name:      name,
			IsArray:   isArray,
			Target:    PropertyTarget{Kind: TargetAttribute, Attribute: a.Key},
			Variables: attrVars,
		})
		if a.Key == "value" {
			hasValueAttr = true
		}
	}

	if el.TagName() == "input" && !hasValueAttr {
		props = append(props, Property{
			Name:      name,
			IsArray:   isArray,
			Target:    PropertyTarget{Kind: TargetValue},
			Variables: []Variable{implicit},
		})
	}

	return props, nil
}

// variablesIn scans literal for "${...}" tokens, returning them as
// Variables. A literal with none synthesizes the implicit single
// variable naming the property itself.
func variablesIn(literal string, implicit Variable) ([]Variable, error) {
	tokens, err := ParseTemplateText(literal)
	if err != nil {
		return nil, err
	}
	var vars []Variable
	for _, t := range tokens {
		if !t.IsVar {
			continue
		}
		vars = append(vars, Variable{Path: t.Path, Raw: rawToken(t)})
	}
	if len(vars) == 0 {
		return []Variable{implicit}, nil
	}
	return vars, nil
}

// rawToken reconstructs the "${...}" source text a VariableToken was
// scanned from, since the lexer discards delimiters once it classifies a
// token as a variable reference.
func rawToken(t VariableToken) string {
	parts := make([]string, len(t.Path))
	for i, seg := range t.Path {
		parts[i] = seg.String()
	}
	return "${" + strings.Join(parts, ".") + "}"
}

// collectConstraints walks root (itself and its descendants) gathering
// one Constraint per data-scope and one per data-constraint attribute
// found, addressed by a synthesized selector shared between the two when
// an element carries both.
func collectConstraints(root *htmldom.Selection, cfg TemplateConfig) ([]Constraint, error) {
	var constraints []Constraint
	var walkErr error

	visit := func(el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		hasScope := el.HasAttr("data-scope")
		hasExpr := el.HasAttr("data-constraint")
		if !hasScope && !hasExpr {
			return
		}
		selector, err := synthesizeSelector(el, cfg)
		if err != nil {
			walkErr = err
			return
		}
		if hasScope {
			name, _ := el.Attr("data-scope")
			constraints = append(constraints, Constraint{
				ElementSelector: selector,
				Type:            ConstraintScope,
				ScopeName:       name,
			})
		}
		if hasExpr {
			text, _ := el.Attr("data-constraint")
			expr, err := ParseConstraintExpression(text)
			if err != nil {
				walkErr = err
				return
			}
			constraints = append(constraints, Constraint{
				ElementSelector: selector,
				Type:            ConstraintExpression,
				Expression:      expr,
			})
		}
	}

	root.Each(func(_ int, el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		visit(el)
		descendants, err := el.Find("[data-scope],[data-constraint]")
		if err != nil {
			walkErr = newError(DomError, "collect constraints", err)
			return
		}
		descendants.Each(func(_ int, d *htmldom.Selection) { visit(d) })
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return constraints, nil
}

// synthesizeSelector builds a CSS selector addressing el uniquely within
// the template HTML: tag, id, classes, and whichever of itemprop/
// data-scope/data-constraint it carries. Validation results are memoized
// in the selector cache under aggressive caching, since the same
// synthesized selectors recur across recompiles of related templates.
func synthesizeSelector(el *htmldom.Selection, cfg TemplateConfig) (string, error) {
	var b strings.Builder
	b.WriteString(el.TagName())
	if id, ok := el.Attr("id"); ok && id != "" {
		b.WriteString("#" + escapeCSSIdent(id))
	}
	if cls, ok := el.Attr("class"); ok {
		for _, c := range strings.Fields(cls) {
			b.WriteString("." + escapeCSSIdent(c))
		}
	}
	for _, attrName := range []string{"itemprop", "data-constraint", "data-scope"} {
		if v, ok := el.Attr(attrName); ok {
			fmt.Fprintf(&b, "[%s=%q]", attrName, v)
		}
	}
	selector := b.String()
	useSelectorCache := cfg.CacheMode == CacheAggressive
	if useSelectorCache {
		if _, ok := selectorCache.Get(selector); ok {
			return selector, nil
		}
	}
	if err := htmldom.ValidateSelector(selector); err != nil {
		return "", newError(SelectorError, "synthesize selector", err)
	}
	if useSelectorCache {
		selectorCache.Add(selector, struct{}{})
	}
	return selector, nil
}

// escapeCSSIdent backslash-escapes the handful of characters that would
// otherwise break an id/class token inside a CSS selector.
func escapeCSSIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '#', ':', '[', ']', '(', ')', ' ', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
