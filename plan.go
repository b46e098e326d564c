package mdtemplate

// PropertyTarget identifies where a bound property's value is written:
// text content, a named attribute, or an input-like element's value.
type PropertyTarget struct {
	Kind      PropertyTargetKind
	Attribute string // set only when Kind == TargetAttribute
}

type PropertyTargetKind int

const (
	TargetTextContent PropertyTargetKind = iota
	TargetAttribute
	TargetValue
)

// Variable is one ${...} substitution found inside a bound property's
// source text (its attribute value or text content), or inside an
// itemprop-free element's bare text/attribute.
type Variable struct {
	Path []PathSegment
	Raw  string // the "${...}" source text, including delimiters
}

// Property is one itemprop binding discovered on a template element: a
// name, whether it is an array binding (the itemprop name carried a "[]"
// suffix, which drives per-item cloning at render time), where its
// value is written, and the variable tokens found in its source text.
type Property struct {
	Name      string
	IsArray   bool
	Target    PropertyTarget
	Variables []Variable
}

// ConstraintType distinguishes a data-scope reference (this element only
// renders for a named named sub-scope of the current data) from a
// data-constraint boolean expression.
type ConstraintType int

const (
	ConstraintScope ConstraintType = iota
	ConstraintExpression
)

// Constraint is a compiled data-scope/data-constraint entry, addressed by
// selector and evaluated against the current render scope's data.
type Constraint struct {
	ElementSelector string
	Type            ConstraintType
	ScopeName       string // set when Type == ConstraintScope
	Expression      Expr   // set when Type == ConstraintExpression
}

// ConstraintRef is a TemplateElement's reference into Plan.Constraints,
// kept as an index so cloning/sharing a Plan never duplicates the
// (potentially large) compiled expression tree.
type ConstraintRef struct {
	Index int
}

// TemplateElement is one binding entry: an element addressed by a
// synthesized CSS selector, the itemprop bindings found directly on it,
// whether it is an array anchor or an itemscope descent point, its
// itemtype (if any), and the constraints that gate it.
type TemplateElement struct {
	Selector    string
	Properties  []Property
	IsArray     bool
	IsScope     bool
	ItemType    string
	Constraints []ConstraintRef
}

// Plan is the immutable result of compiling a template: ordered binding
// entries plus the constraint table they reference, the root selector the
// template was narrowed to, the <template> element's content HTML (parsed
// into a fresh working DOM at every render), and the
// base URI extracted from a <base href> element, if any.
type Plan struct {
	TemplateHTML string
	RootSelector string
	Elements     []TemplateElement
	Constraints  []Constraint
	BaseURI      string

	config   TemplateConfig
	handlers *HandlerRegistry
}

// Config returns the TemplateConfig this Plan was compiled with.
func (p *Plan) Config() TemplateConfig {
	return p.config
}

// WithHandlers returns a copy of the Plan using the given handler
// registry instead of the default one, the way a caller overrides or
// extends dispatch for input/select/textarea/meta and custom tags.
func (p *Plan) WithHandlers(reg *HandlerRegistry) *Plan {
	c := *p
	c.handlers = reg
	return &c
}
