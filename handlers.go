package mdtemplate

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/go-microdata/mdtemplate/htmldom"
)

// ElementHandler binds a single property value onto an element in a
// tag-specific way: an <input> gets a value attribute, a <select> gets
// an option marked selected, a <textarea> gets escaped text content. The
// renderer falls back to plain text-content/attribute binding for any
// element no registered handler claims.
type ElementHandler interface {
	// CanHandle reports whether this handler applies to el.
	CanHandle(el *htmldom.Selection) bool

	// Handle applies value to el. value is the already-resolved scalar
	// text for the bound property.
	Handle(el *htmldom.Selection, value string) error

	// Priority orders handlers registered for the same tag; higher runs
	// first. Ties keep registration order.
	Priority() int

	// AllowsChaining reports whether dispatch continues to the next
	// applicable handler after this one runs.
	AllowsChaining() bool
}

// baseHandler supplies the common Priority/AllowsChaining defaults so
// built-in handlers only override what differs.
type baseHandler struct {
	priority int
	chain    bool
}

func (b baseHandler) Priority() int        { return b.priority }
func (b baseHandler) AllowsChaining() bool { return b.chain }

// InputHandler writes the bound property's value into the "value"
// attribute of an <input> element.
type InputHandler struct{ baseHandler }

func NewInputHandler() *InputHandler {
	return &InputHandler{baseHandler{priority: 0, chain: true}}
}

func (h *InputHandler) CanHandle(el *htmldom.Selection) bool {
	return el.TagName() == "input"
}

func (h *InputHandler) Handle(el *htmldom.Selection, value string) error {
	el.SetAttr("value", value)
	return nil
}

// SelectHandler marks the <option> whose value matches the bound property
// as selected, clearing "selected" from every other option.
type SelectHandler struct{ baseHandler }

func NewSelectHandler() *SelectHandler {
	return &SelectHandler{baseHandler{priority: 0, chain: true}}
}

func (h *SelectHandler) CanHandle(el *htmldom.Selection) bool {
	return el.TagName() == "select"
}

func (h *SelectHandler) Handle(el *htmldom.Selection, value string) error {
	opts, err := el.Find("option")
	if err != nil {
		return newError(DomError, "select options", err)
	}
	opts.Each(func(_ int, opt *htmldom.Selection) {
		if v, _ := opt.Attr("value"); v == value {
			opt.SetAttr("selected", "selected")
		} else {
			opt.RemoveAttr("selected")
		}
	})
	return nil
}

// TextareaHandler writes the bound property's value as text content,
// escaped on serialization so markup inside the value never becomes live
// elements.
type TextareaHandler struct{ baseHandler }

func NewTextareaHandler() *TextareaHandler {
	return &TextareaHandler{baseHandler{priority: 0, chain: true}}
}

func (h *TextareaHandler) CanHandle(el *htmldom.Selection) bool {
	return el.TagName() == "textarea"
}

func (h *TextareaHandler) Handle(el *htmldom.Selection, value string) error {
	el.SetText(value)
	return nil
}

// MetaHandler writes the bound property's value into a <meta> element's
// "content" attribute.
type MetaHandler struct{ baseHandler }

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{baseHandler{priority: 0, chain: true}}
}

func (h *MetaHandler) CanHandle(el *htmldom.Selection) bool {
	return el.TagName() == "meta"
}

func (h *MetaHandler) Handle(el *htmldom.Selection, value string) error {
	el.SetAttr("content", value)
	return nil
}

// ClassHandler adds "empty" or "has-content" to any itemprop-bearing
// element, a worked example of a handler keyed off a DOM property rather
// than tag name.
type ClassHandler struct{ baseHandler }

func NewClassHandler() *ClassHandler {
	return &ClassHandler{baseHandler{priority: 10, chain: true}}
}

// WithPriority returns a copy registered at a different priority.
func (h *ClassHandler) WithPriority(p int) *ClassHandler {
	c := *h
	c.priority = p
	return &c
}

// NoChaining returns a copy that stops dispatch after it runs.
func (h *ClassHandler) NoChaining() *ClassHandler {
	c := *h
	c.chain = false
	return &c
}

func (h *ClassHandler) CanHandle(el *htmldom.Selection) bool {
	return el.HasAttr("itemprop")
}

func (h *ClassHandler) Handle(el *htmldom.Selection, value string) error {
	if value == "" {
		el.AddClass("empty")
	} else {
		el.AddClass("has-content")
	}
	return nil
}

// LoggingHandler emits a structured log line per element it sees,
// demonstrating log/slog wiring through the handler surface. Registered
// at the lowest priority so it observes the value other handlers bound.
type LoggingHandler struct {
	baseHandler
	tagFilter string
	logger    *slog.Logger
}

func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{baseHandler: baseHandler{priority: -100, chain: true}, logger: logger}
}

// ForTag restricts this handler to elements with the given tag name.
func (h *LoggingHandler) ForTag(tag string) *LoggingHandler {
	c := *h
	c.tagFilter = strings.ToLower(tag)
	return &c
}

func (h *LoggingHandler) CanHandle(el *htmldom.Selection) bool {
	if h.tagFilter == "" {
		return true
	}
	return el.TagName() == h.tagFilter
}

func (h *LoggingHandler) Handle(el *htmldom.Selection, value string) error {
	itemprop, _ := el.Attr("itemprop")
	h.logger.Debug("binding element",
		slog.String("tag", el.TagName()),
		slog.String("itemprop", itemprop),
		slog.String("value", value))
	return nil
}

// HandlerRegistry dispatches a bound property's value to every applicable
// ElementHandler for an element's tag, in priority order (highest first,
// ties by registration order), stopping at the first handler that
// disallows chaining.
type HandlerRegistry struct {
	handlers map[string][]registeredHandler
}

type registeredHandler struct {
	priority int
	seq      int
	handler  ElementHandler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]registeredHandler)}
}

// DefaultHandlerRegistry returns a registry with the four built-in
// tag handlers: input, select, textarea and meta.
func DefaultHandlerRegistry() *HandlerRegistry {
	reg := NewHandlerRegistry()
	reg.Register("input", NewInputHandler())
	reg.Register("select", NewSelectHandler())
	reg.Register("textarea", NewTextareaHandler())
	reg.Register("meta", NewMetaHandler())
	return reg
}

// Register adds handler for tagName using the handler's own Priority().
func (r *HandlerRegistry) Register(tagName string, handler ElementHandler) {
	r.RegisterWithPriority(tagName, handler, handler.Priority())
}

// RegisterWithPriority adds handler for tagName at an explicit priority,
// overriding the handler's own Priority() for ordering purposes only.
func (r *HandlerRegistry) RegisterWithPriority(tagName string, handler ElementHandler, priority int) {
	tagName = strings.ToLower(tagName)
	list := r.handlers[tagName]
	seq := len(list)
	list = append(list, registeredHandler{priority: priority, seq: seq, handler: handler})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.handlers[tagName] = list
}

// HandlersFor returns the handlers registered for el's tag, in dispatch
// order.
func (r *HandlerRegistry) HandlersFor(el *htmldom.Selection) []ElementHandler {
	list := r.handlers[el.TagName()]
	out := make([]ElementHandler, len(list))
	for i, rh := range list {
		out[i] = rh.handler
	}
	return out
}

// HandleElement runs every applicable handler for el's tag, in priority
// order, passing value. Dispatch stops after a handler whose
// AllowsChaining() is false.
func (r *HandlerRegistry) HandleElement(el *htmldom.Selection, value string) error {
	for _, h := range r.HandlersFor(el) {
		if !h.CanHandle(el) {
			continue
		}
		if err := h.Handle(el, value); err != nil {
			return err
		}
		if !h.AllowsChaining() {
			break
		}
	}
	return nil
}
