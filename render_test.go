package mdtemplate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-microdata/mdtemplate/fetch"
)

func mustPlan(t *testing.T, src, rootSelector string) *Plan {
	t.Helper()
	plan, err := CompileWithConfig(src, rootSelector, NoCaching())
	require.NoError(t, err)
	return plan
}

func jsonData(t *testing.T, raw string) DataValue {
	t.Helper()
	v, err := ParseJSONValue([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestRender_BasicBinding(t *testing.T) {
	plan := mustPlan(t, `<template><div><h1 itemprop="title"></h1><p itemprop="description"></p></div></template>`, "div")
	out, err := plan.Render(jsonData(t, `{"title":"Hello World","description":"This is a test"}`))
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 itemprop="title">Hello World</h1>`)
	assert.Contains(t, out, `<p itemprop="description">This is a test</p>`)
}

func TestRender_ArrayExpansion(t *testing.T) {
	plan := mustPlan(t, `<template><ul><li itemprop="items[]"><span itemprop="name"></span></li></ul></template>`, "")
	out, err := plan.Render(jsonData(t, `{"items":[{"name":"Item 1"},{"name":"Item 2"},{"name":"Item 3"}]}`))
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "<li"), "output: %s", out)
	for _, want := range []string{"Item 1", "Item 2", "Item 3"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Item 1"), strings.Index(out, "Item 2"))
	assert.Less(t, strings.Index(out, "Item 2"), strings.Index(out, "Item 3"))
}

func TestRender_ScalarArray(t *testing.T) {
	plan := mustPlan(t, `<template><ul><li itemprop="tags[]"></li></ul></template>`, "")
	out, err := plan.Render(jsonData(t, `{"tags":["go","html"]}`))
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "<li"))
	assert.Contains(t, out, "go")
	assert.Contains(t, out, "html")
}

func TestRender_EmptyArrayRemovesTemplate(t *testing.T) {
	plan := mustPlan(t, `<template><ul><li itemprop="items[]"></li></ul></template>`, "")
	out, err := plan.Render(jsonData(t, `{"items":[]}`))
	require.NoError(t, err)
	assert.NotContains(t, out, "<li")
}

func TestRender_NestedScope(t *testing.T) {
	plan := mustPlan(t, `<template><div>`+
		`<div itemprop="author" itemscope><span itemprop="name"></span><span itemprop="email"></span></div>`+
		`</div></template>`, "")
	out, err := plan.Render(jsonData(t, `{"author":{"name":"John Doe","email":"john@example.com"},"name":"Wrong Name"}`))
	require.NoError(t, err)

	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "john@example.com")
	assert.NotContains(t, out, "Wrong Name")
}

func TestRender_ConstraintPruningInArray(t *testing.T) {
	plan := mustPlan(t, `<template><ul>`+
		`<li itemprop="products[]"><span itemprop="title"></span>`+
		`<div data-constraint="price &lt; 50"><span>Budget Friendly!</span></div></li>`+
		`</ul></template>`, "")
	out, err := plan.Render(jsonData(t, `{"products":[`+
		`{"title":"Laptop","price":999},`+
		`{"title":"Mouse","price":25},`+
		`{"title":"Keyboard","price":75}]}`))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "Budget Friendly!"), "output: %s", out)
	assert.Equal(t, 3, strings.Count(out, "<li"))
}

func TestRender_AttributeInterpolation(t *testing.T) {
	plan := mustPlan(t, `<template><p><a href="mailto:${email}" itemprop="email"></a></p></template>`, "")
	out, err := plan.Render(jsonData(t, `{"email":"alice@example.com"}`))
	require.NoError(t, err)
	assert.Contains(t, out, `href="mailto:alice@example.com"`)
}

func TestRender_TextareaEscaping(t *testing.T) {
	plan := mustPlan(t, `<template><form><textarea itemprop="bio"></textarea></form></template>`, "form")
	out, err := plan.Render(jsonData(t, `{"bio":"<script>alert(1)</script> & \"x\""}`))
	require.NoError(t, err)

	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp;")
	assert.Contains(t, out, "&#34;")
	assert.NotContains(t, out, "<script>")
}

func TestRender_InputValue(t *testing.T) {
	plan := mustPlan(t, `<template><form><input type="text" itemprop="age"></form></template>`, "form")
	out, err := plan.Render(jsonData(t, `{"age":30}`))
	require.NoError(t, err)
	assert.Contains(t, out, `value="30"`)
}

func TestRender_SelectKeepsOptions(t *testing.T) {
	plan := mustPlan(t, `<template><form><select itemprop="color">`+
		`<option value="red">Red</option><option value="blue">Blue</option>`+
		`</select></form></template>`, "form")
	out, err := plan.Render(jsonData(t, `{"color":"blue"}`))
	require.NoError(t, err)

	assert.Contains(t, out, "Red")
	assert.Contains(t, out, "Blue")
	assert.Contains(t, out, `<option value="blue" selected="selected">`)
	assert.NotContains(t, out, `<option value="red" selected`)
}

func TestRender_MixedTextInterpolation(t *testing.T) {
	plan := mustPlan(t, `<template><p itemprop="greeting">Hello, ${name}!</p></template>`, "")
	out, err := plan.Render(jsonData(t, `{"greeting":"ignored","name":"World"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, World!")
}

func TestRender_ArrayItemInlineVariables(t *testing.T) {
	plan := mustPlan(t, `<template><div>`+
		`<article itemprop="people[]"><span itemprop="name"></span><p>Age: ${age}</p></article>`+
		`</div></template>`, "")
	out, err := plan.Render(jsonData(t, `{"people":[{"name":"Ann","age":34},{"name":"Bob","age":27}]}`))
	require.NoError(t, err)

	assert.Contains(t, out, "Age: 34")
	assert.Contains(t, out, "Age: 27")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "Bob")
}

func TestRender_MissingPropertyRendersEmpty(t *testing.T) {
	plan := mustPlan(t, `<template><p itemprop="nope"></p></template>`, "")
	out, err := plan.Render(jsonData(t, `{}`))
	require.NoError(t, err)
	assert.Contains(t, out, `<p itemprop="nope"></p>`)
}

func TestRender_ScopeConstraint(t *testing.T) {
	plan := mustPlan(t, `<template><div>`+
		`<div itemprop="author" itemscope><span itemprop="name"></span><p data-scope="author">By the author</p></div>`+
		`<section data-scope="author">Outside</section>`+
		`</div></template>`, "")
	out, err := plan.Render(jsonData(t, `{"author":{"name":"Jane"}}`))
	require.NoError(t, err)

	assert.Contains(t, out, "By the author")
	assert.NotContains(t, out, "Outside")
}

func TestRender_IDConstraint(t *testing.T) {
	src := `<template><div>` +
		`<div itemprop="user" itemscope itemid="u1"><span itemprop="name"></span></div>` +
		`<p data-constraint="@u1">Known user</p>` +
		`</div></template>`

	plan := mustPlan(t, src, "")
	out, err := plan.Render(jsonData(t, `{"user":{"name":"Ada"}}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Known user")

	out, err = plan.Render(jsonData(t, `{}`))
	require.NoError(t, err)
	assert.NotContains(t, out, "Known user")
}

func TestRender_EscapedVariableToken(t *testing.T) {
	plan := mustPlan(t, `<template><div>`+
		`<article itemprop="rows[]"><p>Literal: $${kept}</p></article>`+
		`</div></template>`, "")
	out, err := plan.Render(jsonData(t, `{"rows":[{"kept":"nope"}]}`))
	require.NoError(t, err)

	assert.Contains(t, out, "Literal: ${kept}")
	assert.NotContains(t, out, "nope")
}

func TestRender_ZeroCopyOffMatchesDefault(t *testing.T) {
	src := `<template><div><h1 itemprop="title"></h1></div></template>`
	data := jsonData(t, `{"title":"Same Output"}`)

	fast, err := mustPlan(t, src, "div").Render(data)
	require.NoError(t, err)

	plan, err := CompileWithConfig(src, "div", NoCaching().WithZeroCopy(false))
	require.NoError(t, err)
	slow, err := plan.Render(data)
	require.NoError(t, err)

	assert.Equal(t, fast, slow)
}

func TestRender_WithCustomHandlers(t *testing.T) {
	plan := mustPlan(t, `<template><div><p itemprop="note"></p></div></template>`, "div")
	reg := DefaultHandlerRegistry()
	reg.Register("p", NewClassHandler())

	out, err := plan.WithHandlers(reg).Render(jsonData(t, `{"note":"hi"}`))
	require.NoError(t, err)
	assert.Contains(t, out, `class="has-content"`)
}

func TestRenderFromMicrodata(t *testing.T) {
	plan := mustPlan(t, `<template><div><h2 itemprop="name"></h2><p itemprop="email"></p></div></template>`, "div")
	src := `<html><body>` +
		`<div itemscope itemtype="https://schema.org/Person">` +
		`<span itemprop="name">Ada Lovelace</span>` +
		`<a itemprop="email" href="ada@example.com">mail</a>` +
		`</div></body></html>`

	outs, err := plan.RenderFromMicrodata(src)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Contains(t, outs[0], "Ada Lovelace")
	assert.Contains(t, outs[0], "ada@example.com")
}

func TestRenderFromURL_UsesDocumentCache(t *testing.T) {
	PurgeCaches()
	plan, err := Compile(`<template><div><h2 itemprop="name"></h2></div></template>`, "div")
	require.NoError(t, err)

	doc := `<html><body><div itemscope><span itemprop="name">Grace</span></div></body></html>`
	calls := 0
	f := fetch.Func(func(_ context.Context, url string) ([]byte, error) {
		calls++
		return []byte(doc), nil
	})

	outs, err := plan.RenderFromURL(context.Background(), "https://fake.test/people", f)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Contains(t, outs[0], "Grace")

	_, err = plan.RenderFromURL(context.Background(), "https://fake.test/people", f)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second fetch should be served from the document cache")
}
