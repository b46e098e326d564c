package mdtemplate

import (
	"testing"

	"github.com/go-microdata/mdtemplate/htmldom"
)

func extractFirstItem(t *testing.T, html string) DataValue {
	t.Helper()
	doc, err := htmldom.ParseFragment(html)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	items, err := ExtractMicrodataFromDocument(doc)
	if err != nil {
		t.Fatalf("ExtractMicrodataFromDocument() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	return items[0]
}

func propString(t *testing.T, v DataValue, name string) string {
	t.Helper()
	child, ok := v.GetProperty([]PathSegment{{Name: name}})
	if !ok {
		t.Fatalf("property %q not found", name)
	}
	s, ok := child.String()
	if !ok {
		t.Fatalf("property %q has no scalar string form", name)
	}
	return s
}

func TestExtractMicrodata_Simple(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope itemtype="https://schema.org/Person">
			<span itemprop="name">John Doe</span>
			<span itemprop="email">john@example.com</span>
		</div>`)

	typ, ok := item.Type()
	if !ok || typ != "https://schema.org/Person" {
		t.Errorf("Type() = %q, %v", typ, ok)
	}
	if got := propString(t, item, "name"); got != "John Doe" {
		t.Errorf("name = %q", got)
	}
	if got := propString(t, item, "email"); got != "john@example.com" {
		t.Errorf("email = %q", got)
	}
}

func TestExtractMicrodata_Nested(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope itemtype="https://schema.org/Article">
			<h1 itemprop="headline">Article Title</h1>
			<div itemprop="author" itemscope itemtype="https://schema.org/Person">
				<span itemprop="name">Jane Smith</span>
			</div>
		</div>`)

	author, ok := item.GetProperty([]PathSegment{{Name: "author"}})
	if !ok {
		t.Fatal("author property not found")
	}
	typ, ok := author.Type()
	if !ok || typ != "https://schema.org/Person" {
		t.Errorf("author.Type() = %q, %v", typ, ok)
	}
	if got := propString(t, author, "name"); got != "Jane Smith" {
		t.Errorf("author.name = %q", got)
	}
}

func TestExtractMicrodata_ArrayProperties(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope>
			<span itemprop="tag">rust</span>
			<span itemprop="tag">html</span>
			<span itemprop="tag">template</span>
		</div>`)

	tags, ok := item.GetProperty([]PathSegment{{Name: "tag"}})
	if !ok || !tags.IsArray() {
		t.Fatalf("tag property missing or not an array: %v, %v", ok, tags)
	}
	arr, _ := tags.AsArray()
	if len(arr) != 3 {
		t.Fatalf("got %d tags, want 3", len(arr))
	}
	s0, _ := arr[0].String()
	if s0 != "rust" {
		t.Errorf("arr[0] = %q", s0)
	}
}

func TestExtractMicrodata_SpecialElements(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope>
			<meta itemprop="datePublished" content="2024-01-01">
			<a itemprop="url" href="https://example.com">Link</a>
			<img itemprop="image" src="image.jpg" alt="Image">
			<time itemprop="dateModified" datetime="2024-01-02">Jan 2</time>
		</div>`)

	if got := propString(t, item, "datePublished"); got != "2024-01-01" {
		t.Errorf("datePublished = %q", got)
	}
	if got := propString(t, item, "url"); got != "https://example.com" {
		t.Errorf("url = %q", got)
	}
	if got := propString(t, item, "image"); got != "image.jpg" {
		t.Errorf("image = %q", got)
	}
	if got := propString(t, item, "dateModified"); got != "2024-01-02" {
		t.Errorf("dateModified = %q", got)
	}
}

func TestExtractMicrodata_MultiplePropertyNames(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope>
			<span itemprop="name nickname">Johnny</span>
		</div>`)

	if got := propString(t, item, "name"); got != "Johnny" {
		t.Errorf("name = %q", got)
	}
	if got := propString(t, item, "nickname"); got != "Johnny" {
		t.Errorf("nickname = %q", got)
	}
}

func TestExtractMicrodata_ItemID(t *testing.T) {
	item := extractFirstItem(t, `
		<div itemscope itemtype="https://schema.org/Person" itemid="https://example.com/users/123">
			<span itemprop="name">John Doe</span>
		</div>`)

	id, ok := item.ID()
	if !ok || id != "https://example.com/users/123" {
		t.Errorf("ID() = %q, %v", id, ok)
	}
}
