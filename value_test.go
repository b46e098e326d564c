package mdtemplate

import "testing"

func TestJSONValue_GetValue(t *testing.T) {
	v, err := ParseJSONValue([]byte(`{
		"name": "Widget",
		"reviews": [
			{"author": "alice", "rating": 5},
			{"author": "bob", "rating": 3}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseJSONValue() error = %v", err)
	}

	path, err := ParsePath("reviews[1].author")
	if err != nil {
		t.Fatalf("ParsePath() error = %v", err)
	}
	got, ok := v.GetValue(path)
	if !ok {
		t.Fatal("GetValue() ok = false")
	}
	s, ok := got.String()
	if !ok || s != "bob" {
		t.Errorf("GetValue() = %q, %v; want bob, true", s, ok)
	}
}

func TestJSONValue_IsArray_AsArray(t *testing.T) {
	v, err := ParseJSONValue([]byte(`[1,2,3]`))
	if err != nil {
		t.Fatalf("ParseJSONValue() error = %v", err)
	}
	if !v.IsArray() {
		t.Fatal("IsArray() = false, want true")
	}
	arr, ok := v.AsArray()
	if !ok || len(arr) != 3 {
		t.Fatalf("AsArray() = %v, %v; want len 3, true", arr, ok)
	}
	s, _ := arr[2].String()
	if s != "3" {
		t.Errorf("arr[2].String() = %q, want 3", s)
	}
}

func TestJSONValue_TypeID(t *testing.T) {
	v, err := ParseJSONValue([]byte(`{"@type": "Product", "@id": "urn:widget:1"}`))
	if err != nil {
		t.Fatalf("ParseJSONValue() error = %v", err)
	}
	typ, ok := v.Type()
	if !ok || typ != "Product" {
		t.Errorf("Type() = %q, %v", typ, ok)
	}
	id, ok := v.ID()
	if !ok || id != "urn:widget:1" {
		t.Errorf("ID() = %q, %v", id, ok)
	}
}

type reviewStruct struct {
	Author string `mdtemplate:"author"`
	Rating int
}

type productStruct struct {
	Name    string
	Reviews []reviewStruct
}

func TestReflectValue_GetValue(t *testing.T) {
	p := productStruct{
		Name: "Widget",
		Reviews: []reviewStruct{
			{Author: "alice", Rating: 5},
			{Author: "bob", Rating: 3},
		},
	}
	v := NewReflectValue(p)

	path, err := ParsePath("reviews[1].author")
	if err != nil {
		t.Fatalf("ParsePath() error = %v", err)
	}
	got, ok := v.GetValue(path)
	if !ok {
		t.Fatal("GetValue() ok = false")
	}
	s, ok := got.String()
	if !ok || s != "bob" {
		t.Errorf("GetValue() = %q, %v; want bob, true", s, ok)
	}

	ratingPath, _ := ParsePath("reviews[0].rating")
	rv, ok := v.GetValue(ratingPath)
	if !ok {
		t.Fatal("GetValue(rating) ok = false")
	}
	rs, _ := rv.String()
	if rs != "5" {
		t.Errorf("rating String() = %q, want 5", rs)
	}
}

func TestFieldName(t *testing.T) {
	v := NewReflectValue(productStruct{Name: "x"})
	got, ok := v.GetProperty([]PathSegment{{Name: "name"}})
	if !ok {
		t.Fatal("GetProperty(name) ok = false")
	}
	s, _ := got.String()
	if s != "x" {
		t.Errorf("name = %q, want x", s)
	}
}
