package mdtemplate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/camelcase"
)

// DataValue is the read-only, polymorphic tree interface the renderer,
// constraint evaluator and microdata extractor are written against. It is
// intentionally narrow: property/value descent, array access, and the two
// scalar facts (@type, @id) a microdata item can carry. Concrete backends
// (JSON, reflected Go structs, extracted microdata) each implement it.
type DataValue interface {
	// GetProperty resolves a single dotted path against this value's
	// object-shaped properties (itemprop lookups). It does not follow
	// array indices embedded in the path; callers that need "items[0]"
	// semantics call GetValue instead.
	GetProperty(path []PathSegment) (DataValue, bool)

	// GetValue resolves path the way scope descent and array indexing do:
	// each segment is a property lookup, and a segment carrying an index
	// additionally selects the k-th element of the resulting array.
	GetValue(path []PathSegment) (DataValue, bool)

	// IsArray reports whether this value represents an ordered sequence.
	IsArray() bool

	// AsArray returns this value's elements. Returns false if !IsArray().
	AsArray() ([]DataValue, bool)

	// Type returns the microdata @type of this value, if it has one.
	Type() (string, bool)

	// ID returns the microdata @id of this value, if it has one.
	ID() (string, bool)

	// String renders this value as scalar text, the way a bound itemprop
	// or a bare ${...} substitution needs it. Returns false for values
	// that have no sensible scalar rendering (e.g. a bare object/array).
	String() (string, bool)
}

// jsonValue adapts encoding/json-decoded data (map[string]any,
// []any, and scalars) to DataValue.
type jsonValue struct {
	v any
}

// NewJSONValue wraps arbitrary JSON-decoded data (the result of
// json.Unmarshal into `any`) as a DataValue.
func NewJSONValue(v any) DataValue {
	return jsonValue{v: v}
}

// ParseJSONValue decodes raw JSON bytes into a DataValue.
func ParseJSONValue(raw []byte) (DataValue, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, newError(JsonError, "decode", err)
	}
	return NewJSONValue(v), nil
}

func (j jsonValue) child(name string) (DataValue, bool) {
	m, ok := j.v.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := m[name]
	if !ok {
		return nil, false
	}
	return jsonValue{v: child}, true
}

func (j jsonValue) GetProperty(path []PathSegment) (DataValue, bool) {
	cur := DataValue(j)
	for _, seg := range path {
		next, ok := cur.(jsonValue).child(seg.Name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (j jsonValue) GetValue(path []PathSegment) (DataValue, bool) {
	cur := DataValue(j)
	for _, seg := range path {
		next, ok := cur.(jsonValue).child(seg.Name)
		if !ok {
			return nil, false
		}
		cur = next
		if seg.HasIndex {
			arr, ok := cur.AsArray()
			if !ok || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
		}
	}
	return cur, true
}

func (j jsonValue) IsArray() bool {
	_, ok := j.v.([]any)
	return ok
}

func (j jsonValue) AsArray() ([]DataValue, bool) {
	arr, ok := j.v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]DataValue, len(arr))
	for i, el := range arr {
		out[i] = jsonValue{v: el}
	}
	return out, true
}

func (j jsonValue) Type() (string, bool) {
	return j.scalarChildString("@type", "type")
}

func (j jsonValue) ID() (string, bool) {
	return j.scalarChildString("@id", "id")
}

func (j jsonValue) scalarChildString(keys ...string) (string, bool) {
	m, ok := j.v.(map[string]any)
	if !ok {
		return "", false
	}
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			if s, ok := (jsonValue{v: raw}).String(); ok {
				return s, true
			}
		}
	}
	return "", false
}

func (j jsonValue) String() (string, bool) {
	switch v := j.v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// reflectValue adapts an arbitrary Go value via reflection, converting
// exported struct field names to microdata-style snake_case property
// names using camelcase to split the identifier into words. An
// "mdtemplate" struct tag overrides the derived name.
type reflectValue struct {
	rv reflect.Value
}

// NewReflectValue wraps a Go value (typically a struct, slice, or map) as
// a DataValue via reflection.
func NewReflectValue(v any) DataValue {
	return reflectValue{rv: reflect.ValueOf(v)}
}

func (r reflectValue) deref() reflect.Value {
	v := r.rv
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func (r reflectValue) child(name string) (DataValue, bool) {
	v := r.deref()
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if fieldName(f) == name {
				return reflectValue{rv: v.Field(i)}, true
			}
		}
		return nil, false
	case reflect.Map:
		mv := v.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, false
		}
		return reflectValue{rv: mv}, true
	default:
		return nil, false
	}
}

// fieldName prefers an "mdtemplate" struct tag, falling back to
// lower-snake-casing the Go field name via camelcase.Split.
func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("mdtemplate"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	words := camelcase.Split(f.Name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

func (r reflectValue) GetProperty(path []PathSegment) (DataValue, bool) {
	cur := DataValue(r)
	for _, seg := range path {
		next, ok := cur.(reflectValue).child(seg.Name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (r reflectValue) GetValue(path []PathSegment) (DataValue, bool) {
	cur := DataValue(r)
	for _, seg := range path {
		next, ok := cur.(reflectValue).child(seg.Name)
		if !ok {
			return nil, false
		}
		cur = next
		if seg.HasIndex {
			arr, ok := cur.AsArray()
			if !ok || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
		}
	}
	return cur, true
}

func (r reflectValue) IsArray() bool {
	v := r.deref()
	return v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array)
}

func (r reflectValue) AsArray() ([]DataValue, bool) {
	v := r.deref()
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]DataValue, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = reflectValue{rv: v.Index(i)}
	}
	return out, true
}

func (r reflectValue) Type() (string, bool) {
	if c, ok := r.child("type"); ok {
		return c.String()
	}
	return "", false
}

func (r reflectValue) ID() (string, bool) {
	if c, ok := r.child("id"); ok {
		return c.String()
	}
	return "", false
}

func (r reflectValue) String() (string, bool) {
	v := r.deref()
	if !v.IsValid() {
		return "", false
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return "", false
	default:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String(), true
		}
		return "", false
	}
}
