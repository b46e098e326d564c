package mdtemplate

import (
	"strings"

	"github.com/go-microdata/mdtemplate/htmldom"
)

// ExtractMicrodata walks el (which must carry itemscope) and its
// descendants, building the nested DataValue tree a Plan would be
// rendered against, the inverse of rendering. Repeated itemprop names
// within the same scope are grouped into an array value; a single
// occurrence stays scalar.
func ExtractMicrodata(el *htmldom.Selection) (DataValue, error) {
	if !el.HasAttr("itemscope") {
		return extractScalarValue(el), nil
	}

	item := map[string]any{}
	if t, ok := el.Attr("itemtype"); ok {
		item["@type"] = t
	}
	if id, ok := el.Attr("itemid"); ok {
		item["@id"] = id
	}

	props, err := findProperties(el)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]DataValue)
	order := make([]string, 0, len(props))
	for _, p := range props {
		if _, seen := grouped[p.name]; !seen {
			order = append(order, p.name)
		}
		grouped[p.name] = append(grouped[p.name], p.value)
	}
	for _, name := range order {
		values := grouped[name]
		if len(values) == 1 {
			item[name] = dataValueToRaw(values[0])
		} else {
			raw := make([]any, len(values))
			for i, v := range values {
				raw[i] = dataValueToRaw(v)
			}
			item[name] = raw
		}
	}

	return NewJSONValue(item), nil
}

type namedProperty struct {
	name  string
	value DataValue
}

// findProperties collects every [itemprop] descendant of item that is not
// itself inside a nested itemscope, splitting multi-valued itemprop
// attributes ("name nickname") into one entry per name.
func findProperties(item *htmldom.Selection) ([]namedProperty, error) {
	propEls, err := item.Find("[itemprop]")
	if err != nil {
		return nil, newError(DomError, "find properties", err)
	}

	var out []namedProperty
	var walkErr error
	propEls.Each(func(_ int, el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		if isNestedItem(el, item) {
			return
		}
		itemprop, _ := el.Attr("itemprop")

		var value DataValue
		if el.HasAttr("itemscope") {
			v, err := ExtractMicrodata(el)
			if err != nil {
				walkErr = err
				return
			}
			value = v
		} else {
			value = extractScalarValue(el)
		}

		for _, name := range strings.Fields(itemprop) {
			out = append(out, namedProperty{name: name, value: value})
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// isNestedItem reports whether el's nearest itemscope ancestor is not
// rootItem itself, i.e. el belongs to a scope nested inside rootItem
// rather than directly to it.
func isNestedItem(el, rootItem *htmldom.Selection) bool {
	parent := el.Parent()
	for parent.Length() > 0 {
		if parent.Same(rootItem) {
			return false
		}
		if parent.HasAttr("itemscope") {
			return true
		}
		parent = parent.Parent()
	}
	return false
}

// extractValueElementTags maps a tag name to the attribute that holds its
// microdata value when the element isn't itemscope, per the HTML
// microdata spec's per-element value rules.
var extractValueElementTags = map[string]string{
	"meta":   "content",
	"link":   "href",
	"a":      "href",
	"area":   "href",
	"img":    "src",
	"audio":  "src",
	"video":  "src",
	"source": "src",
	"track":  "src",
	"embed":  "src",
	"object": "data",
	"time":   "datetime",
	"data":   "value",
	"meter":  "value",
}

func extractScalarValue(el *htmldom.Selection) DataValue {
	if attr, ok := extractValueElementTags[el.TagName()]; ok {
		if v, ok := el.Attr(attr); ok {
			return NewJSONValue(v)
		}
	}
	return NewJSONValue(el.Text())
}

// ExtractMicrodataFromDocument finds every top-level microdata item (an
// itemscope element with no itemprop of its own, meaning it isn't nested
// inside another item) and extracts each as a DataValue.
func ExtractMicrodataFromDocument(doc *htmldom.Document) ([]DataValue, error) {
	items, err := doc.Find("[itemscope]:not([itemprop])")
	if err != nil {
		return nil, newError(DomError, "find top-level items", err)
	}

	var out []DataValue
	var walkErr error
	items.Each(func(_ int, el *htmldom.Selection) {
		if walkErr != nil {
			return
		}
		v, err := ExtractMicrodata(el)
		if err != nil {
			walkErr = err
			return
		}
		out = append(out, v)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// dataValueToRaw unwraps a jsonValue back to its underlying any, so
// extraction composes cleanly: a nested extraction's jsonValue becomes a
// nested map/slice in the parent's item rather than a boxed DataValue.
func dataValueToRaw(v DataValue) any {
	if jv, ok := v.(jsonValue); ok {
		return jv.v
	}
	if s, ok := v.String(); ok {
		return s
	}
	return nil
}
