// Package xmlout holds the element model for Cycles XML documents and
// writes it as a sequence of sibling top-level elements.
package xmlout

import (
	"strconv"
	"strings"
)

// Attr is a single element attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Element is one XML element with ordered attributes and children.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
}

// New creates an element with the given tag and name/value attribute pairs.
// A trailing unpaired name is ignored.
func New(tag string, kv ...string) *Element {
	e := &Element{Tag: tag}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Attrs = append(e.Attrs, Attr{Name: kv[i], Value: kv[i+1]})
	}
	return e
}

// Set adds the attribute, or replaces its value if already present.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Get returns the attribute value and whether it was present.
func (e *Element) Get(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Append adds children and returns e.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Wrap returns a new element with tag and attributes that contains e.
func (e *Element) Wrap(tag string, kv ...string) *Element {
	return New(tag, kv...).Append(e)
}

// ChildrenByTag returns the direct children with the given tag.
func (e *Element) ChildrenByTag(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Number formatting
// ---------------------------------------------------------------------------

// FormatFloat formats f in fixed point with six decimals, like C's %f.
// Negative zero is printed as zero.
func FormatFloat(f float64) string {
	if f == 0 {
		f = 0
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// FormatFloats formats values as a space-separated fixed-point list.
func FormatFloats(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatFloat(v)
	}
	return strings.Join(parts, " ")
}

// FormatInts formats values as a space-separated list.
func FormatInts(values ...int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
