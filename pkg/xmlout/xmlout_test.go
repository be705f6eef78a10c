package xmlout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000000"},
		{1, "1.000000"},
		{-2.5, "-2.500000"},
		{1e-7, "0.000000"},
		{123456789, "123456789.000000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in))
	}
}

func TestFormatNegativeZero(t *testing.T) {
	negZero := 0.0
	negZero = -negZero
	assert.Equal(t, "0.000000", FormatFloat(negZero))
}

func TestFormatLists(t *testing.T) {
	assert.Equal(t, "1.000000 0.500000 0.000000", FormatFloats(1, 0.5, 0))
	assert.Equal(t, "", FormatFloats())
	assert.Equal(t, "3 4 3", FormatInts(3, 4, 3))
}

func TestElementAttrs(t *testing.T) {
	e := New("film", "width", "640", "height", "480", "dangling")
	require.Len(t, e.Attrs, 2)

	e.Set("width", "800").Set("extra", "x")
	v, ok := e.Get("width")
	assert.True(t, ok)
	assert.Equal(t, "800", v)
	assert.Equal(t, []Attr{{"width", "800"}, {"height", "480"}, {"extra", "x"}}, e.Attrs)

	_, ok = e.Get("missing")
	assert.False(t, ok)
}

func TestWrapAndChildren(t *testing.T) {
	mesh := New("mesh", "P", "0 0 0")
	outer := mesh.Wrap("state", "shader", "Red").Wrap("transform", "matrix", "m")
	require.Equal(t, "transform", outer.Tag)
	require.Len(t, outer.Children, 1)
	assert.Equal(t, "state", outer.Children[0].Tag)
	assert.Same(t, mesh, outer.Children[0].Children[0])

	sh := New("shader").Append(New("color"), New("connect"), New("connect"))
	assert.Len(t, sh.ChildrenByTag("connect"), 2)
}

func TestWriteSiblingElements(t *testing.T) {
	w := &Writer{}
	var buf bytes.Buffer
	err := w.WriteElements(&buf, []*Element{
		New("film", "width", "2", "height", "1"),
		New("light", "P", "1 2 3"),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`<film width="2" height="1"></film>`+"\n"+`<light P="1 2 3"></light>`+"\n",
		buf.String())
}

func TestWriteIndentedNesting(t *testing.T) {
	sh := New("shader", "name", "Red").Append(New("connect", "from", "a b", "to", "output surface"))
	out, err := NewWriter().Marshal([]*Element{sh})
	require.NoError(t, err)
	assert.Equal(t,
		"<shader name=\"Red\">\n  <connect from=\"a b\" to=\"output surface\"></connect>\n</shader>\n",
		string(out))
}

func TestWriteEscapesAttributes(t *testing.T) {
	out, err := (&Writer{}).Marshal([]*Element{New("shader", "name", `a<b&"c"`)})
	require.NoError(t, err)
	assert.Equal(t, `<shader name="a&lt;b&amp;&#34;c&#34;"></shader>`+"\n", string(out))
}

func TestWriteRejectsEmptyTag(t *testing.T) {
	_, err := (&Writer{}).Marshal([]*Element{New("film"), {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}
