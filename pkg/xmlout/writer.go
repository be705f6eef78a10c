package xmlout

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Writer serializes elements as sibling top-level blocks, one per line
// group, without an enclosing document root.
type Writer struct {
	// Indent is the per-level indentation for nested elements.
	// Empty writes each block on a single line.
	Indent string
}

// NewWriter returns a Writer that indents nested elements with two spaces.
func NewWriter() *Writer {
	return &Writer{Indent: "  "}
}

// WriteElements writes each element followed by a newline.
func (w *Writer) WriteElements(out io.Writer, elems []*Element) error {
	for i, e := range elems {
		if err := w.WriteElement(out, e); err != nil {
			return fmt.Errorf("xmlout: element %d <%s>: %w", i, e.Tag, err)
		}
	}
	return nil
}

// WriteElement writes a single element block followed by a newline.
func (w *Writer) WriteElement(out io.Writer, e *Element) error {
	enc := xml.NewEncoder(out)
	if w.Indent != "" {
		enc.Indent("", w.Indent)
	}
	if err := encode(enc, e); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// Marshal renders elements to a byte slice.
func (w *Writer) Marshal(elems []*Element) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.WriteElements(&buf, elems); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(enc *xml.Encoder, e *Element) error {
	if e.Tag == "" {
		return fmt.Errorf("element has no tag")
	}
	start := xml.StartElement{Name: xml.Name{Local: e.Tag}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := encode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}
