package indi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Attr is one XML attribute on an Element.
type Attr struct {
	Name  string
	Value string
}

// Element is the runtime's in-memory view of one parsed or
// to-be-written top-level wire message. The XML tokeniser itself
// (matching start/end tags, attribute splitting, entity decoding) is
// an out-of-scope external collaborator per spec.md §1; Element is
// built on top of the standard library's encoding/xml decoder/escaper,
// which plays that provided-tokeniser role.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Element
	Text     string
}

// Attr returns the named attribute's value.
func (e Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// WithAttr appends an attribute and returns the element for chaining.
func (e Element) WithAttr(name, value string) Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// WithChild appends a child element and returns the element for chaining.
func (e Element) WithChild(c Element) Element {
	e.Children = append(e.Children, c)
	return e
}

// NewElement builds a bare element with the given tag.
func NewElement(tag string) Element {
	return Element{Tag: tag}
}

// ReadElement reads the next top-level element from dec, the way
// parse_element is assumed to hand the driver one root XMLEle at a
// time. io.EOF is returned once the stream is exhausted.
func ReadElement(dec *xml.Decoder) (Element, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return Element{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return readElementBody(dec, start)
		}
	}
}

func readElementBody(dec *xml.Decoder, start xml.StartElement) (Element, error) {
	el := Element{Tag: start.Name.Local}
	for _, a := range start.Attr {
		el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return Element{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readElementBody(dec, t)
			if err != nil {
				return Element{}, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = text.String()
			return el, nil
		}
	}
}

// EncodeTo serializes e as one well-formed XML element, terminated
// with a newline so it is unambiguously delimited on a byte stream
// that carries no XML prologue (spec.md §6).
func (e Element) EncodeTo(w io.Writer) error {
	var buf bytes.Buffer
	if err := e.encode(&buf); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func (e Element) encode(buf *bytes.Buffer) error {
	buf.WriteByte('<')
	buf.WriteString(e.Tag)
	for _, a := range e.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		if err := xml.EscapeText(buf, []byte(a.Value)); err != nil {
			return err
		}
		buf.WriteByte('"')
	}
	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	if e.Text != "" {
		if err := xml.EscapeText(buf, []byte(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := c.encode(buf); err != nil {
			return err
		}
	}
	buf.WriteString("</")
	buf.WriteString(e.Tag)
	buf.WriteByte('>')
	return nil
}

// String renders e for diagnostics (verbose echo, error context).
func (e Element) String() string {
	var buf bytes.Buffer
	_ = e.encode(&buf)
	return buf.String()
}

func mustAttr(e Element, name string) (string, error) {
	v, ok := e.Attr(name)
	if !ok {
		return "", fmt.Errorf("indi: element %q missing required attribute %q", e.Tag, name)
	}
	return v, nil
}
