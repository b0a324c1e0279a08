package registry

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// element is the materialized subtree of one record. Only direct character
// data is kept as text, trimmed.
type element struct {
	tag      string
	text     string
	children []*element
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// readElement consumes tokens up to the end of start and returns the subtree.
func readElement(dec *xml.Decoder, start xml.StartElement) (*element, error) {
	el := &element{tag: start.Name.Local}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}

// readDocument decodes the root element of a whole response.
func readDocument(r io.Reader) (*element, error) {
	dec := newDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return readElement(dec, start)
		}
	}
}

func (e *element) child(tag string) *element {
	for _, c := range e.children {
		if c.tag == tag {
			return c
		}
	}
	return nil
}

func (e *element) required(tag string) (string, error) {
	c := e.child(tag)
	if c == nil {
		return "", missingField(e.tag, tag)
	}
	return c.text, nil
}

// optional returns the child's text or "" when the child is absent.
func (e *element) optional(tag string) string {
	if c := e.child(tag); c != nil {
		return c.text
	}
	return ""
}

func (e *element) integer(tag string) (int64, error) {
	s, err := e.required(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, invalidInteger(e.tag, tag, err)
	}
	return n, nil
}

func (e *element) boolean(tag string) bool {
	switch strings.ToLower(e.optional(tag)) {
	case "true", "1":
		return true
	}
	return false
}

func (e *element) list(tag string) []string {
	var out []string
	for _, part := range strings.Split(e.optional(tag), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// errorTags are the elements that can carry a result/message error report.
var errorTags = map[string]bool{"rest": true, "login": true, "request": true}

// apiError returns the classified error when e reports result=false.
func (e *element) apiError() error {
	if !errorTags[e.tag] || e.optional("result") != "false" {
		return nil
	}
	return failure(e.optional("message"))
}

// firstAPIError checks e and its descendants, closing order first.
func (e *element) firstAPIError() error {
	for _, c := range e.children {
		if err := c.firstAPIError(); err != nil {
			return err
		}
	}
	return e.apiError()
}

func failure(message string) *Error {
	return &Error{Kind: classify(message), Message: message}
}
