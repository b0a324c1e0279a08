package registry

import (
	"encoding/xml"
	"errors"
	"io"
	"iter"
	"sync"
)

// Stream yields the records of an export one at a time. Only the current
// record is held in memory. A stream is finite and cannot be restarted;
// iterating again means issuing a new export. Close must always be called.
//
//	s, err := c.ExportPapers(ctx, ids)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//		p := s.Record()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream[T any] struct {
	body   io.ReadCloser
	dec    *xml.Decoder
	record string
	parse  func(*element) (T, error)
	check  func(T) error

	// open tracks the error-capable elements currently being read, each
	// with the result/message children seen so far.
	open []*reportFrame
	// depth counts all open elements; frames record where they started.
	depth int

	cur       T
	err       error
	done      bool
	closeOnce sync.Once
}

type reportFrame struct {
	depth   int
	element *element
}

func newStream[T any](body io.ReadCloser, record string, parse func(*element) (T, error), check func(T) error) *Stream[T] {
	return &Stream[T]{
		body:   body,
		dec:    newDecoder(body),
		record: record,
		parse:  parse,
		check:  check,
	}
}

// Next advances to the next record. It returns false at the end of the
// export or on the first error, and releases the body in both cases.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	rec, err := s.advance()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		s.Close()
		return false
	}
	s.cur = rec
	return true
}

func (s *Stream[T]) advance() (T, error) {
	var zero T
	for {
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && s.depth > 0 {
				err = io.ErrUnexpectedEOF
			}
			return zero, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == s.record {
				el, err := readElement(s.dec, t)
				if err != nil {
					return zero, err
				}
				if err := el.firstAPIError(); err != nil {
					return zero, err
				}
				rec, err := s.parse(el)
				if err != nil {
					return zero, err
				}
				if s.check != nil {
					if err := s.check(rec); err != nil {
						return zero, err
					}
				}
				return rec, nil
			}

			if f := s.innermost(); f != nil && f.depth == s.depth && (name == "result" || name == "message") {
				// A direct report child; small, so read it whole.
				el, err := readElement(s.dec, t)
				if err != nil {
					return zero, err
				}
				f.element.children = append(f.element.children, el)
				continue
			}

			s.depth++
			if errorTags[name] {
				s.open = append(s.open, &reportFrame{depth: s.depth, element: &element{tag: name}})
			}

		case xml.EndElement:
			if f := s.innermost(); f != nil && f.depth == s.depth {
				s.open = s.open[:len(s.open)-1]
				if err := f.element.apiError(); err != nil {
					return zero, err
				}
			}
			s.depth--
		}
	}
}

func (s *Stream[T]) innermost() *reportFrame {
	if len(s.open) == 0 {
		return nil
	}
	return s.open[len(s.open)-1]
}

// Record returns the record read by the last successful Next.
func (s *Stream[T]) Record() T { return s.cur }

// Err returns the error that ended the stream, if any.
func (s *Stream[T]) Err() error { return s.err }

// Close releases the response body. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		err = s.body.Close()
	})
	return err
}

// All adapts the stream to a range-over-func iterator. The stream is closed
// when iteration ends, including on break. A terminal error is yielded once
// with a zero record.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Record(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains the stream into a slice and closes it.
func (s *Stream[T]) Collect() ([]T, error) {
	defer s.Close()
	var out []T
	for s.Next() {
		out = append(out, s.Record())
	}
	return out, s.Err()
}
