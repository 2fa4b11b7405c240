// Package stream turns token streams into renderable units. A unit never ends
// inside an open citation marker, so every marker reaches the parser whole.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bunko/bunko/pkg/inference"
)

// Boundary separates renderable units
const Boundary = "\n\n"

// marker openers; a boundary after one of these waits for the closing bracket
var markerOpeners = []string{"[出典:", "[Web参考:"}

// Chunker buffers tokens until a unit boundary arrives
type Chunker struct {
	buf strings.Builder
}

// NewChunker creates an empty chunker
func NewChunker() *Chunker {
	return &Chunker{}
}

// Write appends a token and returns every unit it completed. Each returned
// unit keeps its trailing boundary so that joining all units reproduces the
// input exactly.
func (c *Chunker) Write(token string) []string {
	if token == "" {
		return nil
	}
	c.buf.WriteString(token)

	pending := c.buf.String()
	var units []string
	from := 0
	for {
		rel := strings.Index(pending[from:], Boundary)
		if rel < 0 {
			break
		}
		idx := from + rel
		if openMarker(pending[:idx]) >= 0 {
			closing := strings.IndexByte(pending[idx:], ']')
			if closing < 0 {
				// hold everything until the marker closes or Flush
				break
			}
			from = idx + closing + 1
			continue
		}
		end := idx + len(Boundary)
		// swallow further newlines so a unit never starts blank
		for end < len(pending) && pending[end] == '\n' {
			end++
		}
		if end == len(pending) {
			// more newlines may follow in the next token
			units = append(units, pending)
			pending = ""
			break
		}
		units = append(units, pending[:end])
		pending = pending[end:]
		from = 0
	}

	if units != nil {
		c.buf.Reset()
		c.buf.WriteString(pending)
	}
	return units
}

// openMarker returns the offset of a marker opener in s that has no closing
// bracket yet, or -1.
func openMarker(s string) int {
	at := -1
	for _, opener := range markerOpeners {
		if i := strings.LastIndex(s, opener); i > at {
			at = i
		}
	}
	if at < 0 || strings.IndexByte(s[at:], ']') >= 0 {
		return -1
	}
	return at
}

// Flush returns the buffered remainder, "" when nothing is pending
func (c *Chunker) Flush() string {
	rest := c.buf.String()
	c.buf.Reset()
	return rest
}

// Pending returns the buffered text without consuming it
func (c *Chunker) Pending() string {
	return c.buf.String()
}

// Drain reads s until io.EOF, passing each completed unit to fn, and returns
// the full text. On error or cancellation the text received so far is
// returned with the error; the remainder is still flushed to fn.
func Drain(ctx context.Context, s inference.ChatStream, fn func(unit string)) (string, error) {
	defer s.Close()

	chunker := NewChunker()
	var full strings.Builder

	emit := func(units []string) {
		for _, u := range units {
			if fn != nil {
				fn(u)
			}
		}
	}

	flush := func() {
		if rest := chunker.Flush(); rest != "" {
			emit([]string{rest})
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			flush()
			return full.String(), err
		}

		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			flush()
			return full.String(), err
		}

		full.WriteString(chunk.Content)
		emit(chunker.Write(chunk.Content))

		if chunk.Done {
			break
		}
	}

	flush()
	return full.String(), nil
}
