// Package search talks to the archive search service: hybrid archive + web
// search and full document text.
package search

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bunko/bunko/pkg/citation"
)

// Source values used on the wire
const (
	SourceAozora = "aozora"
	SourceWeb    = "web"
)

// Request limits enforced by the service
const (
	DefaultKInternal = 5
	DefaultKWeb      = 3
	MaxQueryRunes    = 1000
	MaxKInternal     = 20
	MaxKWeb          = 10
)

var ErrInvalidRequest = errors.New("invalid search request")

// Request is the body of POST /api/search
type Request struct {
	Query      string `json:"query"`
	KInternal  int    `json:"k_internal"`
	KWeb       int    `json:"k_web"`
	IncludeWeb bool   `json:"include_web"`
	TimeoutMS  *int   `json:"timeout_ms,omitempty"`
}

// NewRequest returns a request with the service defaults
func NewRequest(query string) Request {
	return Request{
		Query:      query,
		KInternal:  DefaultKInternal,
		KWeb:       DefaultKWeb,
		IncludeWeb: true,
	}
}

// Validate checks the request against the service limits
func (r Request) Validate() error {
	n := utf8.RuneCountInString(r.Query)
	switch {
	case n == 0:
		return fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	case n > MaxQueryRunes:
		return fmt.Errorf("%w: query exceeds %d characters", ErrInvalidRequest, MaxQueryRunes)
	case r.KInternal < 1 || r.KInternal > MaxKInternal:
		return fmt.Errorf("%w: k_internal must be between 1 and %d", ErrInvalidRequest, MaxKInternal)
	case r.KWeb < 0 || r.KWeb > MaxKWeb:
		return fmt.Errorf("%w: k_web must be between 0 and %d", ErrInvalidRequest, MaxKWeb)
	}
	return nil
}

// ResultItem is one archive chunk or web page
type ResultItem struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`

	// archive fields
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	WorkID      string `json:"work_id,omitempty"`
	OffsetStart *int   `json:"offset_start,omitempty"`
	OffsetEnd   *int   `json:"offset_end,omitempty"`
	ContextText string `json:"context_text,omitempty"`

	// web fields
	URL        string `json:"url,omitempty"`
	WebSnippet string `json:"snippet,omitempty"`
}

// Snippet converts the item into a citation snippet
func (it ResultItem) Snippet() citation.SourceSnippet {
	s := citation.SourceSnippet{
		Kind:        citation.SourceArchive,
		Title:       it.Title,
		Author:      it.Author,
		DocumentID:  it.WorkID,
		URL:         it.URL,
		Text:        it.Text,
		ContextText: it.ContextText,
		Score:       it.Score,
	}
	if it.Source == SourceWeb {
		s.Kind = citation.SourceWeb
		if s.Text == "" {
			s.Text = it.WebSnippet
		}
	}
	if it.OffsetStart != nil && it.OffsetEnd != nil {
		s.Offsets = &citation.TextRange{Start: *it.OffsetStart, End: *it.OffsetEnd}
	}
	return s
}

// Response is the body returned by POST /api/search
type Response struct {
	Query         string       `json:"query"`
	AozoraResults []ResultItem `json:"aozora_results"`
	WebResults    []ResultItem `json:"web_results"`
	TimingMS      int          `json:"timing_ms"`
	Errors        []string     `json:"errors"`
}

// Snippets returns archive results followed by web results
func (r *Response) Snippets() []citation.SourceSnippet {
	if r == nil {
		return nil
	}
	out := make([]citation.SourceSnippet, 0, len(r.AozoraResults)+len(r.WebResults))
	for _, it := range r.AozoraResults {
		out = append(out, it.Snippet())
	}
	for _, it := range r.WebResults {
		out = append(out, it.Snippet())
	}
	return out
}

// Empty reports whether no source returned anything
func (r *Response) Empty() bool {
	return r == nil || len(r.AozoraResults)+len(r.WebResults) == 0
}

// WorkText is the full text of one archive work
type WorkText struct {
	WorkID string `json:"work_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Work is one entry of the archive catalogue
type Work struct {
	WorkID string `json:"work_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// WorkList is one page of the catalogue
type WorkList struct {
	Works []Work `json:"works"`
	Total int    `json:"total"`
}
