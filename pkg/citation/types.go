// Package citation parses citation markers out of assistant text and resolves
// them against the snippets returned by the latest search.
package citation

// SourceKind distinguishes archive excerpts from web results
type SourceKind string

const (
	SourceArchive SourceKind = "archive"
	SourceWeb     SourceKind = "web"
)

// TextRange is a half-open [Start, End) range of rune offsets into a document
type TextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SourceSnippet is one retrieved excerpt. It is immutable for one query turn.
type SourceSnippet struct {
	Kind        SourceKind `json:"kind"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	DocumentID  string     `json:"document_id,omitempty"`
	URL         string     `json:"url,omitempty"`
	Text        string     `json:"text"`
	ContextText string     `json:"context_text,omitempty"`
	Score       float64    `json:"score,omitempty"`
	Offsets     *TextRange `json:"offsets,omitempty"` // position of Text inside the document
}

// ResolvedCitation is what a marker points at once it has been matched
type ResolvedCitation struct {
	Kind        SourceKind `json:"kind"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	DocumentID  string     `json:"document_id,omitempty"`
	URL         string     `json:"url,omitempty"`
	DisplayText string     `json:"display_text"`
	Offsets     *TextRange `json:"offsets,omitempty"`
}

// Span is a half-open byte range into the parsed string
type Span struct {
	Start int
	End   int
}

// Marker is a citation annotation found in assistant text
type Marker struct {
	Kind   SourceKind
	Title  string
	Author string // empty when the marker carries no author
	Raw    string // exact marker text, brackets included
	Span   Span
}

// SegmentKind tells plain text and markers apart
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentMarker
)

// Segment is one contiguous piece of parsed text
type Segment struct {
	Kind   SegmentKind
	Text   string
	Span   Span
	Marker *Marker // set when Kind is SegmentMarker
}
