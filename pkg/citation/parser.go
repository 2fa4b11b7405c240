package citation

import (
	"regexp"
	"strings"
)

const (
	archiveLabel    = "出典"
	webLabel        = "Web参考"
	authorDelimiter = " - "
)

// markerPattern is the authoritative marker grammar. Anything that does not
// match it exactly is plain text.
var markerPattern = regexp.MustCompile(`\[(` + archiveLabel + `|` + webLabel + `):\s*([^\]]+)\]`)

// Parse splits text into ordered plain and marker segments. Concatenating the
// Text of every segment reproduces the input. Malformed markers stay plain.
func Parse(text string) []Segment {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{plainSegment(text, 0, len(text))}
	}

	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, plainSegment(text, last, start))
		}

		label := text[m[2]:m[3]]
		payload := text[m[4]:m[5]]
		marker := newMarker(label, payload)
		marker.Raw = text[start:end]
		marker.Span = Span{Start: start, End: end}

		segments = append(segments, Segment{
			Kind:   SegmentMarker,
			Text:   marker.Raw,
			Span:   marker.Span,
			Marker: marker,
		})
		last = end
	}

	if last < len(text) {
		segments = append(segments, plainSegment(text, last, len(text)))
	}

	return segments
}

// Markers returns only the markers found in text, in order
func Markers(text string) []Marker {
	var markers []Marker
	for _, seg := range Parse(text) {
		if seg.Marker != nil {
			markers = append(markers, *seg.Marker)
		}
	}
	return markers
}

// HasMarkers is a cheap pre-check before a full parse
func HasMarkers(text string) bool {
	return strings.Contains(text, "["+archiveLabel+":") || strings.Contains(text, "["+webLabel+":")
}

// Format renders the canonical marker text for m
func Format(m Marker) string {
	if m.Kind == SourceWeb {
		return "[" + webLabel + ": " + m.Title + "]"
	}
	if m.Author != "" {
		return "[" + archiveLabel + ": " + m.Title + authorDelimiter + m.Author + "]"
	}
	return "[" + archiveLabel + ": " + m.Title + "]"
}

func newMarker(label, payload string) *Marker {
	if label == webLabel {
		return &Marker{Kind: SourceWeb, Title: strings.TrimSpace(payload)}
	}

	// The last delimiter wins so titles that contain " - " keep it.
	if idx := strings.LastIndex(payload, authorDelimiter); idx > 0 {
		return &Marker{
			Kind:   SourceArchive,
			Title:  strings.TrimSpace(payload[:idx]),
			Author: strings.TrimSpace(payload[idx+len(authorDelimiter):]),
		}
	}
	return &Marker{Kind: SourceArchive, Title: strings.TrimSpace(payload)}
}

func plainSegment(text string, start, end int) Segment {
	return Segment{
		Kind: SegmentText,
		Text: text[start:end],
		Span: Span{Start: start, End: end},
	}
}
