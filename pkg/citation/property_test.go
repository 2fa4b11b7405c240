package citation

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const minTestIterations = 200

// markerish pieces make generated input hit the marker grammar often
var markerish = []string{"[", "]", "出典", "Web参考", ":", ": ", " - ", " ", "\n", "猫", "a", "[出典: ", "[Web参考: "}

func genMarkerishText() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(markerish)-1)).Map(func(idx []int) string {
		var sb strings.Builder
		for _, i := range idx {
			sb.WriteString(markerish[i])
		}
		return sb.String()
	})
}

func TestParseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = minTestIterations
	properties := gopter.NewProperties(parameters)

	properties.Property("segments reconstruct arbitrary input", prop.ForAll(
		func(s string) bool {
			return joinSegments(Parse(s)) == s
		},
		gen.AnyString(),
	))

	properties.Property("segments reconstruct marker-heavy input", prop.ForAll(
		func(s string) bool {
			return joinSegments(Parse(s)) == s
		},
		genMarkerishText(),
	))

	properties.Property("spans are ordered, contiguous and match text", prop.ForAll(
		func(s string) bool {
			pos := 0
			for _, seg := range Parse(s) {
				if seg.Span.Start != pos || seg.Span.End <= seg.Span.Start {
					return false
				}
				if s[seg.Span.Start:seg.Span.End] != seg.Text {
					return false
				}
				if (seg.Kind == SegmentMarker) != (seg.Marker != nil) {
					return false
				}
				pos = seg.Span.End
			}
			return pos == len(s)
		},
		genMarkerishText(),
	))

	properties.Property("formatted archive markers parse back", prop.ForAll(
		func(title, author string) bool {
			markers := Markers("前" + Format(Marker{Kind: SourceArchive, Title: title, Author: author}) + "後")
			return len(markers) == 1 &&
				markers[0].Kind == SourceArchive &&
				markers[0].Title == title &&
				markers[0].Author == author
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("formatted web markers parse back", prop.ForAll(
		func(title string) bool {
			markers := Markers(Format(Marker{Kind: SourceWeb, Title: title}))
			return len(markers) == 1 && markers[0].Kind == SourceWeb && markers[0].Title == title
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestLookupProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = minTestIterations
	properties := gopter.NewProperties(parameters)

	properties.Property("exact match wins and title fallback is the first seen", prop.ForAll(
		func(title string, authors []string) bool {
			if len(authors) == 0 {
				return true
			}
			snippets := make([]SourceSnippet, 0, len(authors))
			for i, a := range authors {
				snippets = append(snippets, SourceSnippet{
					Kind:       SourceArchive,
					Title:      title,
					Author:     a,
					DocumentID: title + "-" + string(rune('A'+i%26)) + a,
				})
			}
			reg := Build(snippets)

			fallback, ok := reg.Lookup(SourceArchive, title, "")
			if !ok || fallback.DocumentID != snippets[0].DocumentID {
				return false
			}

			last := authors[len(authors)-1]
			exact, ok := reg.Lookup(SourceArchive, title, last)
			return ok && exact.Author == last
		},
		gen.Identifier(),
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.TestingRun(t)
}
