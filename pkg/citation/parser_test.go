package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinSegments(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

func TestParse(t *testing.T) {
	t.Run("Empty Input", func(t *testing.T) {
		assert.Nil(t, Parse(""))
	})

	t.Run("Plain Text Only", func(t *testing.T) {
		segments := Parse("吾輩は猫である。名前はまだ無い。")
		require.Len(t, segments, 1)
		assert.Equal(t, SegmentText, segments[0].Kind)
		assert.Nil(t, segments[0].Marker)
	})

	t.Run("Archive Marker With Author", func(t *testing.T) {
		input := "吾輩は猫である[出典: 吾輩は猫である - 夏目漱石]"
		segments := Parse(input)
		require.Len(t, segments, 2)

		assert.Equal(t, "吾輩は猫である", segments[0].Text)
		require.NotNil(t, segments[1].Marker)

		m := segments[1].Marker
		assert.Equal(t, SourceArchive, m.Kind)
		assert.Equal(t, "吾輩は猫である", m.Title)
		assert.Equal(t, "夏目漱石", m.Author)
		assert.Equal(t, "[出典: 吾輩は猫である - 夏目漱石]", m.Raw)
		assert.Equal(t, Span{Start: len("吾輩は猫である"), End: len(input)}, m.Span)
	})

	t.Run("Archive Marker Without Author", func(t *testing.T) {
		markers := Markers("[出典: 坊っちゃん]")
		require.Len(t, markers, 1)
		assert.Equal(t, "坊っちゃん", markers[0].Title)
		assert.Empty(t, markers[0].Author)
	})

	t.Run("Last Delimiter Splits Author", func(t *testing.T) {
		markers := Markers("[出典: 上 - 下 - 作者]")
		require.Len(t, markers, 1)
		assert.Equal(t, "上 - 下", markers[0].Title)
		assert.Equal(t, "作者", markers[0].Author)
	})

	t.Run("Web Marker Is Never Split", func(t *testing.T) {
		markers := Markers("[Web参考: 夏目漱石 - Wikipedia]")
		require.Len(t, markers, 1)
		assert.Equal(t, SourceWeb, markers[0].Kind)
		assert.Equal(t, "夏目漱石 - Wikipedia", markers[0].Title)
		assert.Empty(t, markers[0].Author)
	})

	t.Run("Multiple Markers Keep Order", func(t *testing.T) {
		input := "a[出典: 羅生門 - 芥川龍之介]b[Web参考: 解説]c"
		segments := Parse(input)
		require.Len(t, segments, 5)

		kinds := make([]SegmentKind, 0, len(segments))
		for _, seg := range segments {
			kinds = append(kinds, seg.Kind)
			assert.Equal(t, input[seg.Span.Start:seg.Span.End], seg.Text)
		}
		assert.Equal(t, []SegmentKind{SegmentText, SegmentMarker, SegmentText, SegmentMarker, SegmentText}, kinds)
		assert.Equal(t, input, joinSegments(segments))
	})

	t.Run("Adjacent Markers", func(t *testing.T) {
		segments := Parse("[出典: A][出典: B]")
		require.Len(t, segments, 2)
		assert.Equal(t, "A", segments[0].Marker.Title)
		assert.Equal(t, "B", segments[1].Marker.Title)
	})

	t.Run("Unterminated Marker Is Plain Text", func(t *testing.T) {
		input := "本文[出典: 吾輩は猫である - 夏目漱石"
		segments := Parse(input)
		require.Len(t, segments, 1)
		assert.Equal(t, SegmentText, segments[0].Kind)
		assert.Equal(t, input, segments[0].Text)
	})

	t.Run("Unknown Label Is Plain Text", func(t *testing.T) {
		input := "[参考: 何か] [出典 坊っちゃん] [出典:]"
		assert.Empty(t, Markers(input))
		assert.Equal(t, input, joinSegments(Parse(input)))
	})

	t.Run("Whitespace Around Payload Is Trimmed", func(t *testing.T) {
		markers := Markers("[出典:   こころ   -   夏目漱石  ]")
		require.Len(t, markers, 1)
		assert.Equal(t, "こころ", markers[0].Title)
		assert.Equal(t, "夏目漱石", markers[0].Author)
	})
}

func TestHasMarkers(t *testing.T) {
	assert.True(t, HasMarkers("x [出典: a]"))
	assert.True(t, HasMarkers("[Web参考: a]"))
	assert.False(t, HasMarkers("no markers here"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		marker Marker
		want   string
	}{
		{"archive with author", Marker{Kind: SourceArchive, Title: "こころ", Author: "夏目漱石"}, "[出典: こころ - 夏目漱石]"},
		{"archive title only", Marker{Kind: SourceArchive, Title: "こころ"}, "[出典: こころ]"},
		{"web ignores author", Marker{Kind: SourceWeb, Title: "解説", Author: "ignored"}, "[Web参考: 解説]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.marker)
			assert.Equal(t, tt.want, got)

			markers := Markers(got)
			require.Len(t, markers, 1)
			assert.Equal(t, tt.marker.Title, markers[0].Title)
		})
	}
}
