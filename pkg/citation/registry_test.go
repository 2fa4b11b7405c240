package citation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnippets() []SourceSnippet {
	return []SourceSnippet{
		{Kind: SourceArchive, Title: "こころ", Author: "夏目漱石", DocumentID: "773", Text: "先生と私"},
		{Kind: SourceArchive, Title: "こころ", Author: "別の作者", DocumentID: "900", Text: "同名の別作品"},
		{Kind: SourceArchive, Title: "羅生門", Author: "芥川龍之介", DocumentID: "127", Text: "ある日の暮方", ContextText: "ある日の暮方の事である。"},
		{Kind: SourceWeb, Title: "夏目漱石 - Wikipedia", URL: "https://ja.wikipedia.org/wiki/夏目漱石/", Text: "明治の文豪"},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := Build(sampleSnippets())

	t.Run("Exact Title And Author", func(t *testing.T) {
		got, ok := reg.Lookup(SourceArchive, "こころ", "別の作者")
		require.True(t, ok)
		assert.Equal(t, "900", got.DocumentID)
	})

	t.Run("Missing Author Falls Back To First Title", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			got, ok := reg.Lookup(SourceArchive, "こころ", "")
			require.True(t, ok)
			assert.Equal(t, "773", got.DocumentID)
		}
	})

	t.Run("Unknown Author Falls Back To First Title", func(t *testing.T) {
		got, ok := reg.Lookup(SourceArchive, "こころ", "誰か")
		require.True(t, ok)
		assert.Equal(t, "773", got.DocumentID)
	})

	t.Run("Whitespace Is Normalized", func(t *testing.T) {
		got, ok := reg.Lookup(SourceArchive, "  羅生門 ", "芥川龍之介")
		require.True(t, ok)
		assert.Equal(t, "127", got.DocumentID)
	})

	t.Run("Display Text Prefers Context", func(t *testing.T) {
		got, ok := reg.Lookup(SourceArchive, "羅生門", "")
		require.True(t, ok)
		assert.Equal(t, "ある日の暮方の事である。", got.DisplayText)
	})

	t.Run("Web By Title", func(t *testing.T) {
		got, ok := reg.Lookup(SourceWeb, "夏目漱石 - Wikipedia", "")
		require.True(t, ok)
		assert.Equal(t, SourceWeb, got.Kind)
		assert.Equal(t, "明治の文豪", got.DisplayText)
	})

	t.Run("Web By URL", func(t *testing.T) {
		got, ok := reg.LookupURL("HTTPS://JA.wikipedia.org/wiki/夏目漱石")
		require.True(t, ok)
		assert.Equal(t, "夏目漱石 - Wikipedia", got.Title)

		got, ok = reg.Lookup(SourceWeb, "https://ja.wikipedia.org/wiki/夏目漱石", "")
		require.True(t, ok)
		assert.Equal(t, "夏目漱石 - Wikipedia", got.Title)
	})

	t.Run("Kinds Do Not Cross", func(t *testing.T) {
		_, ok := reg.Lookup(SourceWeb, "こころ", "")
		assert.False(t, ok)
		_, ok = reg.Lookup(SourceArchive, "夏目漱石 - Wikipedia", "")
		assert.False(t, ok)
	})

	t.Run("No Match", func(t *testing.T) {
		_, ok := reg.Lookup(SourceArchive, "存在しない", "")
		assert.False(t, ok)
		_, ok = reg.Lookup(SourceArchive, "", "")
		assert.False(t, ok)
	})

	t.Run("Nil Registry", func(t *testing.T) {
		var empty *Registry
		_, ok := empty.Lookup(SourceArchive, "こころ", "")
		assert.False(t, ok)
		assert.Zero(t, empty.Len())
	})
}

func TestRegistryBuild(t *testing.T) {
	t.Run("Duplicate Keys Keep First", func(t *testing.T) {
		reg := Build([]SourceSnippet{
			{Kind: SourceArchive, Title: "こころ", DocumentID: "773", Text: "first"},
			{Kind: SourceArchive, Title: "こころ", DocumentID: "773", Text: "second"},
			{Kind: SourceWeb, Title: "a", URL: "https://example.com/x", Text: "web first"},
			{Kind: SourceWeb, Title: "b", URL: "https://example.com/x/", Text: "web second"},
		})

		assert.Equal(t, 2, reg.Len())
		got, ok := reg.Get("773")
		require.True(t, ok)
		assert.Equal(t, "first", got.DisplayText)
	})

	t.Run("Entries Keep Input Order", func(t *testing.T) {
		reg := Build(sampleSnippets())
		entries := reg.Entries()
		require.Len(t, entries, 4)
		assert.Equal(t, "773", entries[0].DocumentID)
		assert.Equal(t, "127", entries[2].DocumentID)
		assert.Equal(t, SourceWeb, entries[3].Kind)

		entries[0].Title = "mutated"
		again, _ := reg.Get("773")
		assert.Equal(t, "こころ", again.Title)
	})

	t.Run("Offsets Are Copied", func(t *testing.T) {
		offsets := &TextRange{Start: 10, End: 20}
		reg := Build([]SourceSnippet{{Kind: SourceArchive, Title: "t", DocumentID: "1", Offsets: offsets}})
		offsets.Start = 99

		got, ok := reg.Get("1")
		require.True(t, ok)
		require.NotNil(t, got.Offsets)
		assert.Equal(t, 10, got.Offsets.Start)
	})
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "42", KeyFor(SourceSnippet{Kind: SourceArchive, Title: "t", DocumentID: "42"}))
	assert.Equal(t, "archive:t\x00a", KeyFor(SourceSnippet{Kind: SourceArchive, Title: " t ", Author: "a"}))
	assert.Equal(t, "web:https://example.com/p", KeyFor(SourceSnippet{Kind: SourceWeb, Title: "p", URL: "https://Example.com/p/"}))
	assert.Equal(t, "web:p", KeyFor(SourceSnippet{Kind: SourceWeb, Title: "p"}))
}

func TestHolder(t *testing.T) {
	t.Run("Starts Empty", func(t *testing.T) {
		h := NewHolder()
		require.NotNil(t, h.Current())
		assert.Zero(t, h.Current().Len())

		var zero Holder
		assert.NotNil(t, zero.Current())
	})

	t.Run("Replace Drops Previous Turn", func(t *testing.T) {
		h := NewHolder()
		h.Replace(sampleSnippets())
		_, ok := h.Current().Lookup(SourceArchive, "羅生門", "")
		require.True(t, ok)

		h.Replace([]SourceSnippet{{Kind: SourceArchive, Title: "坊っちゃん", DocumentID: "752"}})
		_, ok = h.Current().Lookup(SourceArchive, "羅生門", "")
		assert.False(t, ok)
		_, ok = h.Current().Lookup(SourceArchive, "坊っちゃん", "")
		assert.True(t, ok)

		h.Reset()
		assert.Zero(t, h.Current().Len())
	})

	t.Run("Readers See Whole Registries", func(t *testing.T) {
		h := NewHolder()
		a := []SourceSnippet{
			{Kind: SourceArchive, Title: "A1", DocumentID: "a1"},
			{Kind: SourceArchive, Title: "A2", DocumentID: "a2"},
		}
		b := []SourceSnippet{
			{Kind: SourceArchive, Title: "B1", DocumentID: "b1"},
			{Kind: SourceArchive, Title: "B2", DocumentID: "b2"},
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if i%2 == 0 {
					h.Replace(a)
				} else {
					h.Replace(b)
				}
			}
		}()

		for i := 0; i < 500; i++ {
			reg := h.Current()
			_, a1 := reg.Get("a1")
			_, a2 := reg.Get("a2")
			_, b1 := reg.Get("b1")
			_, b2 := reg.Get("b2")
			assert.Equal(t, a1, a2)
			assert.Equal(t, b1, b2)
			assert.False(t, a1 && b1)
		}
		wg.Wait()
	})
}
