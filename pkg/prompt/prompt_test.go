package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/inference"
)

func TestBuildSearchContext(t *testing.T) {
	t.Run("Archive Then Web", func(t *testing.T) {
		got := BuildSearchContext([]citation.SourceSnippet{
			{Kind: citation.SourceWeb, Title: "解説", Text: "補足"},
			{Kind: citation.SourceArchive, Title: "こころ", Author: "夏目漱石", Text: "短い", ContextText: "長い文脈"},
			{Kind: citation.SourceWeb, URL: "https://example.com", Text: "URLのみ"},
			{Kind: citation.SourceWeb, Text: "無題"},
		})

		want := "## 青空文庫アーカイブからの情報\n\n" +
			"### こころ (夏目漱石)\n長い文脈\n\n" +
			"## Web検索からの補足情報\n\n" +
			"### 解説\n補足\n\n" +
			"### https://example.com\nURLのみ\n\n" +
			"### Web\n無題\n\n"
		assert.Equal(t, want, got)
	})

	t.Run("Missing Archive Metadata", func(t *testing.T) {
		got := BuildSearchContext([]citation.SourceSnippet{{Kind: citation.SourceArchive, Text: "本文"}})
		assert.Contains(t, got, "### 不明 (不明)\n本文")
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", BuildSearchContext(nil))
	})
}

func TestBuilder(t *testing.T) {
	t.Run("System Carries Rules And Search Context", func(t *testing.T) {
		b, err := NewBuilder("", WithModel("m"), WithTemperature(0.3))
		require.NoError(t, err)

		req, err := b.Build(Input{
			Question: "猫が登場する作品は？",
			Snippets: []citation.SourceSnippet{{Kind: citation.SourceArchive, Title: "吾輩は猫である", Author: "夏目漱石", Text: "吾輩は猫である。"}},
		})
		require.NoError(t, err)

		assert.Equal(t, "m", req.Model)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.True(t, strings.HasPrefix(req.System, SystemPrompt))
		assert.Contains(t, req.System, "[出典: 作品名 - 著者名]")
		assert.Contains(t, req.System, "### 吾輩は猫である (夏目漱石)")
		require.Len(t, req.Messages, 1)
		assert.Equal(t, inference.RoleUser, req.Messages[0].Role)
		assert.Equal(t, "猫が登場する作品は？", req.Messages[0].Content)
	})

	t.Run("Search Error Is Reported Inline", func(t *testing.T) {
		b, err := NewBuilder("")
		require.NoError(t, err)

		req, err := b.Build(Input{Question: "q", SearchError: errors.New("search: unexpected status 503")})
		require.NoError(t, err)
		assert.Contains(t, req.System, "[検索エラー: search: unexpected status 503]")
		assert.NotContains(t, req.System, "## 青空文庫アーカイブからの情報")
	})

	t.Run("Context Bundle And History", func(t *testing.T) {
		b, err := NewBuilder("", WithMaxHistory(2))
		require.NoError(t, err)

		history := []inference.Message{
			{Role: inference.RoleUser, Content: "1"},
			{Role: inference.RoleAssistant, Content: "2"},
			{Role: inference.RoleUser, Content: "3"},
			{Role: inference.RoleAssistant, Content: "4"},
		}
		req, err := b.Build(Input{Question: "次は？", ContextBundle: "【参照中の作品】\n作品: こころ", History: history})
		require.NoError(t, err)

		require.Len(t, req.Messages, 3)
		assert.Equal(t, "3", req.Messages[0].Content)
		assert.Equal(t, "【参照中の作品】\n作品: こころ\n\n【質問】\n次は？", req.Messages[2].Content)
		assert.Len(t, history, 4)
	})

	t.Run("Custom Template", func(t *testing.T) {
		b, err := NewBuilder(`{{default "none" .SearchError}}|{{trim .SearchContext}}`)
		require.NoError(t, err)
		req, err := b.Build(Input{Question: "q"})
		require.NoError(t, err)
		assert.Equal(t, "none|", req.System)
	})

	t.Run("Bad Template", func(t *testing.T) {
		_, err := NewBuilder("{{.Missing")
		assert.Error(t, err)
	})
}
