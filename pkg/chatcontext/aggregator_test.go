package chatcontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentContext(t *testing.T) {
	t.Run("Second Set Replaces First", func(t *testing.T) {
		agg := New()
		agg.SetDocumentContext("773", "こころ", "夏目漱石", "最初の抜粋")
		agg.SetDocumentContext("773", "こころ", "夏目漱石", "次の抜粋")

		items := agg.Items()
		require.Len(t, items, 1)
		assert.Equal(t, "document-773", items[0].ID)
		assert.Equal(t, "次の抜粋", items[0].Content)
	})

	t.Run("Different Document Still Replaces", func(t *testing.T) {
		agg := New()
		agg.SetDocumentContext("773", "こころ", "夏目漱石", "x")
		agg.SetDocumentContext("127", "羅生門", "芥川龍之介", "y")

		doc, ok := agg.Document()
		require.True(t, ok)
		assert.Equal(t, "document-127", doc.ID)
		assert.Equal(t, 1, agg.Len())
	})

	t.Run("Clear", func(t *testing.T) {
		agg := New()
		agg.SetDocumentContext("773", "こころ", "夏目漱石", "x")
		agg.ClearDocumentContext()
		assert.Zero(t, agg.Len())
		assert.Empty(t, agg.Serialize())
	})
}

func TestSelectionContext(t *testing.T) {
	agg := New()
	agg.SetSelectionContext("773", "こころ", "私はその人を常に先生と呼んでいた。")
	agg.SetSelectionContext("773", "こころ", "別の箇所")

	sel, ok := agg.Selection()
	require.True(t, ok)
	assert.Equal(t, "selection-773", sel.ID)
	assert.Equal(t, "別の箇所", sel.Content)
	assert.Equal(t, 1, agg.Len())

	agg.ClearSelectionContext()
	_, ok = agg.Selection()
	assert.False(t, ok)
}

func TestRemoveContext(t *testing.T) {
	agg := New()
	agg.SetDocumentContext("773", "こころ", "夏目漱石", "x")
	agg.SetSelectionContext("773", "こころ", "y")

	agg.RemoveContext("missing")
	assert.Equal(t, 2, agg.Len())

	agg.RemoveContext(ItemID(KindSelection, "773"))
	items := agg.Items()
	require.Len(t, items, 1)
	assert.Equal(t, KindDocument, items[0].Kind)

	agg.SetSelectionContext("773", "こころ", "y")
	agg.ClearAll()
	assert.Zero(t, agg.Len())
}

func TestSerialize(t *testing.T) {
	const want = "【参照中の作品】\n" +
		"作品: こころ\n" +
		"著者: 夏目漱石\n" +
		"抜粋:\n" +
		"先生と私\n\n" +
		"【選択されたテキスト - こころより】\n" +
		"私はその人を常に先生と呼んでいた。"

	t.Run("Document Before Selection Regardless Of Call Order", func(t *testing.T) {
		first := New()
		first.SetDocumentContext("773", "こころ", "夏目漱石", "先生と私")
		first.SetSelectionContext("773", "こころ", "私はその人を常に先生と呼んでいた。")

		second := New()
		second.SetSelectionContext("773", "こころ", "私はその人を常に先生と呼んでいた。")
		second.SetDocumentContext("773", "こころ", "夏目漱石", "先生と私")

		assert.Equal(t, want, first.Serialize())
		assert.Equal(t, want, second.Serialize())
		assert.Equal(t, first.Serialize(), first.Serialize())
	})

	t.Run("Selection Only", func(t *testing.T) {
		agg := New()
		agg.SetSelectionContext("1", "吾輩は猫である", "名前はまだ無い。")
		assert.Equal(t, "【選択されたテキスト - 吾輩は猫であるより】\n名前はまだ無い。", agg.Serialize())
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", New().Serialize())
	})
}

func TestExcerptBound(t *testing.T) {
	agg := New(WithMaxExcerptRunes(3))
	agg.SetDocumentContext("1", "t", "a", "吾輩は猫である")
	doc, _ := agg.Document()
	assert.Equal(t, "吾輩は…", doc.Content)

	unbounded := New(WithMaxExcerptRunes(0))
	long := strings.Repeat("猫", DefaultMaxExcerptRunes+10)
	unbounded.SetSelectionContext("1", "t", long)
	sel, _ := unbounded.Selection()
	assert.Equal(t, long, sel.Content)

	bounded := New()
	bounded.SetSelectionContext("1", "t", long)
	sel, _ = bounded.Selection()
	assert.Equal(t, DefaultMaxExcerptRunes+1, len([]rune(sel.Content)))
}

func TestSubscribe(t *testing.T) {
	agg := New()
	var calls [][]Item
	unsubscribe := agg.Subscribe(func(items []Item) {
		calls = append(calls, items)
	})

	agg.SetDocumentContext("1", "t", "a", "x")
	agg.ClearSelectionContext()
	agg.SetSelectionContext("1", "t", "y")
	unsubscribe()
	agg.ClearAll()

	require.Len(t, calls, 2)
	assert.Len(t, calls[0], 1)
	assert.Len(t, calls[1], 2)
}
