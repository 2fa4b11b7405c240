package viewer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("tab-%d", n)
	})
}

func openThree(t *testing.T) (*Tabs, []string) {
	t.Helper()
	tabs := New(sequentialIDs())
	ids := []string{
		tabs.OpenOrFocus("A", "作品A", "作者A", "aaa", nil),
		tabs.OpenOrFocus("B", "作品B", "作者B", "bbb", nil),
		tabs.OpenOrFocus("C", "作品C", "作者C", "ccc", nil),
	}
	return tabs, ids
}

func TestOpenOrFocus(t *testing.T) {
	t.Run("New Tab Is Appended And Active", func(t *testing.T) {
		tabs, ids := openThree(t)
		require.Equal(t, 3, tabs.Len())
		assert.Equal(t, ids[2], tabs.ActiveID())
		assert.Equal(t, 2, tabs.IndexOf(ids[2]))
	})

	t.Run("Same Document Updates In Place", func(t *testing.T) {
		tabs, ids := openThree(t)
		tabs.SetActive(ids[2])

		hl := &Range{Start: 1, End: 2}
		id := tabs.OpenOrFocus("A", "新題", "新作者", "new content", hl)

		assert.Equal(t, ids[0], id)
		assert.Equal(t, 3, tabs.Len())
		assert.Equal(t, 0, tabs.IndexOf(id))
		assert.Equal(t, id, tabs.ActiveID())

		tab, ok := tabs.Get(id)
		require.True(t, ok)
		assert.Equal(t, "新題", tab.Title)
		assert.Equal(t, "新作者", tab.Author)
		assert.Equal(t, "new content", tab.Content)
		assert.Equal(t, &Range{Start: 1, End: 2}, tab.Highlight)

		hl.Start = 0
		tab, _ = tabs.Get(id)
		assert.Equal(t, 1, tab.Highlight.Start)
	})

	t.Run("Reopen Without Highlight Clears It", func(t *testing.T) {
		tabs := New()
		id := tabs.OpenOrFocus("A", "t", "a", "text", &Range{Start: 0, End: 2})
		tabs.OpenOrFocus("A", "t", "a", "text", nil)
		tab, _ := tabs.Get(id)
		assert.Nil(t, tab.Highlight)
	})

	t.Run("Default Ids Are Unique", func(t *testing.T) {
		tabs := New()
		a := tabs.OpenOrFocus("A", "", "", "", nil)
		b := tabs.OpenOrFocus("B", "", "", "", nil)
		assert.NotEmpty(t, a)
		assert.NotEqual(t, a, b)
	})
}

func TestClose(t *testing.T) {
	t.Run("Active Middle Tab Yields Same Slot", func(t *testing.T) {
		tabs, ids := openThree(t)
		tabs.SetActive(ids[1])

		tabs.Close(ids[1])

		remaining := tabs.Tabs()
		require.Len(t, remaining, 2)
		assert.Equal(t, "A", remaining[0].DocumentID)
		assert.Equal(t, "C", remaining[1].DocumentID)
		assert.Equal(t, ids[2], tabs.ActiveID())
	})

	t.Run("Active Last Tab Falls Back To New Last", func(t *testing.T) {
		tabs, ids := openThree(t)
		tabs.Close(ids[2])
		assert.Equal(t, ids[1], tabs.ActiveID())
	})

	t.Run("Inactive Tab Keeps Focus", func(t *testing.T) {
		tabs, ids := openThree(t)
		tabs.SetActive(ids[2])
		tabs.Close(ids[0])
		assert.Equal(t, ids[2], tabs.ActiveID())
	})

	t.Run("Last Remaining Tab Clears Active", func(t *testing.T) {
		tabs := New()
		id := tabs.OpenOrFocus("A", "", "", "", nil)
		tabs.Close(id)
		assert.Zero(t, tabs.Len())
		assert.Empty(t, tabs.ActiveID())
		_, ok := tabs.Active()
		assert.False(t, ok)
	})

	t.Run("Unknown Id Is A No-op", func(t *testing.T) {
		tabs, ids := openThree(t)
		var events int
		tabs.Subscribe(func(Event) { events++ })

		tabs.Close("missing")
		tabs.Close(ids[0])
		tabs.Close(ids[0])

		assert.Equal(t, 2, tabs.Len())
		assert.Equal(t, 1, events)
	})
}

func TestSetHighlight(t *testing.T) {
	tabs, ids := openThree(t)

	tabs.SetHighlight(ids[0], &Range{Start: 0, End: 1})
	a, _ := tabs.Get(ids[0])
	b, _ := tabs.Get(ids[1])
	assert.Equal(t, &Range{Start: 0, End: 1}, a.Highlight)
	assert.Nil(t, b.Highlight)
	assert.Equal(t, ids[2], tabs.ActiveID())

	tabs.SetHighlight(ids[0], nil)
	a, _ = tabs.Get(ids[0])
	assert.Nil(t, a.Highlight)

	assert.NotPanics(t, func() { tabs.SetHighlight("missing", &Range{}) })
}

func TestSetActive(t *testing.T) {
	tabs, ids := openThree(t)
	before := tabs.Tabs()

	tabs.SetActive(ids[0])
	assert.Equal(t, ids[0], tabs.ActiveID())
	assert.Equal(t, before, tabs.Tabs())

	tabs.SetActive("missing")
	assert.Equal(t, ids[0], tabs.ActiveID())

	tabs.Cycle(-1)
	assert.Equal(t, ids[2], tabs.ActiveID())
	tabs.Cycle(1)
	assert.Equal(t, ids[0], tabs.ActiveID())

	assert.True(t, tabs.ActivateIndex(1))
	assert.Equal(t, ids[1], tabs.ActiveID())
	assert.False(t, tabs.ActivateIndex(3))
}

func TestSubscribe(t *testing.T) {
	tabs := New(sequentialIDs())

	var got []Event
	unsubscribe := tabs.Subscribe(func(ev Event) {
		// the pointer is already updated when listeners run
		active, ok := tabs.Active()
		require.True(t, ok || ev.Type == EventClosed)
		if ok {
			assert.Equal(t, ev.ActiveID, active.ID)
		}
		got = append(got, ev)
	})

	a := tabs.OpenOrFocus("A", "t", "", "x", nil)
	tabs.OpenOrFocus("A", "t2", "", "y", nil)
	tabs.SetHighlight(a, &Range{Start: 0, End: 1})
	tabs.Close(a)

	unsubscribe()
	tabs.OpenOrFocus("B", "", "", "", nil)

	require.Len(t, got, 4)
	assert.Equal(t, EventOpened, got[0].Type)
	assert.Equal(t, EventUpdated, got[1].Type)
	assert.Equal(t, "t2", got[1].Tab.Title)
	assert.Equal(t, EventHighlighted, got[2].Type)
	assert.Equal(t, EventClosed, got[3].Type)
	assert.Empty(t, got[3].ActiveID)
}
