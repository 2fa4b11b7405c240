// Package viewer manages the open document tabs of a reading session.
package viewer

import (
	"github.com/google/uuid"
)

// Tab is one open document. ID is stable for the tab's lifetime; DocumentID
// is the business key and is unique across open tabs.
type Tab struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Content    string `json:"content"`
	Highlight  *Range `json:"highlight,omitempty"`
}

// HighlightedText returns the highlighted part of the content, if any
func (t Tab) HighlightedText() string {
	if t.Highlight == nil {
		return ""
	}
	return t.Highlight.Text(t.Content)
}

func (t *Tab) snapshot() Tab {
	c := *t
	c.Highlight = copyRange(t.Highlight)
	return c
}

// EventType names a tab mutation
type EventType string

const (
	EventOpened      EventType = "opened"
	EventUpdated     EventType = "updated"
	EventClosed      EventType = "closed"
	EventActivated   EventType = "activated"
	EventHighlighted EventType = "highlighted"
)

// Event describes one mutation. Tab is a copy of the affected tab and
// ActiveID is the active tab after the mutation ("" when none).
type Event struct {
	Type     EventType
	Tab      Tab
	ActiveID string
}

// Listener receives tab events
type Listener func(Event)

// Tabs is the tab state machine: an ordered set of tabs plus an optional
// active pointer. It is not safe for concurrent use; the owner serializes
// calls.
type Tabs struct {
	tabs     []*Tab
	activeID string

	listeners map[int]Listener
	nextSub   int
	newID     func() string
}

// Option configures Tabs
type Option func(*Tabs)

// WithIDGenerator overrides tab id generation
func WithIDGenerator(fn func() string) Option {
	return func(t *Tabs) {
		t.newID = fn
	}
}

// New creates an empty tab set
func New(opts ...Option) *Tabs {
	t := &Tabs{
		listeners: make(map[int]Listener),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenOrFocus shows a document. An existing tab for documentID is refreshed
// in place and keeps its id and position; otherwise a new tab is appended.
// Either way the tab becomes active before any listener runs.
func (t *Tabs) OpenOrFocus(documentID, title, author, content string, highlight *Range) string {
	if idx := t.indexByDocument(documentID); idx >= 0 {
		tab := t.tabs[idx]
		tab.Title = title
		tab.Author = author
		tab.Content = content
		tab.Highlight = copyRange(highlight)
		t.activeID = tab.ID
		t.emit(EventUpdated, tab.snapshot())
		return tab.ID
	}

	tab := &Tab{
		ID:         t.newID(),
		DocumentID: documentID,
		Title:      title,
		Author:     author,
		Content:    content,
		Highlight:  copyRange(highlight),
	}
	t.tabs = append(t.tabs, tab)
	t.activeID = tab.ID
	t.emit(EventOpened, tab.snapshot())
	return tab.ID
}

// Close removes a tab. When the active tab is closed the tab now occupying
// its slot becomes active, or the new last tab when it was the last one.
// Unknown ids are ignored.
func (t *Tabs) Close(tabID string) {
	idx := t.indexByID(tabID)
	if idx < 0 {
		return
	}

	removed := t.tabs[idx]
	t.tabs = append(t.tabs[:idx], t.tabs[idx+1:]...)

	switch {
	case len(t.tabs) == 0:
		t.activeID = ""
	case t.activeID == tabID:
		next := idx
		if next > len(t.tabs)-1 {
			next = len(t.tabs) - 1
		}
		t.activeID = t.tabs[next].ID
	}

	t.emit(EventClosed, removed.snapshot())
}

// SetHighlight replaces one tab's highlight; nil clears it. Unknown ids are ignored.
func (t *Tabs) SetHighlight(tabID string, r *Range) {
	idx := t.indexByID(tabID)
	if idx < 0 {
		return
	}
	tab := t.tabs[idx]
	tab.Highlight = copyRange(r)
	t.emit(EventHighlighted, tab.snapshot())
}

// SetActive focuses a tab without touching its content. Unknown ids are ignored.
func (t *Tabs) SetActive(tabID string) {
	idx := t.indexByID(tabID)
	if idx < 0 || t.activeID == tabID {
		return
	}
	t.activeID = tabID
	t.emit(EventActivated, t.tabs[idx].snapshot())
}

// ActivateIndex focuses the tab at position i (0-based)
func (t *Tabs) ActivateIndex(i int) bool {
	if i < 0 || i >= len(t.tabs) {
		return false
	}
	t.SetActive(t.tabs[i].ID)
	return true
}

// Cycle moves focus by delta positions, wrapping around
func (t *Tabs) Cycle(delta int) {
	n := len(t.tabs)
	if n == 0 {
		return
	}
	cur := t.indexByID(t.activeID)
	if cur < 0 {
		cur = 0
	}
	next := ((cur+delta)%n + n) % n
	t.SetActive(t.tabs[next].ID)
}

// Tabs returns copies of the open tabs in display order
func (t *Tabs) Tabs() []Tab {
	out := make([]Tab, 0, len(t.tabs))
	for _, tab := range t.tabs {
		out = append(out, tab.snapshot())
	}
	return out
}

// Active returns the active tab
func (t *Tabs) Active() (Tab, bool) {
	return t.Get(t.activeID)
}

// ActiveID returns the active tab id, "" when no tab is open
func (t *Tabs) ActiveID() string {
	return t.activeID
}

// Get returns a copy of one tab
func (t *Tabs) Get(tabID string) (Tab, bool) {
	idx := t.indexByID(tabID)
	if idx < 0 {
		return Tab{}, false
	}
	return t.tabs[idx].snapshot(), true
}

// FindByDocument returns the tab showing documentID
func (t *Tabs) FindByDocument(documentID string) (Tab, bool) {
	idx := t.indexByDocument(documentID)
	if idx < 0 {
		return Tab{}, false
	}
	return t.tabs[idx].snapshot(), true
}

// IndexOf returns the display position of a tab, -1 if it is not open
func (t *Tabs) IndexOf(tabID string) int {
	return t.indexByID(tabID)
}

// Len returns the number of open tabs
func (t *Tabs) Len() int {
	return len(t.tabs)
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners run synchronously after the state change is complete.
func (t *Tabs) Subscribe(l Listener) func() {
	id := t.nextSub
	t.nextSub++
	t.listeners[id] = l
	return func() {
		delete(t.listeners, id)
	}
}

func (t *Tabs) emit(typ EventType, tab Tab) {
	if len(t.listeners) == 0 {
		return
	}
	ev := Event{Type: typ, Tab: tab, ActiveID: t.activeID}
	for i := 0; i < t.nextSub; i++ {
		if l, ok := t.listeners[i]; ok {
			l(ev)
		}
	}
}

func (t *Tabs) indexByID(tabID string) int {
	if tabID == "" {
		return -1
	}
	for i, tab := range t.tabs {
		if tab.ID == tabID {
			return i
		}
	}
	return -1
}

func (t *Tabs) indexByDocument(documentID string) int {
	for i, tab := range t.tabs {
		if tab.DocumentID == documentID {
			return i
		}
	}
	return -1
}
