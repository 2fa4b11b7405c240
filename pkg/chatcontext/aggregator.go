// Package chatcontext holds the reader's active context (the document being
// viewed and the passage selected in it) and renders it for the next prompt.
package chatcontext

import (
	"strings"
	"unicode/utf8"
)

// Kind of a context item
type Kind string

const (
	KindDocument  Kind = "document"
	KindSelection Kind = "selection"
)

// DefaultMaxExcerptRunes bounds the content of each item
const DefaultMaxExcerptRunes = 2000

const ellipsis = "…"

// Item is one piece of context. Fields are copies; items never reference tabs.
type Item struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	Content    string `json:"content"`
}

// ItemID derives the id of an item from its kind and document
func ItemID(kind Kind, documentID string) string {
	return string(kind) + "-" + documentID
}

// Listener is called with the items after every change
type Listener func(items []Item)

// Aggregator keeps at most one document item and one selection item.
// Setting either kind replaces the previous one. Not safe for concurrent use.
type Aggregator struct {
	document  *Item
	selection *Item

	maxRunes  int
	listeners map[int]Listener
	nextSub   int
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithMaxExcerptRunes sets the content bound; n <= 0 disables truncation
func WithMaxExcerptRunes(n int) Option {
	return func(a *Aggregator) {
		a.maxRunes = n
	}
}

// New creates an empty aggregator
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		maxRunes:  DefaultMaxExcerptRunes,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetDocumentContext replaces the document item
func (a *Aggregator) SetDocumentContext(documentID, title, author, excerpt string) {
	a.document = &Item{
		ID:         ItemID(KindDocument, documentID),
		Kind:       KindDocument,
		DocumentID: documentID,
		Title:      title,
		Subtitle:   author,
		Content:    a.truncate(excerpt),
	}
	a.notify()
}

// ClearDocumentContext drops the document item
func (a *Aggregator) ClearDocumentContext() {
	if a.document == nil {
		return
	}
	a.document = nil
	a.notify()
}

// SetSelectionContext replaces the selection item. Callers reject blank
// selections before calling.
func (a *Aggregator) SetSelectionContext(documentID, title, selectedText string) {
	a.selection = &Item{
		ID:         ItemID(KindSelection, documentID),
		Kind:       KindSelection,
		DocumentID: documentID,
		Title:      title,
		Content:    a.truncate(selectedText),
	}
	a.notify()
}

// ClearSelectionContext drops the selection item
func (a *Aggregator) ClearSelectionContext() {
	if a.selection == nil {
		return
	}
	a.selection = nil
	a.notify()
}

// RemoveContext drops the item with id, whatever its kind
func (a *Aggregator) RemoveContext(id string) {
	removed := false
	if a.document != nil && a.document.ID == id {
		a.document = nil
		removed = true
	}
	if a.selection != nil && a.selection.ID == id {
		a.selection = nil
		removed = true
	}
	if removed {
		a.notify()
	}
}

// ClearAll drops every item
func (a *Aggregator) ClearAll() {
	if a.document == nil && a.selection == nil {
		return
	}
	a.document = nil
	a.selection = nil
	a.notify()
}

// Items returns the held items, document first
func (a *Aggregator) Items() []Item {
	items := make([]Item, 0, 2)
	if a.document != nil {
		items = append(items, *a.document)
	}
	if a.selection != nil {
		items = append(items, *a.selection)
	}
	return items
}

// Document returns the document item
func (a *Aggregator) Document() (Item, bool) {
	if a.document == nil {
		return Item{}, false
	}
	return *a.document, true
}

// Selection returns the selection item
func (a *Aggregator) Selection() (Item, bool) {
	if a.selection == nil {
		return Item{}, false
	}
	return *a.selection, true
}

// Len returns the number of held items (0..2)
func (a *Aggregator) Len() int {
	n := 0
	if a.document != nil {
		n++
	}
	if a.selection != nil {
		n++
	}
	return n
}

// Serialize renders the items as labeled blocks, document before selection,
// separated by a blank line. It returns "" when nothing is held.
func (a *Aggregator) Serialize() string {
	items := a.Items()
	if len(items) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(items))
	for _, item := range items {
		blocks = append(blocks, renderItem(item))
	}
	return strings.Join(blocks, "\n\n")
}

func renderItem(item Item) string {
	var sb strings.Builder
	switch item.Kind {
	case KindDocument:
		sb.WriteString("【参照中の作品】\n")
		sb.WriteString("作品: " + item.Title + "\n")
		sb.WriteString("著者: " + item.Subtitle + "\n")
		sb.WriteString("抜粋:\n")
		sb.WriteString(item.Content)
	case KindSelection:
		sb.WriteString("【選択されたテキスト - " + item.Title + "より】\n")
		sb.WriteString(item.Content)
	}
	return sb.String()
}

// Subscribe registers a listener and returns a function that removes it
func (a *Aggregator) Subscribe(l Listener) func() {
	id := a.nextSub
	a.nextSub++
	a.listeners[id] = l
	return func() {
		delete(a.listeners, id)
	}
}

func (a *Aggregator) notify() {
	if len(a.listeners) == 0 {
		return
	}
	items := a.Items()
	for i := 0; i < a.nextSub; i++ {
		if l, ok := a.listeners[i]; ok {
			l(items)
		}
	}
}

func (a *Aggregator) truncate(s string) string {
	if a.maxRunes <= 0 || utf8.RuneCountInString(s) <= a.maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:a.maxRunes]) + ellipsis
}
