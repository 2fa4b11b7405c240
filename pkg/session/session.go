// Package session runs one reader's conversation: it asks questions, resolves
// the citations in answers, and keeps the open documents and active context
// in step.
//
// Handlers take the session lock for every state change and release it
// around network calls, so state is only ever touched by one handler at a
// time while slow I/O from different handlers can overlap.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/bunko/bunko/pkg/chatcontext"
	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/inference"
	"github.com/bunko/bunko/pkg/logging"
	"github.com/bunko/bunko/pkg/metrics"
	"github.com/bunko/bunko/pkg/prompt"
	"github.com/bunko/bunko/pkg/search"
	"github.com/bunko/bunko/pkg/stream"
	"github.com/bunko/bunko/pkg/viewer"
)

var (
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrSuperseded     = errors.New("document request superseded")
	ErrNoActiveTab    = errors.New("no document is open")
	ErrNotOpenable    = errors.New("citation has no archive document")
	ErrNoProvider     = errors.New("no inference provider configured")
	ErrMissingSources = errors.New("session requires a searcher and a document fetcher")
)

// Message is one entry of the conversation
type Message struct {
	ID        string
	Role      string
	Text      string
	Parts     []citation.RenderPart // assistant messages only
	Sources   []citation.SourceSnippet
	Notice    string // inline notice such as a search failure
	CreatedAt time.Time
}

// Config wires a session to its collaborators
type Config struct {
	ID       string // generated when empty
	Searcher search.Searcher
	Fetcher  search.DocumentFetcher
	Provider inference.Provider
	Builder  *prompt.Builder

	// Search carries k/include_web/timeout defaults; Query is ignored
	Search search.Request

	Bus             *events.Bus
	Metrics         *metrics.Recorder
	Logger          logging.Logger
	MaxExcerptRunes int
	TabIDs          func() string
}

// Session is a single conversation with its viewer and context state
type Session struct {
	id       string
	searcher search.Searcher
	fetcher  search.DocumentFetcher
	provider inference.Provider
	builder  *prompt.Builder
	defaults search.Request
	bus      *events.Bus
	metrics  *metrics.Recorder
	logger   logging.Logger

	mu       sync.Mutex
	registry *citation.Holder
	tabs     *viewer.Tabs
	context  *chatcontext.Aggregator
	history  []Message
	pending  map[string]string // documentID -> token of the newest open request

	fetches singleflight.Group
}

// New creates a session
func New(cfg Config) (*Session, error) {
	if cfg.Searcher == nil || cfg.Fetcher == nil {
		return nil, ErrMissingSources
	}
	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Builder == nil {
		b, err := prompt.NewBuilder("")
		if err != nil {
			return nil, err
		}
		cfg.Builder = b
	}
	if cfg.Search.KInternal == 0 {
		cfg.Search = search.NewRequest("")
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	var tabOpts []viewer.Option
	if cfg.TabIDs != nil {
		tabOpts = append(tabOpts, viewer.WithIDGenerator(cfg.TabIDs))
	}
	var ctxOpts []chatcontext.Option
	if cfg.MaxExcerptRunes != 0 {
		ctxOpts = append(ctxOpts, chatcontext.WithMaxExcerptRunes(cfg.MaxExcerptRunes))
	}

	s := &Session{
		id:       cfg.ID,
		searcher: cfg.Searcher,
		fetcher:  cfg.Fetcher,
		provider: cfg.Provider,
		builder:  cfg.Builder,
		defaults: cfg.Search,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With(logging.String("session_id", cfg.ID)),
		registry: citation.NewHolder(),
		tabs:     viewer.New(tabOpts...),
		context:  chatcontext.New(ctxOpts...),
		pending:  make(map[string]string),
	}

	s.tabs.Subscribe(s.onTabEvent)
	s.context.Subscribe(s.onContextChange)

	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers an event handler. Handlers run synchronously, often
// with the session lock held, and must not call back into the session.
func (s *Session) Subscribe(h events.Handler) func() {
	return s.bus.Subscribe(h)
}

// Ask searches for question, streams the answer and resolves its citations
// against this turn's results. onUnit receives each renderable unit as it
// completes, already resolved. A failed search does not fail the turn; the
// model is told about it and the message carries a notice.
func (s *Session) Ask(ctx context.Context, question string, onUnit func(unit string, parts []citation.RenderPart)) (*Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	userID := uuid.New().String()
	s.mu.Lock()
	history := toInference(s.history)
	bundle := s.context.Serialize()
	s.history = append(s.history, Message{
		ID:        userID,
		Role:      inference.RoleUser,
		Text:      question,
		CreatedAt: time.Now(),
	})
	s.mu.Unlock()

	log := s.logger.WithContext(ctx)

	req := s.defaults
	req.Query = question
	start := time.Now()
	resp, searchErr := s.searcher.Search(ctx, req)

	var (
		snippets []citation.SourceSnippet
		notice   string
		registry *citation.Registry
	)
	if searchErr != nil {
		s.metrics.Search(start, searchErr)
		s.registry.Reset()
		registry = s.registry.Current()
		notice = fmt.Sprintf("検索エラー: %v", searchErr)
		log.Warn("search failed", logging.Err(searchErr))
		s.publish(ctx, events.TypeSearchFailed, map[string]any{"query": question, "error": searchErr.Error()})
	} else {
		s.metrics.Search(start, nil, resp.Errors...)
		snippets = resp.Snippets()
		registry = s.registry.Replace(snippets)
		if len(resp.Errors) > 0 {
			log.Warn("search returned partial errors", logging.Any("errors", resp.Errors))
		}
		s.publish(ctx, events.TypeSearchCompleted, map[string]any{
			"query":          question,
			"aozora_results": len(resp.AozoraResults),
			"web_results":    len(resp.WebResults),
			"citations":      registry.Len(),
		})
	}

	chatReq, err := s.builder.Build(prompt.Input{
		Question:      question,
		Snippets:      snippets,
		SearchError:   searchErr,
		ContextBundle: bundle,
		History:       history,
	})
	if err != nil {
		s.dropMessage(userID)
		return nil, err
	}

	answerStart := time.Now()
	text, err := s.stream(ctx, chatReq, registry, onUnit)
	s.metrics.Answer(s.provider.Name(), answerStart, err)
	if err != nil {
		// an unanswered question would leave two user turns in a row
		s.dropMessage(userID)
		log.Error("answer failed", logging.Err(err))
		return nil, err
	}

	parts := citation.ResolveText(text, registry)
	s.recordCitations(parts)

	msg := Message{
		ID:        uuid.New().String(),
		Role:      inference.RoleAssistant,
		Text:      text,
		Parts:     parts,
		Sources:   snippets,
		Notice:    notice,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()

	resolved, unresolved := citation.Stats(parts)
	s.publish(ctx, events.TypeAnswerCompleted, map[string]any{
		"message_id": msg.ID,
		"resolved":   resolved,
		"unresolved": unresolved,
		"duration":   time.Since(answerStart).String(),
	})

	return &msg, nil
}

// dropMessage removes the message with id from history if it is still there
func (s *Session) dropMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return
		}
	}
}

func (s *Session) stream(ctx context.Context, req inference.ChatRequest, registry *citation.Registry, onUnit func(string, []citation.RenderPart)) (string, error) {
	st, err := s.provider.ChatStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}

	text, err := stream.Drain(ctx, st, func(unit string) {
		if onUnit != nil {
			onUnit(unit, citation.ResolveText(unit, registry))
		}
	})
	if err != nil {
		return text, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}
	return text, nil
}

func (s *Session) recordCitations(parts []citation.RenderPart) {
	counts := map[citation.SourceKind][2]int{}
	for _, p := range parts {
		if !p.IsCitation() {
			continue
		}
		c := counts[p.Marker.Kind]
		if p.Resolved != nil {
			c[0]++
		} else {
			c[1]++
		}
		counts[p.Marker.Kind] = c
	}
	for kind, c := range counts {
		s.metrics.Citations(string(kind), c[0], c[1])
	}
}

// OpenDocument fetches a document and shows it in a tab. When a newer request
// for the same document was issued while this one was in flight, the result
// is dropped and ErrSuperseded returned; callers treat that as a no-op.
// Fetch failures leave tabs and context untouched.
func (s *Session) OpenDocument(ctx context.Context, documentID string, highlight *viewer.Range) (viewer.Tab, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return viewer.Tab{}, fmt.Errorf("%w: empty document id", search.ErrInvalidRequest)
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.pending[documentID] = token
	s.mu.Unlock()

	// later callers join this fetch, so it must outlive the first caller's ctx
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.fetches.Do(documentID, func() (interface{}, error) {
		return s.fetcher.FetchDocument(fetchCtx, documentID)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[documentID] != token {
		s.metrics.StaleDropped()
		s.logger.Debug("dropping stale document response", logging.String("document_id", documentID))
		s.publish(ctx, events.TypeDocumentStale, map[string]any{"document_id": documentID})
		return viewer.Tab{}, ErrSuperseded
	}
	delete(s.pending, documentID)

	if err != nil {
		s.metrics.DocumentFetch("error")
		s.logger.Warn("failed to fetch document", logging.String("document_id", documentID), logging.Err(err))
		s.publish(ctx, events.TypeDocumentFailed, map[string]any{"document_id": documentID, "error": err.Error()})
		if !errors.Is(err, search.ErrUpstream) {
			err = fmt.Errorf("%w: %w", search.ErrUpstream, err)
		}
		return viewer.Tab{}, err
	}
	s.metrics.DocumentFetch("ok")

	doc := v.(*search.WorkText)
	tabID := s.tabs.OpenOrFocus(documentID, doc.Title, doc.Author, doc.Text, highlight)
	s.syncDocumentContext()

	tab, _ := s.tabs.Get(tabID)
	return tab, nil
}

// OpenCitation opens the document behind an archive citation with the cited
// passage highlighted
func (s *Session) OpenCitation(ctx context.Context, c citation.ResolvedCitation) (viewer.Tab, error) {
	if c.Kind != citation.SourceArchive || c.DocumentID == "" {
		return viewer.Tab{}, ErrNotOpenable
	}
	var highlight *viewer.Range
	if c.Offsets != nil {
		highlight = &viewer.Range{Start: c.Offsets.Start, End: c.Offsets.End}
	}
	return s.OpenDocument(ctx, c.DocumentID, highlight)
}

// Select sets the selection context to text from the active document.
// Blank text clears the selection.
func (s *Session) Select(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		s.context.ClearSelectionContext()
		return nil
	}
	tab, ok := s.tabs.Active()
	if !ok {
		return ErrNoActiveTab
	}
	s.context.SetSelectionContext(tab.DocumentID, tab.Title, text)
	return nil
}

// SelectRange highlights r in the active document and selects its text
func (s *Session) SelectRange(r viewer.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.tabs.Active()
	if !ok {
		return ErrNoActiveTab
	}
	s.tabs.SetHighlight(tab.ID, &r)
	tab, _ = s.tabs.Get(tab.ID)

	text := tab.HighlightedText()
	if strings.TrimSpace(text) == "" {
		s.context.ClearSelectionContext()
	} else {
		s.context.SetSelectionContext(tab.DocumentID, tab.Title, text)
	}
	s.syncDocumentContext()
	return nil
}

// ClearSelection drops the selection context and the active highlight
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id := s.tabs.ActiveID(); id != "" {
		s.tabs.SetHighlight(id, nil)
	}
	s.context.ClearSelectionContext()
	s.syncDocumentContext()
}

// CloseTab closes a tab. Unknown ids are ignored.
func (s *Session) CloseTab(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.tabs.Get(tabID)
	if !ok {
		return
	}
	s.tabs.Close(tabID)

	if sel, ok := s.context.Selection(); ok && sel.DocumentID == tab.DocumentID {
		s.context.ClearSelectionContext()
	}
	s.syncDocumentContext()
}

// FocusTab activates a tab. Unknown ids are ignored.
func (s *Session) FocusTab(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tabs.SetActive(tabID)
	s.syncDocumentContext()
}

// FocusIndex activates the tab at position i
func (s *Session) FocusIndex(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.tabs.ActivateIndex(i)
	s.syncDocumentContext()
	return ok
}

// CycleTab moves focus by delta tabs
func (s *Session) CycleTab(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tabs.Cycle(delta)
	s.syncDocumentContext()
}

// RemoveContext drops one context item by id
func (s *Session) RemoveContext(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context.RemoveContext(id)
}

// ClearContext drops every context item. Tabs stay open.
func (s *Session) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context.ClearAll()
}

// Reset forgets the conversation and its citations. Tabs stay open.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.registry.Reset()
}

// syncDocumentContext makes the document context follow the active tab.
// Callers hold s.mu.
func (s *Session) syncDocumentContext() {
	tab, ok := s.tabs.Active()
	if !ok {
		s.context.ClearDocumentContext()
		return
	}
	excerpt := tab.HighlightedText()
	if strings.TrimSpace(excerpt) == "" {
		excerpt = tab.Content
	}
	s.context.SetDocumentContext(tab.DocumentID, tab.Title, tab.Author, excerpt)
}

// Tabs returns the open tabs in display order
func (s *Session) Tabs() []viewer.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs.Tabs()
}

// ActiveTab returns the focused tab
func (s *Session) ActiveTab() (viewer.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs.Active()
}

// ContextItems returns the active context
func (s *Session) ContextItems() []chatcontext.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context.Items()
}

// ContextBundle returns the serialized context the next question will carry
func (s *Session) ContextBundle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context.Serialize()
}

// History returns a copy of the conversation
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Registry returns the citations of the latest turn
func (s *Session) Registry() *citation.Registry {
	return s.registry.Current()
}

// Close releases the event sinks
func (s *Session) Close() error {
	return s.bus.Close()
}

func (s *Session) onTabEvent(ev viewer.Event) {
	var t events.Type
	switch ev.Type {
	case viewer.EventOpened:
		t = events.TypeTabOpened
	case viewer.EventClosed:
		t = events.TypeTabClosed
	case viewer.EventActivated:
		t = events.TypeTabActivated
	default:
		t = events.TypeTabUpdated
	}
	s.metrics.OpenTabs(s.id, s.tabs.Len())
	s.publish(context.Background(), t, map[string]any{
		"tab_id":      ev.Tab.ID,
		"document_id": ev.Tab.DocumentID,
		"title":       ev.Tab.Title,
		"active_id":   ev.ActiveID,
	})
}

func (s *Session) onContextChange(items []chatcontext.Item) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	s.publish(context.Background(), events.TypeContextChanged, map[string]any{"items": ids})
}

func (s *Session) publish(ctx context.Context, t events.Type, payload map[string]any) {
	s.bus.Publish(ctx, events.New(t, s.id, payload))
}

func toInference(history []Message) []inference.Message {
	out := make([]inference.Message, 0, len(history))
	for _, m := range history {
		if m.Role != inference.RoleUser && m.Role != inference.RoleAssistant {
			continue
		}
		out = append(out, inference.Message{Role: m.Role, Content: m.Text})
	}
	return out
}
