package citation

import (
	"net/url"
	"strings"
	"sync/atomic"
)

// Registry maps citation keys to resolved citations for one search turn.
// A Registry is immutable once built; a new search produces a new Registry.
type Registry struct {
	entries []ResolvedCitation
	byKey   map[string]int

	// archive indexes, first-seen wins
	byTitleAuthor map[string]int
	byTitle       map[string]int

	// web indexes, first-seen wins
	webByTitle map[string]int
	webByURL   map[string]int
}

// Build creates a registry from snippets. Snippets sharing a key collapse onto
// the first one seen, so lookups are deterministic for a given input order.
func Build(snippets []SourceSnippet) *Registry {
	r := newRegistry(len(snippets))

	for _, s := range snippets {
		key := KeyFor(s)
		if _, exists := r.byKey[key]; exists {
			continue
		}

		idx := len(r.entries)
		r.entries = append(r.entries, resolve(s))
		r.byKey[key] = idx

		title := normalizeTitle(s.Title)
		switch s.Kind {
		case SourceWeb:
			if title != "" {
				setFirst(r.webByTitle, title, idx)
			}
			if u := normalizeURL(s.URL); u != "" {
				setFirst(r.webByURL, u, idx)
			}
		default:
			if title == "" {
				continue
			}
			setFirst(r.byTitle, title, idx)
			setFirst(r.byTitleAuthor, titleAuthorKey(title, normalizeTitle(s.Author)), idx)
		}
	}

	return r
}

// Empty returns a registry that resolves nothing
func Empty() *Registry {
	return newRegistry(0)
}

func newRegistry(n int) *Registry {
	return &Registry{
		entries:       make([]ResolvedCitation, 0, n),
		byKey:         make(map[string]int, n),
		byTitleAuthor: make(map[string]int),
		byTitle:       make(map[string]int),
		webByTitle:    make(map[string]int),
		webByURL:      make(map[string]int),
	}
}

// Lookup resolves a marker's fields.
//
// Archive markers try an exact (title, author) match first and then fall back
// to the first snippet with the same title. The fallback can pick the wrong
// source when two works share a title; that ambiguity is accepted.
// Web markers match by title; when no title matches, the marker text is tried
// as a URL since models sometimes cite the link instead of the page title.
func (r *Registry) Lookup(kind SourceKind, title, author string) (ResolvedCitation, bool) {
	if r == nil {
		return ResolvedCitation{}, false
	}

	t := normalizeTitle(title)

	if kind == SourceWeb {
		if t == "" {
			return ResolvedCitation{}, false
		}
		if c, ok := r.at(r.webByTitle, t); ok {
			return c, true
		}
		return r.at(r.webByURL, normalizeURL(t))
	}

	if t == "" {
		return ResolvedCitation{}, false
	}
	if a := normalizeTitle(author); a != "" {
		if c, ok := r.at(r.byTitleAuthor, titleAuthorKey(t, a)); ok {
			return c, true
		}
	}
	return r.at(r.byTitle, t)
}

// LookupURL resolves a web citation by URL
func (r *Registry) LookupURL(rawURL string) (ResolvedCitation, bool) {
	if r == nil {
		return ResolvedCitation{}, false
	}
	return r.at(r.webByURL, normalizeURL(rawURL))
}

// LookupMarker resolves a parsed marker
func (r *Registry) LookupMarker(m Marker) (ResolvedCitation, bool) {
	if m.Kind == SourceWeb && strings.TrimSpace(m.Title) == "" {
		return ResolvedCitation{}, false
	}
	return r.Lookup(m.Kind, m.Title, m.Author)
}

// Get returns the citation stored under key
func (r *Registry) Get(key string) (ResolvedCitation, bool) {
	if r == nil {
		return ResolvedCitation{}, false
	}
	return r.at(r.byKey, key)
}

// Len returns the number of distinct citations
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of all citations in input order
func (r *Registry) Entries() []ResolvedCitation {
	if r == nil {
		return nil
	}
	out := make([]ResolvedCitation, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) at(index map[string]int, key string) (ResolvedCitation, bool) {
	idx, ok := index[key]
	if !ok {
		return ResolvedCitation{}, false
	}
	return r.entries[idx], true
}

// KeyFor returns the registry key of a snippet: the document id for archive
// sources, the normalized URL (or title) for web sources.
func KeyFor(s SourceSnippet) string {
	if s.Kind == SourceWeb {
		if u := normalizeURL(s.URL); u != "" {
			return "web:" + u
		}
		return "web:" + normalizeTitle(s.Title)
	}
	if s.DocumentID != "" {
		return s.DocumentID
	}
	return "archive:" + titleAuthorKey(normalizeTitle(s.Title), normalizeTitle(s.Author))
}

func resolve(s SourceSnippet) ResolvedCitation {
	display := s.ContextText
	if display == "" {
		display = s.Text
	}
	var offsets *TextRange
	if s.Offsets != nil {
		o := *s.Offsets
		offsets = &o
	}
	return ResolvedCitation{
		Kind:        s.Kind,
		Title:       s.Title,
		Author:      s.Author,
		DocumentID:  s.DocumentID,
		URL:         s.URL,
		DisplayText: display,
		Offsets:     offsets,
	}
}

func setFirst(index map[string]int, key string, idx int) {
	if _, exists := index[key]; !exists {
		index[key] = idx
	}
}

func titleAuthorKey(title, author string) string {
	return title + "\x00" + author
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Holder owns the current registry and swaps it atomically, so readers see
// either the previous turn's registry or the new one, never a mix.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a holder with an empty registry
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(Empty())
	return h
}

// Replace builds a registry from snippets and makes it current
func (h *Holder) Replace(snippets []SourceSnippet) *Registry {
	r := Build(snippets)
	h.current.Store(r)
	return r
}

// Reset drops all citations
func (h *Holder) Reset() {
	h.current.Store(Empty())
}

// Current returns the registry in effect. It is never nil.
func (h *Holder) Current() *Registry {
	if r := h.current.Load(); r != nil {
		return r
	}
	return Empty()
}
