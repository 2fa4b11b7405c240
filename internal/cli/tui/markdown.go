package tui

import (
	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders answer paragraphs for the terminal
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	style    string
	width    int
}

// NewMarkdownRenderer creates a renderer. style is a glamour standard style
// name; an explicit style avoids terminal color detection escape sequences.
func NewMarkdownRenderer(style string, width int) (*MarkdownRenderer, error) {
	if style == "" {
		style = "dark"
	}
	m := &MarkdownRenderer{style: style}
	if err := m.UpdateWidth(width); err != nil {
		return nil, err
	}
	return m, nil
}

// Render renders markdown content to styled terminal output
func (m *MarkdownRenderer) Render(content string) (string, error) {
	return m.renderer.Render(content)
}

// UpdateWidth updates the word wrap width
func (m *MarkdownRenderer) UpdateWidth(width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	m.renderer = r
	m.width = width
	return nil
}
