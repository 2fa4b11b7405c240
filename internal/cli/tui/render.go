package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/bunko/bunko/pkg/chatcontext"
	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/viewer"
)

// chatLine is one entry of the chat transcript
type chatLine struct {
	Role        string // "user", "assistant", "system", "banner"
	Text        string
	Parts       []citation.RenderPart
	Notice      string
	Interrupted bool
}

// citationsOf returns the citation parts of an answer in reading order.
// Badge numbers and /cite indexes are positions in this slice, from 1.
func citationsOf(parts []citation.RenderPart) []citation.RenderPart {
	var out []citation.RenderPart
	for _, p := range parts {
		if p.IsCitation() {
			out = append(out, p)
		}
	}
	return out
}

// answerMarkdown replaces each marker with its badge number
func answerMarkdown(parts []citation.RenderPart) string {
	var sb strings.Builder
	n := 0
	for _, p := range parts {
		if !p.IsCitation() {
			sb.WriteString(p.Text)
			continue
		}
		n++
		fmt.Fprintf(&sb, "[%d]", n)
	}
	return sb.String()
}

// renderFootnotes lists the citations of an answer below it
func (m *Model) renderFootnotes(parts []citation.RenderPart) []string {
	var lines []string
	for i, p := range citationsOf(parts) {
		label := citation.Label(p)
		var styled string
		switch {
		case p.Resolved == nil:
			styled = m.styles.CitationUnresolved.Render(label) + m.styles.SystemMessage.Render(" not among this turn's sources")
		case p.Resolved.Kind == citation.SourceWeb:
			styled = m.styles.CitationWeb.Render(label) + " " + m.styles.SystemMessage.Render(p.Resolved.URL)
		default:
			styled = m.styles.Citation.Render(label)
		}
		lines = append(lines, fmt.Sprintf("  %s %s", m.styles.HelpDesc.Render(fmt.Sprintf("[%d]", i+1)), styled))
	}
	return lines
}

// renderMessages renders the whole transcript for the chat viewport
func (m *Model) renderMessages() string {
	var lines []string
	contentWidth := m.chat.Width - 8
	if contentWidth < 20 {
		contentWidth = 20
	}

	for _, msg := range m.lines {
		switch msg.Role {
		case "banner":
			lines = append(lines, msg.Text)

		case "user":
			prompt := m.styles.UserPrompt.Render("you> ")
			lines = append(lines, prompt+m.styles.UserMessage.Render(wrapText(msg.Text, contentWidth)))
			lines = append(lines, "")

		case "assistant":
			prompt := m.styles.AssistantPrompt.Render("文庫> ")
			body := m.renderMarkdown(answerMarkdown(msg.Parts), contentWidth)
			if body == "" && m.streaming {
				body = m.styles.SystemMessage.Render("…")
			}
			for i, line := range strings.Split(body, "\n") {
				if i == 0 {
					line = prompt + line
				}
				lines = append(lines, line)
			}
			if msg.Interrupted {
				lines = append(lines, m.styles.SystemMessage.Render("[interrupted]"))
			}
			if msg.Notice != "" {
				lines = append(lines, m.styles.Notice.Render("! "+msg.Notice))
			}
			lines = append(lines, m.renderFootnotes(msg.Parts)...)
			lines = append(lines, "")

		case "system":
			lines = append(lines, m.styles.SystemMessage.Render(wrapText(msg.Text, contentWidth)))
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}

func (m *Model) renderMarkdown(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return wrapText(text, width)
}

// renderDocument renders a tab for the document viewport and returns the
// line the highlight starts on (0 without a highlight)
func (m *Model) renderDocument(tab viewer.Tab, width int) (string, int) {
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)

	author := tab.Author
	if author == "" {
		author = "不明"
	}
	header := m.styles.DocTitle.Render(tab.Title) + m.styles.SystemMessage.Render(" / "+author)

	if tab.Highlight == nil || tab.Highlight.Empty() {
		return header + "\n\n" + wrap.Render(tab.Content), 0
	}

	before, highlighted, after := tab.Highlight.Split(tab.Content)
	body := before + m.styles.Highlight.Render(highlighted) + after

	line := 0
	if before != "" {
		line = lipgloss.Height(wrap.Render(before)) - 1
	}
	// two header lines precede the body
	return header + "\n\n" + wrap.Render(body), line + 2
}

// renderTabBar renders the open tabs, numbered for /tab
func (m *Model) renderTabBar() string {
	var items []string
	for i, t := range m.tabs {
		label := fmt.Sprintf("%d %s", i+1, truncate(t.Title, 16))
		if m.hasActive && t.ID == m.active.ID {
			items = append(items, m.styles.TabActive.Render(label))
		} else {
			items = append(items, m.styles.TabInactive.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

// renderContextBar shows what the next question will carry
func (m *Model) renderContextBar() string {
	if len(m.contextItems) == 0 {
		return m.styles.ContextBar.Render("context: none")
	}
	parts := []string{m.styles.ContextBar.Render("context:")}
	for _, item := range m.contextItems {
		parts = append(parts, m.styles.ContextItem.Render(contextLabel(item)))
	}
	return strings.Join(parts, " ")
}

func contextLabel(item chatcontext.Item) string {
	switch item.Kind {
	case chatcontext.KindSelection:
		return fmt.Sprintf("✂ %s (%d字)", truncate(item.Title, 12), utf8.RuneCountInString(item.Content))
	default:
		return "📄 " + truncate(item.Title, 20)
	}
}

// wrapText wraps text to width terminal cells. Lines without spaces, which
// is most Japanese prose, are broken at the width.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
