package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/session"
	"github.com/bunko/bunko/pkg/viewer"
)

// handleSlashCommand processes slash commands
func (m Model) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	name, args, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)
	fields := strings.Fields(args)

	var cmd tea.Cmd
	switch name {
	case "quit", "exit":
		m.quitting = true
		return m, tea.Quit

	case "clear":
		m.lines = nil
		m.chat.SetContent("")
		return m, nil

	case "help":
		m.addSystemMessage(m.renderHelp())

	case "status":
		m.addSystemMessage(m.statusText())

	case "open":
		cmd = m.cmdOpen(fields)

	case "cite":
		cmd = m.cmdCite(fields)

	case "sources":
		m.addSystemMessage(m.sourcesText())

	case "tab":
		m.cmdTab(fields)

	case "close":
		m.cmdClose(fields)

	case "select":
		m.cmdSelect(args, fields)

	case "unselect":
		m.sess.ClearSelection()

	case "context":
		m.cmdContext(fields)

	case "copy":
		if m.lastAnswer == nil {
			m.addSystemMessage("No answer to copy yet")
			break
		}
		text := citation.PlainText(m.lastAnswer.Parts)
		cmd = func() tea.Msg {
			if err := CopyToClipboard(text); err != nil {
				return ClipboardCopyMsg{What: "Answer", Error: err}
			}
			return ClipboardCopyMsg{Success: true, What: "Answer"}
		}

	case "reset":
		if m.streaming && m.cancelFunc != nil {
			m.cancelFunc()
			m.streaming = false
			m.clearActivity()
		}
		m.sess.Reset()
		m.lastAnswer = nil
		m.lines = nil
		m.refreshState()
		m.layout()
		m.addSystemMessage("Session reset")

	default:
		if c, ok := m.cmdRegistry.GetCommand(name); ok && c.Category == CategoryCustom {
			if m.streaming {
				m.addSystemMessage("Still answering; press Esc to interrupt")
				break
			}
			return m.sendMessage(c.Expand(args))
		}
		m.addSystemMessage(fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name))
	}

	m.refreshChat()
	return m, cmd
}

// cmdOpen handles /open <work-id> [from to]
func (m *Model) cmdOpen(fields []string) tea.Cmd {
	if len(fields) != 1 && len(fields) != 3 {
		m.addSystemMessage("Usage: /open <work-id> [from to]")
		return nil
	}

	var highlight *viewer.Range
	if len(fields) == 3 {
		from, err1 := strconv.Atoi(fields[1])
		to, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			m.addSystemMessage("Usage: /open <work-id> [from to] (offsets are character positions)")
			return nil
		}
		highlight = &viewer.Range{Start: from, End: to}
	}
	return m.openDocument(fields[0], highlight)
}

func (m *Model) openDocument(documentID string, highlight *viewer.Range) tea.Cmd {
	m.setActivity("loading", "Opening "+documentID+"...")
	sess, ctx := m.sess, m.ctx
	return tea.Batch(func() tea.Msg {
		tab, err := sess.OpenDocument(ctx, documentID, highlight)
		return DocumentOpenedMsg{DocumentID: documentID, Tab: tab, Err: err}
	}, DoTick())
}

// cmdCite handles /cite <n>, numbering as the badges of the last answer do
func (m *Model) cmdCite(fields []string) tea.Cmd {
	if m.lastAnswer == nil {
		m.addSystemMessage("No answer to cite from yet")
		return nil
	}
	cites := citationsOf(m.lastAnswer.Parts)
	if len(cites) == 0 {
		m.addSystemMessage("The last answer has no citations")
		return nil
	}

	n := 1
	if len(fields) > 0 {
		v, err := strconv.Atoi(fields[0])
		if err != nil || v < 1 || v > len(cites) {
			m.addSystemMessage(fmt.Sprintf("Usage: /cite <1-%d>", len(cites)))
			return nil
		}
		n = v
	}

	part := cites[n-1]
	switch {
	case part.Resolved == nil:
		m.addSystemMessage(fmt.Sprintf("Citation %d %s was not among this turn's sources", n, citation.Label(part)))
		return nil
	case part.Resolved.Kind == citation.SourceWeb:
		m.addSystemMessage(fmt.Sprintf("Citation %d is a web page: %s", n, part.Resolved.URL))
		return nil
	}

	resolved := *part.Resolved
	m.setActivity("loading", "Opening 『"+resolved.Title+"』...")
	sess, ctx := m.sess, m.ctx
	return tea.Batch(func() tea.Msg {
		tab, err := sess.OpenCitation(ctx, resolved)
		return DocumentOpenedMsg{DocumentID: resolved.DocumentID, Tab: tab, Err: err}
	}, DoTick())
}

// cmdTab handles /tab <n|next|prev>
func (m *Model) cmdTab(fields []string) {
	if len(fields) != 1 {
		m.addSystemMessage(m.tabsText())
		return
	}
	switch fields[0] {
	case "next":
		m.sess.CycleTab(1)
	case "prev":
		m.sess.CycleTab(-1)
	default:
		n, err := strconv.Atoi(fields[0])
		if err != nil || !m.sess.FocusIndex(n-1) {
			m.addSystemMessage(fmt.Sprintf("No tab %s", fields[0]))
		}
	}
}

// cmdClose handles /close [n]
func (m *Model) cmdClose(fields []string) {
	if len(fields) == 0 {
		if !m.hasActive {
			m.addSystemMessage("No document is open")
			return
		}
		m.sess.CloseTab(m.active.ID)
		return
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > len(m.tabs) {
		m.addSystemMessage(fmt.Sprintf("No tab %s", fields[0]))
		return
	}
	m.sess.CloseTab(m.tabs[n-1].ID)
}

// cmdSelect handles /select <from> <to> and /select <text>
func (m *Model) cmdSelect(args string, fields []string) {
	if args == "" {
		m.addSystemMessage("Usage: /select <from> <to> | <text>")
		return
	}

	var err error
	if len(fields) == 2 {
		from, err1 := strconv.Atoi(fields[0])
		to, err2 := strconv.Atoi(fields[1])
		if err1 == nil && err2 == nil {
			err = m.sess.SelectRange(viewer.Range{Start: from, End: to})
		} else {
			err = m.sess.Select(args)
		}
	} else {
		err = m.sess.Select(args)
	}

	if errors.Is(err, session.ErrNoActiveTab) {
		m.addSystemMessage("Open a document before selecting from it")
	} else if err != nil {
		m.addSystemMessage(fmt.Sprintf("Error: %v", err))
	}
}

// cmdContext handles /context [rm <id>|clear]
func (m *Model) cmdContext(fields []string) {
	switch {
	case len(fields) == 0:
		m.addSystemMessage(m.contextText())
	case fields[0] == "clear":
		m.sess.ClearContext()
		m.addSystemMessage("Context cleared")
	case fields[0] == "rm" && len(fields) == 2:
		m.sess.RemoveContext(fields[1])
	default:
		m.addSystemMessage("Usage: /context [rm <id>|clear]")
	}
}

func (m *Model) contextText() string {
	items := m.sess.ContextItems()
	if len(items) == 0 {
		return "No active context. Open a document or select a passage."
	}
	var sb strings.Builder
	sb.WriteString("Active context (sent with the next question):\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "  %s  %s\n", item.ID, contextLabel(item))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) tabsText() string {
	if len(m.tabs) == 0 {
		return "No open documents. Usage: /tab <n|next|prev>"
	}
	var sb strings.Builder
	for i, t := range m.tabs {
		marker := " "
		if m.hasActive && t.ID == m.active.ID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %d. %s / %s (id %s)\n", marker, i+1, t.Title, t.Author, t.DocumentID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) sourcesText() string {
	if m.lastAnswer == nil || len(m.lastAnswer.Sources) == 0 {
		return "No sources for the last answer"
	}
	var sb strings.Builder
	sb.WriteString("Sources of the last answer:\n")
	for i, s := range m.lastAnswer.Sources {
		if s.Kind == citation.SourceWeb {
			fmt.Fprintf(&sb, "  %d. 🌐 %s %s\n", i+1, s.Title, s.URL)
			continue
		}
		fmt.Fprintf(&sb, "  %d. 📖 %s / %s (id %s)\n", i+1, s.Title, s.Author, s.DocumentID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) statusText() string {
	provider := "none"
	if m.provider != nil {
		provider = m.provider.Name()
		if !m.providerReady {
			provider += " (offline)"
		}
	}
	return fmt.Sprintf("Session: %s\nProvider: %s\nArchive: %s\nOpen tabs: %d | Context items: %d",
		m.sess.ID(), provider, m.config.Archive.BaseURL, len(m.tabs), len(m.contextItems))
}

func (m *Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString("=== bunko Commands ===\n")
	category := ""
	for _, c := range m.cmdRegistry.GetAllCommands() {
		if c.Name == "exit" {
			continue
		}
		if c.Category != category {
			category = c.Category
			sb.WriteString("\n" + strings.ToUpper(category[:1]) + category[1:] + ":\n")
		}
		fmt.Fprintf(&sb, "  %-30s %s\n", c.Usage, c.Description)
	}
	sb.WriteString("\nKeys: Ctrl+O switch pane, Ctrl+N/Ctrl+P next/previous tab, Ctrl+W close tab, Esc interrupt")
	return sb.String()
}
