// Package tui is the interactive reading interface: a chat pane whose
// answers carry citation badges, and a document pane with tabs that shows
// cited passages highlighted.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bunko/bunko/pkg/chatcontext"
	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/inference"
	"github.com/bunko/bunko/pkg/logging"
	"github.com/bunko/bunko/pkg/session"
	"github.com/bunko/bunko/pkg/viewer"
)

const answerTimeout = 5 * time.Minute

// Options wires the TUI to a session
type Options struct {
	Session  *session.Session
	Provider inference.Provider
	Config   *config.Config
	Watcher  *config.Watcher // optional
	Logger   logging.Logger
	Version  string
}

// ActivityStatus represents what the session is currently doing
type ActivityStatus struct {
	Active      bool
	Type        string // "searching", "streaming", "loading"
	Description string
	StartTime   time.Time
}

type pane int

const (
	paneChat pane = iota
	paneDocument
)

// Model is the main Bubbletea model for the TUI
type Model struct {
	// UI components
	input  textinput.Model
	chat   viewport.Model
	doc    viewport.Model
	styles Styles
	focus  pane

	// Transcript
	lines      []chatLine
	lastAnswer *session.Message

	// Streaming
	streaming  bool
	streamCh   <-chan tea.Msg
	cancelFunc context.CancelFunc
	activity   ActivityStatus

	// Session state snapshot, refreshed on session events
	tabs         []viewer.Tab
	active       viewer.Tab
	hasActive    bool
	contextItems []chatcontext.Item
	docKey       string

	// Autocomplete
	showSuggestions    bool
	suggestions        []Command
	selectedSuggestion int
	cmdRegistry        *CommandRegistry

	mdRenderer *MarkdownRenderer

	// Infrastructure
	ctx           context.Context
	sess          *session.Session
	provider      inference.Provider
	config        *config.Config
	logger        logging.Logger
	external      chan tea.Msg
	unsubscribe   func()
	providerReady bool
	version       string

	// Terminal
	width  int
	height int
	ready  bool

	quitting bool
}

// New creates the TUI model
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Session == nil {
		return Model{}, errors.New("tui: session is required")
	}
	if opts.Config == nil {
		cfg := config.Default()
		opts.Config = &cfg
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about a work, or /command..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 80

	styles := NewStyles(opts.Config.CLI.Theme)
	mdRenderer, err := NewMarkdownRenderer(styles.MarkdownStyle, 80)
	if err != nil {
		opts.Logger.Warn("markdown rendering disabled", logging.Err(err))
	}

	globalDir, projectDir := config.ConfigPaths()

	// session handlers run under the session lock; only hand the event off
	external := make(chan tea.Msg, 64)
	unsubscribe := opts.Session.Subscribe(func(ev events.Event) {
		select {
		case external <- SessionEventMsg{Event: ev}:
		default:
		}
	})
	if opts.Watcher != nil {
		opts.Watcher.OnChange(func(cfg *config.Config) {
			select {
			case external <- ConfigReloadedMsg{Config: cfg}:
			default:
			}
		})
	}

	m := Model{
		input:       ti,
		chat:        viewport.New(80, 20),
		doc:         viewport.New(40, 20),
		styles:      styles,
		cmdRegistry: NewCommandRegistry(filepath.Join(globalDir, "commands"), filepath.Join(projectDir, "commands")),
		mdRenderer:  mdRenderer,
		ctx:         ctx,
		sess:        opts.Session,
		provider:    opts.Provider,
		config:      opts.Config,
		logger:      opts.Logger,
		external:    external,
		unsubscribe: unsubscribe,
		version:     opts.Version,
	}
	m.refreshState()
	return m, nil
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.checkProvider(),
		waitForExternal(m.external),
	)
}

func (m Model) checkProvider() tea.Cmd {
	provider := m.provider
	return func() tea.Msg {
		if provider == nil {
			return ProviderReadyMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ProviderReadyMsg{Name: provider.Name(), Available: provider.IsAvailable(ctx)}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			if !m.showSuggestions {
				var vpCmd tea.Cmd
				if m.focus == paneDocument {
					m.doc, vpCmd = m.doc.Update(msg)
				} else {
					m.chat, vpCmd = m.chat.Update(msg)
				}
				return m, vpCmd
			}
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		firstRender := !m.ready
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		if firstRender && len(m.lines) == 0 {
			m.lines = append(m.lines, chatLine{
				Role: "banner",
				Text: GetStartupBanner(m.version, msg.Width) + GetWelcomeMessage(),
			})
		}
		m.layout()
		m.input.Width = msg.Width - 4

	case externalMsg:
		next, cmd := m.Update(msg.msg)
		return next, tea.Batch(cmd, waitForExternal(msg.ch))

	case SessionEventMsg:
		m.refreshState()
		if msg.Event.Type == events.TypeTabOpened || msg.Event.Type == events.TypeTabClosed {
			m.layout()
		} else {
			m.refreshDocument()
		}

	case ConfigReloadedMsg:
		m.applyConfig(msg.Config)

	case ProviderReadyMsg:
		m.providerReady = msg.Available
		switch {
		case msg.Name == "":
			m.addSystemMessage("No inference provider configured. Run: bunko config set inference.provider ollama")
		case !msg.Available:
			m.addSystemMessage(fmt.Sprintf("Provider %s is not reachable. Check it with: bunko status", msg.Name))
		}
		m.refreshChat()

	case streamUnitWithContinuation:
		if msg.ch != m.streamCh || !m.streaming {
			// left over from an interrupted answer
			return m, nil
		}
		if m.activity.Type != "streaming" {
			m.setActivity("streaming", "Answering...")
		}
		if last := m.lastLine(); last != nil && last.Role == "assistant" {
			last.Parts = append(last.Parts, msg.Parts...)
		}
		if m.config.CLI.StreamResponse {
			m.refreshChat()
		}
		return m, waitForUnit(msg.ch)

	case AnswerMsg:
		m.finishAnswer(msg)

	case streamClosedMsg:
		if msg.ch == m.streamCh && m.streaming {
			m.streaming = false
			m.clearActivity()
			m.refreshChat()
		}

	case StreamEndMsg:
		if m.streaming {
			m.streaming = false
			m.clearActivity()
			if last := m.lastLine(); last != nil && last.Role == "assistant" && msg.Interrupted {
				last.Interrupted = true
			}
			m.refreshChat()
		}

	case DocumentOpenedMsg:
		m.clearActivityOf("loading")
		switch {
		case errors.Is(msg.Err, session.ErrSuperseded):
			// a later request for the same work won
		case msg.Err != nil:
			m.addSystemMessage(fmt.Sprintf("Failed to open %s: %v", msg.DocumentID, msg.Err))
		default:
			m.refreshState()
			m.layout()
			m.addSystemMessage(fmt.Sprintf("Opened 『%s』", msg.Tab.Title))
		}
		m.refreshChat()

	case ErrorMsg:
		m.addSystemMessage(fmt.Sprintf("Error: %v", msg.Err))
		m.refreshChat()

	case TickMsg:
		if m.activity.Active {
			return m, DoTick()
		}

	case ClipboardCopyMsg:
		if msg.Success {
			m.addSystemMessage(fmt.Sprintf("✓ %s copied to clipboard", msg.What))
		} else {
			m.addSystemMessage(fmt.Sprintf("✗ Failed to copy: %v", msg.Error))
		}
		m.refreshChat()
	}

	var vpCmd tea.Cmd
	m.chat, vpCmd = m.chat.Update(msg)
	cmds = append(cmds, vpCmd)

	var tiCmd tea.Cmd
	m.input, tiCmd = m.input.Update(msg)
	cmds = append(cmds, tiCmd)

	return m, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.streaming {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancelFunc != nil {
				m.cancelFunc()
			}
			return m, func() tea.Msg { return StreamEndMsg{Interrupted: true} }
		}
	}

	if m.showSuggestions {
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedSuggestion > 0 {
				m.selectedSuggestion--
			}
			return m, nil
		case tea.KeyDown:
			if m.selectedSuggestion < len(m.suggestions)-1 {
				m.selectedSuggestion++
			}
			return m, nil
		case tea.KeyTab, tea.KeyEnter:
			if len(m.suggestions) > 0 {
				selected := m.suggestions[m.selectedSuggestion]
				m.input.SetValue("/" + selected.Name + " ")
				m.input.CursorEnd()
				m.hideSuggestions()
				return m, nil
			}
		case tea.KeyEsc:
			m.hideSuggestions()
			return m, nil
		}
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlO:
		if len(m.tabs) > 0 {
			if m.focus == paneChat {
				m.focus = paneDocument
			} else {
				m.focus = paneChat
			}
			m.layout()
		}
		return m, nil

	case tea.KeyCtrlN:
		m.sess.CycleTab(1)
		return m, nil

	case tea.KeyCtrlP:
		m.sess.CycleTab(-1)
		return m, nil

	case tea.KeyCtrlW:
		if m.hasActive {
			m.sess.CloseTab(m.active.ID)
		}
		return m, nil

	case tea.KeyEnter:
		return m.handleSubmit()

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)

		value := m.input.Value()
		if strings.HasPrefix(value, "/") && !strings.Contains(value, " ") {
			m.suggestions = m.cmdRegistry.FilterCommands(strings.TrimPrefix(value, "/"))
			m.showSuggestions = len(m.suggestions) > 0
			m.selectedSuggestion = 0
		} else {
			m.hideSuggestions()
		}
		return m, cmd
	}
}

// handleSubmit processes the submitted input
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.hideSuggestions()

	if strings.HasPrefix(value, "/") {
		return m.handleSlashCommand(value)
	}
	if m.streaming {
		m.addSystemMessage("Still answering; press Esc to interrupt")
		m.refreshChat()
		return m, nil
	}
	return m.sendMessage(value)
}

// sendMessage asks a question and starts streaming the answer
func (m Model) sendMessage(question string) (tea.Model, tea.Cmd) {
	m, wait := m.beginAsk(question)
	return m, tea.Batch(wait, DoTick())
}

// beginAsk starts the turn in the background and returns the command that
// waits for its first unit
func (m Model) beginAsk(question string) (Model, tea.Cmd) {
	m.lines = append(m.lines,
		chatLine{Role: "user", Text: question},
		chatLine{Role: "assistant"},
	)
	m.setActivity("searching", "Searching the archive...")
	m.streaming = true

	ctx, cancel := context.WithTimeout(m.ctx, answerTimeout)
	m.cancelFunc = cancel

	ch := make(chan tea.Msg, 16)
	m.streamCh = ch
	sess := m.sess

	go func() {
		defer close(ch)
		defer cancel()

		send := func(msg tea.Msg) {
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		}

		msg, err := sess.Ask(ctx, question, func(unit string, parts []citation.RenderPart) {
			send(StreamUnitMsg{Unit: unit, Parts: parts})
		})
		if errors.Is(ctx.Err(), context.Canceled) {
			// interrupted; the model already knows
			return
		}
		ch <- AnswerMsg{Message: msg, Err: err}
	}()

	m.refreshChat()
	return m, waitForUnit(ch)
}

func (m *Model) finishAnswer(msg AnswerMsg) {
	m.streaming = false
	m.clearActivity()

	last := m.lastLine()
	if msg.Err != nil {
		if last != nil && last.Role == "assistant" && len(last.Parts) == 0 {
			m.lines = m.lines[:len(m.lines)-1]
		}
		m.addSystemMessage(fmt.Sprintf("Error: %v", msg.Err))
		m.refreshChat()
		return
	}

	if last != nil && last.Role == "assistant" {
		last.Parts = msg.Message.Parts
		last.Text = msg.Message.Text
		last.Notice = msg.Message.Notice
	}
	m.lastAnswer = msg.Message
	m.refreshChat()
}

// refreshState copies the session's tabs and context
func (m *Model) refreshState() {
	m.tabs = m.sess.Tabs()
	m.active, m.hasActive = m.sess.ActiveTab()
	m.contextItems = m.sess.ContextItems()
	if len(m.tabs) == 0 {
		m.focus = paneChat
	}
}

// refreshDocument re-renders the document pane, scrolling to the highlight
// when the active tab or its highlight changed
func (m *Model) refreshDocument() {
	if !m.hasActive {
		m.doc.SetContent("")
		m.docKey = ""
		return
	}
	content, line := m.renderDocument(m.active, m.doc.Width)
	m.doc.SetContent(content)

	key := m.active.ID
	if h := m.active.Highlight; h != nil {
		key += fmt.Sprintf(":%d-%d", h.Start, h.End)
	}
	if key != m.docKey {
		m.docKey = key
		m.doc.SetYOffset(max(line-2, 0))
	}
}

func (m *Model) refreshChat() {
	m.chat.SetContent(m.renderMessages())
	m.chat.GotoBottom()
}

// layout sizes the panes. With a document open, wide terminals show chat and
// document side by side; narrow ones show the focused pane only.
func (m *Model) layout() {
	if !m.ready {
		return
	}

	// header, tab bar, status, activity, context, two separators, input, help
	fixed := 9
	bodyHeight := m.height - fixed
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	inner := bodyHeight - 2 // pane border

	chatWidth, docWidth := m.width, 0
	if len(m.tabs) > 0 {
		if m.sideBySide() {
			chatWidth = m.width * 55 / 100
			docWidth = m.width - chatWidth
		} else if m.focus == paneDocument {
			chatWidth, docWidth = 0, m.width
		}
	}

	m.chat.Width = max(chatWidth-4, 0)
	m.chat.Height = inner
	m.doc.Width = max(docWidth-4, 0)
	m.doc.Height = inner

	if m.mdRenderer != nil && m.chat.Width > 0 {
		if err := m.mdRenderer.UpdateWidth(max(m.chat.Width-8, 20)); err != nil {
			m.logger.Debug("markdown width update failed", logging.Err(err))
		}
	}
	m.docKey = ""
	m.refreshChat()
	m.refreshDocument()
}

func (m *Model) sideBySide() bool {
	return m.width >= 100
}

func (m *Model) applyConfig(cfg *config.Config) {
	old := m.config.CLI.Theme
	m.config.CLI = cfg.CLI
	if cfg.CLI.Theme != old {
		m.styles = NewStyles(cfg.CLI.Theme)
		if r, err := NewMarkdownRenderer(m.styles.MarkdownStyle, max(m.chat.Width-8, 20)); err == nil {
			m.mdRenderer = r
		}
	}
	m.addSystemMessage("Configuration reloaded (search and provider changes apply to new sessions)")
	m.layout()
}

func (m *Model) lastLine() *chatLine {
	if len(m.lines) == 0 {
		return nil
	}
	return &m.lines[len(m.lines)-1]
}

func (m *Model) addSystemMessage(content string) {
	m.lines = append(m.lines, chatLine{Role: "system", Text: content})
}

func (m *Model) hideSuggestions() {
	m.showSuggestions = false
	m.suggestions = nil
}

func (m *Model) setActivity(activityType, description string) {
	m.activity = ActivityStatus{
		Active:      true,
		Type:        activityType,
		Description: description,
		StartTime:   time.Now(),
	}
}

func (m *Model) clearActivity() {
	m.activity = ActivityStatus{}
}

func (m *Model) clearActivityOf(activityType string) {
	if m.activity.Type == activityType {
		m.clearActivity()
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return "さようなら\n"
	}
	if !m.ready {
		return "Initializing...\n"
	}

	var b strings.Builder

	b.WriteString(GetHeader(m.width, m.sessionLabel()))
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderActivityStatus())
	b.WriteString("\n")
	b.WriteString(m.renderContextBar())
	b.WriteString("\n")
	b.WriteString(m.renderInputSeparator())
	b.WriteString("\n")
	b.WriteString(m.styles.InputPrompt.Render("> ") + m.input.View())
	if m.showSuggestions && len(m.suggestions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderSuggestions())
	}
	b.WriteString("\n")
	b.WriteString(m.renderInputSeparator())
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return b.String()
}

func (m *Model) sessionLabel() string {
	if m.hasActive {
		return "『" + truncate(m.active.Title, 20) + "』"
	}
	return "Interactive Mode"
}

func (m *Model) renderBody() string {
	chatStyle, docStyle := m.styles.Pane, m.styles.Pane
	if m.focus == paneDocument {
		docStyle = m.styles.PaneFocused
	} else {
		chatStyle = m.styles.PaneFocused
	}

	chat := chatStyle.Render(m.chat.View())
	if len(m.tabs) == 0 {
		return chat
	}
	doc := docStyle.Render(m.doc.View())
	if m.sideBySide() {
		return lipgloss.JoinHorizontal(lipgloss.Top, chat, doc)
	}
	if m.focus == paneDocument {
		return doc
	}
	return chat
}

func (m *Model) renderStatusBar() string {
	name := "no provider"
	if m.provider != nil {
		name = m.provider.Name()
	}
	provider := m.styles.StatusProvider.Render(name)
	if m.provider != nil && !m.providerReady {
		provider += m.styles.Warning.Render(" (offline)")
	}

	model := m.config.Inference.Model
	if m.provider == nil || m.provider.Name() != m.config.Inference.Provider {
		model = "default model"
	}

	status := provider + " | " + m.styles.StatusModel.Render(model)
	status += fmt.Sprintf(" | %d tabs", len(m.tabs))
	if m.streaming {
		status += " | " + m.styles.StatusStreaming.Render("answering...")
	}
	return m.styles.StatusBar.Width(m.width).Render(status)
}

func (m *Model) renderActivityStatus() string {
	if !m.activity.Active {
		return ""
	}
	icons := map[string]string{
		"searching": "🔍",
		"streaming": "📝",
		"loading":   "📖",
	}
	icon := icons[m.activity.Type]
	if icon == "" {
		icon = "⏳"
	}

	duration := fmt.Sprintf("(%.1fs)", time.Since(m.activity.StartTime).Seconds())
	return m.styles.ActivityBar.Render(
		m.styles.ActivityIcon.Render(icon) + " " +
			m.styles.ActivityText.Render(m.activity.Description) + " " +
			m.styles.ActivityDuration.Render(duration))
}

func (m *Model) renderInputSeparator() string {
	return m.styles.InputSeparator.Render(strings.Repeat("─", m.width))
}

func (m *Model) renderSuggestions() string {
	var items []string
	for i, cmd := range m.suggestions {
		name := fmt.Sprintf("%-12s", "/"+cmd.Name)
		style := m.styles.SuggestionItem
		if i == m.selectedSuggestion {
			style = m.styles.SuggestionSelected
		}
		items = append(items, style.Render(name)+" "+m.styles.SuggestionDesc.Render(cmd.Description))

		if i >= 7 && len(m.suggestions) > 8 {
			items = append(items, m.styles.SuggestionDesc.Render(fmt.Sprintf("  ... and %d more", len(m.suggestions)-8)))
			break
		}
	}
	return m.styles.SuggestionBox.Render(strings.Join(items, "\n"))
}

func (m *Model) renderHelpBar() string {
	key := func(k, desc string) string {
		return m.styles.HelpKey.Render(k) + " " + m.styles.HelpDesc.Render(desc)
	}

	var help []string
	if m.streaming {
		help = append(help, key("Esc", "interrupt"))
	} else {
		help = append(help, key("Enter", "ask"), key("/help", "commands"))
		if len(m.tabs) > 0 {
			help = append(help, key("Ctrl+O", "switch pane"), key("Ctrl+N/P", "tabs"), key("Ctrl+W", "close tab"))
		}
		help = append(help, key("Ctrl+C", "quit"))
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}

// Close releases the session subscription
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Run starts the TUI and blocks until it exits
func Run(ctx context.Context, opts Options) error {
	model, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
