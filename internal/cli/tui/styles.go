package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// palette holds the colors of one theme
type palette struct {
	primary   lipgloss.Color // indigo (藍色)
	secondary lipgloss.Color // muted ink
	accent    lipgloss.Color // vermilion (朱色) for citations
	success   lipgloss.Color
	errorC    lipgloss.Color
	warning   lipgloss.Color
	text      lipgloss.Color
	muted     lipgloss.Color
	bg        lipgloss.Color
	bgAlt     lipgloss.Color
	highlight lipgloss.Color
}

var (
	darkPalette = palette{
		primary:   lipgloss.Color("#7aa2f7"),
		secondary: lipgloss.Color("#737a8c"),
		accent:    lipgloss.Color("#f7768e"),
		success:   lipgloss.Color("#9ece6a"),
		errorC:    lipgloss.Color("#ef4444"),
		warning:   lipgloss.Color("#e0af68"),
		text:      lipgloss.Color("#e5e7eb"),
		muted:     lipgloss.Color("#a9b1d6"),
		bg:        lipgloss.Color("#16161e"),
		bgAlt:     lipgloss.Color("#1f2335"),
		highlight: lipgloss.Color("#3d59a1"),
	}

	lightPalette = palette{
		primary:   lipgloss.Color("#1e3a8a"),
		secondary: lipgloss.Color("#6b7280"),
		accent:    lipgloss.Color("#c2410c"),
		success:   lipgloss.Color("#15803d"),
		errorC:    lipgloss.Color("#b91c1c"),
		warning:   lipgloss.Color("#a16207"),
		text:      lipgloss.Color("#111827"),
		muted:     lipgloss.Color("#374151"),
		bg:        lipgloss.Color("#faf7f0"),
		bgAlt:     lipgloss.Color("#efe9dc"),
		highlight: lipgloss.Color("#fde68a"),
	}
)

// Styles defines all the visual styles for the TUI
type Styles struct {
	// Chat styles
	UserPrompt      lipgloss.Style
	UserMessage     lipgloss.Style
	AssistantPrompt lipgloss.Style
	SystemMessage   lipgloss.Style
	Notice          lipgloss.Style

	// Citation badges
	Citation           lipgloss.Style
	CitationWeb        lipgloss.Style
	CitationUnresolved lipgloss.Style

	// Document pane
	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	DocTitle    lipgloss.Style
	Highlight   lipgloss.Style

	// Context bar
	ContextBar  lipgloss.Style
	ContextItem lipgloss.Style

	// Input styles
	InputPrompt    lipgloss.Style
	InputSeparator lipgloss.Style

	// Autocomplete styles
	SuggestionBox      lipgloss.Style
	SuggestionItem     lipgloss.Style
	SuggestionSelected lipgloss.Style
	SuggestionDesc     lipgloss.Style

	// Status bar styles
	StatusBar       lipgloss.Style
	StatusProvider  lipgloss.Style
	StatusModel     lipgloss.Style
	StatusStreaming lipgloss.Style

	// Help bar styles
	HelpBar  lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style

	// Activity status styles
	ActivityBar      lipgloss.Style
	ActivityIcon     lipgloss.Style
	ActivityText     lipgloss.Style
	ActivityDuration lipgloss.Style

	// General
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	// MarkdownStyle is the glamour style matching the theme
	MarkdownStyle string
}

// DefaultStyles returns the dark theme
func DefaultStyles() Styles {
	return NewStyles("dark")
}

// NewStyles returns the styles for theme ("dark" or "light"; anything else
// is dark)
func NewStyles(theme string) Styles {
	p := darkPalette
	md := "dark"
	if theme == "light" {
		p = lightPalette
		md = "light"
	}

	return Styles{
		MarkdownStyle: md,

		UserPrompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary),

		UserMessage: lipgloss.NewStyle().
			Foreground(p.text),

		AssistantPrompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent),

		SystemMessage: lipgloss.NewStyle().
			Italic(true).
			Foreground(p.secondary),

		Notice: lipgloss.NewStyle().
			Foreground(p.warning),

		Citation: lipgloss.NewStyle().
			Foreground(p.accent).
			Bold(true),

		CitationWeb: lipgloss.NewStyle().
			Foreground(p.primary),

		CitationUnresolved: lipgloss.NewStyle().
			Foreground(p.secondary).
			Strikethrough(true),

		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.secondary).
			Padding(0, 1),

		PaneFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.primary).
			Padding(0, 1),

		TabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.bg).
			Background(p.primary).
			Padding(0, 1),

		TabInactive: lipgloss.NewStyle().
			Foreground(p.muted).
			Background(p.bgAlt).
			Padding(0, 1),

		DocTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.text),

		Highlight: lipgloss.NewStyle().
			Background(p.highlight).
			Foreground(p.text),

		ContextBar: lipgloss.NewStyle().
			Foreground(p.secondary).
			Padding(0, 1),

		ContextItem: lipgloss.NewStyle().
			Foreground(p.muted).
			Background(p.bgAlt).
			Padding(0, 1),

		InputPrompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary),

		InputSeparator: lipgloss.NewStyle().
			Foreground(p.secondary),

		SuggestionBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.primary).
			Background(p.bgAlt).
			Padding(0, 1),

		SuggestionItem: lipgloss.NewStyle().
			Foreground(p.muted).
			Padding(0, 1),

		SuggestionSelected: lipgloss.NewStyle().
			Background(p.primary).
			Foreground(p.bg).
			Bold(true).
			Padding(0, 1),

		SuggestionDesc: lipgloss.NewStyle().
			Foreground(p.secondary).
			Italic(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(p.secondary).
			Background(p.bgAlt).
			Padding(0, 1),

		StatusProvider: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary),

		StatusModel: lipgloss.NewStyle().
			Foreground(p.secondary),

		StatusStreaming: lipgloss.NewStyle().
			Foreground(p.warning).
			Italic(true),

		HelpBar: lipgloss.NewStyle().
			Foreground(p.secondary).
			Padding(0, 1),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary),

		HelpDesc: lipgloss.NewStyle().
			Foreground(p.secondary),

		ActivityBar: lipgloss.NewStyle().
			Foreground(p.secondary).
			Background(p.bgAlt).
			Padding(0, 1),

		ActivityIcon: lipgloss.NewStyle().
			Foreground(p.primary),

		ActivityText: lipgloss.NewStyle().
			Foreground(p.muted).
			Italic(true),

		ActivityDuration: lipgloss.NewStyle().
			Foreground(p.secondary),

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.errorC),

		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.success),

		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.warning),
	}
}
