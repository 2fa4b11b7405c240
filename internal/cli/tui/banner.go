package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Banner colors, indigo fading to ink
var (
	bannerColor1 = lipgloss.Color("#7aa2f7")
	bannerColor2 = lipgloss.Color("#6d91e0")
	bannerColor3 = lipgloss.Color("#6080c9")
	bannerColor4 = lipgloss.Color("#536fb2")
	bannerColor5 = lipgloss.Color("#465e9b")
	bannerDim    = lipgloss.Color("#737a8c")
)

var bannerArt = []string{
	"██████╗░██╗░░░██╗███╗░░██╗██╗░░██╗░█████╗░",
	"██╔══██╗██║░░░██║████╗░██║██║░██╔╝██╔══██╗",
	"██████╦╝██║░░░██║██╔██╗██║█████═╝░██║░░██║",
	"██╔══██╗██║░░░██║██║╚████║██╔═██╗░██║░░██║",
	"██████╦╝╚██████╔╝██║░╚███║██║░╚██╗╚█████╔╝",
	"╚═════╝░░╚═════╝░╚═╝░░╚══╝╚═╝░░╚═╝░╚════╝░",
}

// GetStartupBanner returns the styled ASCII art banner
func GetStartupBanner(version string, width int) string {
	if width < 50 {
		width = 50
	}

	var sb strings.Builder
	colors := []lipgloss.Color{bannerColor1, bannerColor2, bannerColor3, bannerColor4, bannerColor5, bannerDim}

	padding := (width - lipgloss.Width(bannerArt[0])) / 2
	if padding < 0 {
		padding = 0
	}
	padStr := strings.Repeat(" ", padding)

	sb.WriteString("\n")
	for i, line := range bannerArt {
		style := lipgloss.NewStyle().Foreground(colors[i])
		if i < 5 {
			style = style.Bold(true)
		}
		sb.WriteString(padStr + style.Render(line) + "\n")
	}
	sb.WriteString("\n")

	tagline := lipgloss.NewStyle().Foreground(bannerDim).Render("青空文庫 reading companion")
	versionStr := lipgloss.NewStyle().Foreground(bannerDim).Render(version)

	sb.WriteString(centerText(tagline, width) + "\n")
	sb.WriteString(centerText(versionStr, width) + "\n")
	sb.WriteString("\n")

	return sb.String()
}

// GetHeader returns the one-line header
func GetHeader(width int, subtitle string) string {
	if width < 40 {
		width = 40
	}

	logo := lipgloss.NewStyle().Bold(true).Foreground(bannerColor1).Render("◈ bunko")
	sub := lipgloss.NewStyle().Foreground(bannerDim).Italic(true).Render(subtitle)

	lineWidth := width - lipgloss.Width(logo) - lipgloss.Width(sub) - 6
	if lineWidth < 4 {
		lineWidth = 4
	}
	line := lipgloss.NewStyle().Foreground(bannerDim).Render(strings.Repeat("─", lineWidth))

	return fmt.Sprintf("%s %s %s", logo, line, sub)
}

// centerText centers text within a given width
func centerText(text string, width int) string {
	textWidth := lipgloss.Width(text)
	if textWidth >= width {
		return text
	}
	return strings.Repeat(" ", (width-textWidth)/2) + text
}

// GetWelcomeMessage returns the welcome message shown after the banner
func GetWelcomeMessage() string {
	style := lipgloss.NewStyle().Foreground(bannerDim)

	lines := []string{
		"",
		style.Render("  Ask about any work in the archive; answers cite their sources"),
		style.Render("  /cite n opens a cited passage, /open id opens a work"),
		style.Render("  Use /help for available commands"),
		"",
	}
	return strings.Join(lines, "\n")
}
