package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Command categories, in display order
const (
	CategoryReading = "reading"
	CategoryContext = "context"
	CategorySystem  = "system"
	CategoryCustom  = "custom"
)

var categoryOrder = map[string]int{
	CategoryReading: 0,
	CategoryContext: 1,
	CategorySystem:  2,
	CategoryCustom:  3,
}

// Command represents a slash command with metadata
type Command struct {
	Name        string
	Usage       string
	Description string
	Category    string

	// Template is the question a custom command asks. $ARGUMENTS is
	// replaced by whatever follows the command.
	Template string
}

// Expand renders a custom command's question
func (c Command) Expand(args string) string {
	if !strings.Contains(c.Template, "$ARGUMENTS") {
		return strings.TrimSpace(c.Template + "\n\n" + args)
	}
	return strings.TrimSpace(strings.ReplaceAll(c.Template, "$ARGUMENTS", args))
}

// CommandRegistry manages available slash commands
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry creates a registry with the built-in commands and the
// custom commands found in dirs (later dirs override earlier ones)
func NewCommandRegistry(dirs ...string) *CommandRegistry {
	r := &CommandRegistry{
		commands: make(map[string]Command),
	}
	r.registerBuiltinCommands()
	for _, dir := range dirs {
		r.loadCommandsFromDir(dir)
	}
	return r
}

func (r *CommandRegistry) registerBuiltinCommands() {
	for _, c := range []Command{
		{Name: "open", Usage: "/open <work-id> [from to]", Description: "Open a work, optionally highlighting a rune range", Category: CategoryReading},
		{Name: "cite", Usage: "/cite <n>", Description: "Open citation n of the last answer", Category: CategoryReading},
		{Name: "sources", Usage: "/sources", Description: "List the sources of the last answer", Category: CategoryReading},
		{Name: "tab", Usage: "/tab <n|next|prev>", Description: "Switch document tab", Category: CategoryReading},
		{Name: "close", Usage: "/close [n]", Description: "Close the active tab or tab n", Category: CategoryReading},

		{Name: "select", Usage: "/select <from> <to> | <text>", Description: "Select a passage of the active document", Category: CategoryContext},
		{Name: "unselect", Usage: "/unselect", Description: "Drop the selection", Category: CategoryContext},
		{Name: "context", Usage: "/context [rm <id>|clear]", Description: "Show or edit the active context", Category: CategoryContext},

		{Name: "help", Usage: "/help", Description: "Show available commands", Category: CategorySystem},
		{Name: "status", Usage: "/status", Description: "Show provider and session state", Category: CategorySystem},
		{Name: "copy", Usage: "/copy", Description: "Copy the last answer to the clipboard", Category: CategorySystem},
		{Name: "clear", Usage: "/clear", Description: "Clear the screen", Category: CategorySystem},
		{Name: "reset", Usage: "/reset", Description: "Forget the conversation and its citations", Category: CategorySystem},
		{Name: "quit", Usage: "/quit", Description: "Exit bunko", Category: CategorySystem},
		{Name: "exit", Usage: "/exit", Description: "Exit bunko", Category: CategorySystem},
	} {
		r.commands[c.Name] = c
	}
}

// loadCommandsFromDir loads custom commands from markdown files. The first
// line, if a heading, is the description; the rest is the question template.
func (r *CommandRegistry) loadCommandsFromDir(dir string) {
	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".md")
		if existing, ok := r.commands[name]; ok && existing.Category != CategoryCustom {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		description := "Custom command"
		body := strings.TrimSpace(string(content))
		first, rest, _ := strings.Cut(body, "\n")
		if strings.HasPrefix(first, "#") {
			description = strings.TrimSpace(strings.TrimLeft(first, "#"))
			body = strings.TrimSpace(rest)
		}
		if body == "" {
			continue
		}

		r.commands[name] = Command{
			Name:        name,
			Usage:       "/" + name + " [args]",
			Description: description,
			Category:    CategoryCustom,
			Template:    body,
		}
	}
}

// GetCommand returns a command by name
func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// GetAllCommands returns all commands by category, then name
func (r *CommandRegistry) GetAllCommands() []Command {
	cmds := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sortCommands(cmds, "")
	return cmds
}

// FilterCommands returns commands matching a prefix, exact match first
func (r *CommandRegistry) FilterCommands(prefix string) []Command {
	prefix = strings.ToLower(prefix)
	cmds := make([]Command, 0)
	for _, cmd := range r.commands {
		if strings.HasPrefix(strings.ToLower(cmd.Name), prefix) {
			cmds = append(cmds, cmd)
		}
	}
	sortCommands(cmds, prefix)
	return cmds
}

func sortCommands(cmds []Command, exact string) {
	sort.Slice(cmds, func(i, j int) bool {
		if exact != "" && (cmds[i].Name == exact) != (cmds[j].Name == exact) {
			return cmds[i].Name == exact
		}
		if cmds[i].Category != cmds[j].Category {
			return categoryOrder[cmds[i].Category] < categoryOrder[cmds[j].Category]
		}
		return cmds[i].Name < cmds[j].Name
	})
}
