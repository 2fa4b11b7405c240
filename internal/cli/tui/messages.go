package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/session"
	"github.com/bunko/bunko/pkg/viewer"
)

// StreamUnitMsg carries one completed paragraph of the answer, resolved
type StreamUnitMsg struct {
	Unit  string
	Parts []citation.RenderPart
}

// AnswerMsg ends a turn. Message is nil when Err is set.
type AnswerMsg struct {
	Message *session.Message
	Err     error
}

// StreamEndMsg signals the end of streaming
type StreamEndMsg struct {
	Interrupted bool
}

// ProviderReadyMsg signals that the provider is ready
type ProviderReadyMsg struct {
	Name      string
	Available bool
}

// DocumentOpenedMsg reports the result of opening a document
type DocumentOpenedMsg struct {
	DocumentID string
	Tab        viewer.Tab
	Err        error
}

// SessionEventMsg forwards a session event into the update loop
type SessionEventMsg struct {
	Event events.Event
}

// ConfigReloadedMsg carries a configuration reloaded from disk
type ConfigReloadedMsg struct {
	Config *config.Config
}

// ErrorMsg represents a general error
type ErrorMsg struct {
	Err error
}

// TickMsg for periodic updates of the activity timer
type TickMsg struct{}

// ClipboardCopyMsg signals that content was copied to clipboard
type ClipboardCopyMsg struct {
	Success bool
	What    string
	Error   error
}

// streamUnitWithContinuation wraps a unit with the channel for continuation
type streamUnitWithContinuation struct {
	StreamUnitMsg
	ch <-chan tea.Msg
}

// streamClosedMsg reports that an answer's channel closed
type streamClosedMsg struct {
	ch <-chan tea.Msg
}

// waitForUnit waits for the next message of a running answer
func waitForUnit(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{ch: ch}
		}
		if unit, isUnit := msg.(StreamUnitMsg); isUnit {
			return streamUnitWithContinuation{StreamUnitMsg: unit, ch: ch}
		}
		return msg
	}
}

// waitForExternal relays session events and config reloads, one at a time
func waitForExternal(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return externalMsg{msg: msg, ch: ch}
	}
}

type externalMsg struct {
	msg tea.Msg
	ch  <-chan tea.Msg
}

// DoTick schedules the next activity refresh
func DoTick() tea.Cmd {
	return tea.Tick(tickInterval, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

const tickInterval = 100 * time.Millisecond
