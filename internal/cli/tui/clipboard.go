package tui

import (
	"errors"

	"github.com/atotto/clipboard"
)

var ErrNoClipboard = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

// CopyToClipboard copies text to the system clipboard
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrNoClipboard
	}
	return clipboard.WriteAll(text)
}

// HasClipboardSupport checks if a clipboard utility was found
func HasClipboardSupport() bool {
	return !clipboard.Unsupported
}
