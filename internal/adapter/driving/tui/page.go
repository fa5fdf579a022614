// Package tui is the interactive terminal surface: a login page and a
// paginated listings page, routed by the session guard.
package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level screen in the TUI.
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
	// Notice is shown by the destination page, e.g. why the user was sent there.
	Notice string
}

// noticeReceiver is implemented by pages that display a notice on entry.
type noticeReceiver interface {
	SetNotice(notice string)
}
