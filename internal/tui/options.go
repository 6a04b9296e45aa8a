package tui

import (
	"time"

	"github.com/atotto/clipboard"
)

// Option configures a Model.
type Option func(*Model)

// WithShowDescriptions toggles the description line under each card title.
func WithShowDescriptions(show bool) Option {
	return func(m *Model) {
		m.showDescriptions = show
	}
}

// WithStatusFeed routes notifier errors from the store and session into the status line.
// Pass the same feed given to dragdrop.StoreConfig and dragdrop.SessionConfig.
func WithStatusFeed(feed *StatusFeed) Option {
	return func(m *Model) {
		if feed != nil {
			m.feed = feed
		}
	}
}

// WithRequestTimeout bounds each backend call started from the board.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(m *Model) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy-id key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithMarkdownStyle selects the glamour style for the card info panel.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		m.markdown = newMarkdownRenderer(style)
	}
}

func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
