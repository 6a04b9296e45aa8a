package tui

import (
	"sync"

	"github.com/hylla/minikan/internal/adapters/apiclient"
)

// StatusFeed collects failures reported by the board store and drag session. Backend calls
// run on tea.Cmd goroutines, so Notify may be called concurrently with the update loop.
type StatusFeed struct {
	mu     sync.Mutex
	queued []string
}

// NewStatusFeed constructs an empty feed.
func NewStatusFeed() *StatusFeed {
	return &StatusFeed{}
}

// Notify queues a user-facing message for err.
func (f *StatusFeed) Notify(err error) {
	if f == nil || err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, apiclient.Message(err))
}

// drain returns and clears queued messages in arrival order.
func (f *StatusFeed) drain() []string {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queued
	f.queued = nil
	return out
}
