package dragdrop

import (
	"context"

	"github.com/hylla/minikan/internal/domain"
)

// SnapshotProvider loads the current board aggregate.
type SnapshotProvider interface {
	GetBoard(ctx context.Context, boardID string) (domain.Board, error)
}

// MovePersister confirms a card move with the backend. position is 1-based.
type MovePersister interface {
	MoveCard(ctx context.Context, cardID, columnID string, position int) (domain.Card, error)
}

// CardCollaborator creates, edits, and deletes cards on the backend.
type CardCollaborator interface {
	CreateCard(ctx context.Context, columnID, title, description string) (domain.Card, error)
	UpdateCard(ctx context.Context, cardID, title, description string) (domain.Card, error)
	DeleteCard(ctx context.Context, cardID string) error
}

// Notifier surfaces recoverable failures to the user.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

// Notify calls f(err).
func (f NotifierFunc) Notify(err error) {
	if f != nil {
		f(err)
	}
}

// Logger receives commit and rollback events. *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Warn(any, ...any)  {}

type nopNotifier struct{}

func (nopNotifier) Notify(error) {}
