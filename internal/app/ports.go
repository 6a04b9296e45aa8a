package app

import (
	"context"
	"time"

	"github.com/hylla/minikan/internal/domain"
)

// Repository persists users, boards, columns, and cards.
type Repository interface {
	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	GetUserByEmail(context.Context, string) (domain.User, error)

	CreateBoard(context.Context, domain.Board) error
	GetBoard(context.Context, string) (domain.Board, error)
	ListBoards(context.Context, string) ([]domain.BoardSummary, error)
	DeleteBoard(context.Context, string) error

	CreateColumn(context.Context, domain.Column) error
	GetColumn(context.Context, string) (domain.Column, error)

	CreateCard(context.Context, domain.Card) error
	GetCard(context.Context, string) (domain.Card, error)
	UpdateCard(context.Context, domain.Card) error
	// DeleteCard removes a card and rewrites the given sibling placements atomically.
	DeleteCard(context.Context, string, []domain.Card) error
	// UpdateCardPlacements rewrites column and position for each card atomically.
	UpdateCardPlacements(context.Context, []domain.Card, time.Time) error
}

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer creates and verifies access tokens. Verify returns the subject user id.
type TokenIssuer interface {
	Issue(user domain.User, now time.Time) (string, error)
	Verify(token string, now time.Time) (string, error)
}

// BoardCache stores assembled board snapshots. A miss reports ok=false with a nil error.
type BoardCache interface {
	GetBoard(ctx context.Context, boardID string) (domain.Board, bool, error)
	SetBoard(ctx context.Context, board domain.Board) error
	InvalidateBoard(ctx context.Context, boardID string) error
}

// Logger is the subset of a leveled logger the service writes to.
type Logger interface {
	Warn(msg any, keyvals ...any)
}

type discardLogger struct{}

func (discardLogger) Warn(any, ...any) {}
