package dragdrop

import (
	"context"
	"strings"
	"sync"

	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/reorder"
)

// StoreConfig wires a BoardStore to its collaborators. Nil collaborators are allowed;
// operations needing them return ErrNoProvider or ErrNoCollaborator.
type StoreConfig struct {
	BoardID  string
	Provider SnapshotProvider
	Cards    CardCollaborator
	Notifier Notifier
	Logger   Logger
}

// BoardStore owns the single visible board snapshot. The snapshot is replaced
// wholesale on every change and never mutated in place.
type BoardStore struct {
	mu       sync.RWMutex
	boardID  string
	board    domain.Board
	provider SnapshotProvider
	cards    CardCollaborator
	notifier Notifier
	logger   Logger

	listenersMu sync.Mutex
	listeners   []func(domain.Board)
}

// NewBoardStore constructs an empty store.
func NewBoardStore(cfg StoreConfig) *BoardStore {
	s := &BoardStore{
		boardID:  strings.TrimSpace(cfg.BoardID),
		provider: cfg.Provider,
		cards:    cfg.Cards,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// BoardID returns the id of the board the store tracks.
func (s *BoardStore) BoardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boardID
}

// Snapshot returns a deep copy of the current board.
func (s *BoardStore) Snapshot() domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Clone()
}

// Replace swaps in a new snapshot and notifies observers.
func (s *BoardStore) Replace(board domain.Board) {
	next := board.Clone()
	s.mu.Lock()
	s.board = next
	if next.ID != "" {
		s.boardID = next.ID
	}
	s.mu.Unlock()
	s.emit(next)
}

// OnChange registers fn to receive every new snapshot. fn runs synchronously and must
// not call back into a Session driving this store.
func (s *BoardStore) OnChange(fn func(domain.Board)) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload fetches the board from the provider and replaces the snapshot.
func (s *BoardStore) Reload(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	board, err := s.provider.GetBoard(ctx, s.BoardID())
	if err != nil {
		return err
	}
	s.Replace(reorder.NormalizeBoard(board))
	return nil
}

// CreateCard creates a card at the end of columnID.
func (s *BoardStore) CreateCard(ctx context.Context, columnID, title, description string) (domain.Card, error) {
	columnID = strings.TrimSpace(columnID)
	title, err := domain.NormalizeCardTitle(title)
	if err != nil {
		return domain.Card{}, err
	}
	if s.cards == nil {
		return domain.Card{}, ErrNoCollaborator
	}
	if s.Snapshot().ColumnIndex(columnID) < 0 {
		return domain.Card{}, ErrColumnNotFound
	}

	card, err := s.cards.CreateCard(ctx, columnID, title, strings.TrimSpace(description))
	if err != nil {
		s.notifier.Notify(err)
		return domain.Card{}, err
	}
	if card.ColumnID == "" {
		card.ColumnID = columnID
	}
	s.Replace(reorder.AppendCard(s.Snapshot(), card))
	s.logger.Debug("card created", "card_id", card.ID, "column_id", card.ColumnID)
	return card, nil
}

// UpdateCard edits a card's title and description in place.
func (s *BoardStore) UpdateCard(ctx context.Context, cardID, title, description string) (domain.Card, error) {
	title, err := domain.NormalizeCardTitle(title)
	if err != nil {
		return domain.Card{}, err
	}
	if s.cards == nil {
		return domain.Card{}, ErrNoCollaborator
	}
	existing, _, ok := s.Snapshot().FindCard(cardID)
	if !ok {
		return domain.Card{}, ErrCardNotFound
	}

	card, err := s.cards.UpdateCard(ctx, existing.ID, title, strings.TrimSpace(description))
	if err != nil {
		s.notifier.Notify(err)
		return domain.Card{}, err
	}
	if card.ID == "" {
		card.ID = existing.ID
	}
	s.Replace(reorder.ReplaceCard(s.Snapshot(), card))
	return card, nil
}

// DeleteCard removes a card optimistically. When the backend rejects the delete the
// snapshot captured before removal is restored and the failure is notified once.
func (s *BoardStore) DeleteCard(ctx context.Context, cardID string) error {
	if s.cards == nil {
		return ErrNoCollaborator
	}
	previous := s.Snapshot()
	if _, _, ok := previous.FindCard(cardID); !ok {
		return ErrCardNotFound
	}

	s.Replace(reorder.RemoveCard(previous, cardID))
	if err := s.cards.DeleteCard(ctx, cardID); err != nil {
		s.Replace(previous)
		s.logger.Warn("card delete rolled back", "card_id", cardID, "err", err)
		s.notifier.Notify(err)
		return err
	}
	return nil
}

func (s *BoardStore) emit(board domain.Board) {
	s.listenersMu.Lock()
	listeners := append([]func(domain.Board){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(board.Clone())
	}
}
