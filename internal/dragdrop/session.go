// Package dragdrop runs the drag session for a board: it tracks the card being
// dragged and its hover target, applies a move to the visible snapshot before the
// backend confirms it, and restores the captured snapshot when the backend rejects it.
package dragdrop

import (
	"context"
	"strings"
	"sync"

	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/reorder"
)

// State is the drag session phase.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateHoverTarget
	StateCommitting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateHoverTarget:
		return "hover"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Store     *BoardStore
	Persister MovePersister
	Notifier  Notifier
	Logger    Logger
}

// PendingMove is a drop that has been applied locally and awaits persistence.
type PendingMove struct {
	CardID   string
	ColumnID string
	// Position is the 1-based rank sent to the backend.
	Position int

	previous domain.Board
}

// Session is the drag state machine for one board. At most one move is committing at a time.
type Session struct {
	mu        sync.Mutex
	store     *BoardStore
	persister MovePersister
	notifier  Notifier
	logger    Logger

	state          State
	cardID         string
	sourceColumnID string
	hoverColumnID  string
	hoverBeforeID  string
	pending        *PendingMove
}

// NewSession constructs an idle session.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		store:     cfg.Store,
		persister: cfg.Persister,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
	}
	if s.store == nil {
		s.store = NewBoardStore(StoreConfig{})
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// Store returns the snapshot holder the session mutates.
func (s *Session) Store() *BoardStore {
	return s.store
}

// State reports the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DraggingCardID returns the card being dragged, or "" when idle.
func (s *Session) DraggingCardID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardID
}

// SourceColumnID returns the column recorded at drag start.
func (s *Session) SourceColumnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceColumnID
}

// HoverTarget returns the highlighted drop target. beforeCardID is "" for end of column.
func (s *Session) HoverTarget() (columnID, beforeCardID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateHoverTarget && s.state != StateCommitting {
		return "", "", false
	}
	return s.hoverColumnID, s.hoverBeforeID, true
}

// DragStart records cardID as dragged from columnID. It fails with ErrDragInFlight while a
// commit is pending. Starting over an unfinished drag replaces it.
func (s *Session) DragStart(cardID, columnID string) error {
	cardID = strings.TrimSpace(cardID)
	columnID = strings.TrimSpace(columnID)
	if cardID == "" {
		return ErrCardNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitting {
		return ErrDragInFlight
	}
	s.state = StateDragging
	s.cardID = cardID
	s.sourceColumnID = columnID
	s.hoverColumnID = ""
	s.hoverBeforeID = ""
	return nil
}

// DragOver updates the hover target. beforeCardID "" means end of column.
func (s *Session) DragOver(columnID, beforeCardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return ErrNoActiveDrag
	case StateCommitting:
		return ErrDragInFlight
	}
	s.state = StateHoverTarget
	s.hoverColumnID = strings.TrimSpace(columnID)
	s.hoverBeforeID = strings.TrimSpace(beforeCardID)
	return nil
}

// DragEnd cancels the gesture without committing. A pending commit is left to finish.
func (s *Session) DragEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitting {
		return
	}
	s.resetLocked()
}

// Drop resolves the destination, applies the move to the store, and returns the move to
// persist. A nil move with a nil error means the drop was treated as a cancel: no active
// drag, an unknown column, or a card that is no longer on the board.
func (s *Session) Drop(columnID, beforeCardID string) (*PendingMove, error) {
	columnID = strings.TrimSpace(columnID)
	beforeCardID = strings.TrimSpace(beforeCardID)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return nil, nil
	case StateCommitting:
		return nil, ErrDragInFlight
	}

	previous := s.store.Snapshot()
	destIdx := previous.ColumnIndex(columnID)
	if destIdx < 0 {
		s.logger.Debug("drop cancelled", "reason", "unknown column", "column_id", columnID)
		s.resetLocked()
		return nil, nil
	}
	if _, _, ok := previous.FindCard(s.cardID); !ok {
		s.logger.Debug("drop cancelled", "reason", "card missing", "card_id", s.cardID)
		s.resetLocked()
		return nil, nil
	}

	sameColumn := s.sourceColumnID == columnID
	cards := reorder.SortedCards(previous.Columns[destIdx])
	index := reorder.ResolveDestination(cards, s.cardID, beforeCardID, sameColumn)
	s.store.Replace(reorder.ApplyMove(previous, s.cardID, columnID, index))

	pending := &PendingMove{
		CardID:   s.cardID,
		ColumnID: columnID,
		Position: index + 1,
		previous: previous,
	}
	s.state = StateCommitting
	s.hoverColumnID = columnID
	s.hoverBeforeID = beforeCardID
	s.pending = pending
	s.logger.Debug("move applied", "card_id", pending.CardID, "column_id", columnID, "position", pending.Position)
	return pending, nil
}

// Persist sends a pending move to the backend. It holds no session lock and may run on
// any goroutine.
func (s *Session) Persist(ctx context.Context, move *PendingMove) error {
	if move == nil {
		return nil
	}
	if s.persister == nil {
		return ErrNoCollaborator
	}
	_, err := s.persister.MoveCard(ctx, move.CardID, move.ColumnID, move.Position)
	return err
}

// Complete finishes a commit. On failure the snapshot captured before the drop is restored
// and err is notified once. Drag bookkeeping is cleared either way. Completing a move that
// is not the pending one does nothing.
func (s *Session) Complete(move *PendingMove, err error) {
	s.mu.Lock()
	if move == nil || s.pending != move {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.store.Replace(move.previous)
		s.logger.Warn("move rolled back", "card_id", move.CardID, "column_id", move.ColumnID, "err", err)
	} else {
		s.logger.Debug("move committed", "card_id", move.CardID, "column_id", move.ColumnID, "position", move.Position)
	}
	s.resetLocked()
	s.mu.Unlock()

	if err != nil {
		s.notifier.Notify(err)
	}
}

// Commit runs Drop, Persist, and Complete in sequence and returns the persistence error.
func (s *Session) Commit(ctx context.Context, columnID, beforeCardID string) error {
	move, err := s.Drop(columnID, beforeCardID)
	if err != nil || move == nil {
		return err
	}
	err = s.Persist(ctx, move)
	s.Complete(move, err)
	return err
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.cardID = ""
	s.sourceColumnID = ""
	s.hoverColumnID = ""
	s.hoverBeforeID = ""
	s.pending = nil
}
