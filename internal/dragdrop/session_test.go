package dragdrop

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/hylla/minikan/internal/domain"
)

type moveCall struct {
	cardID   string
	columnID string
	position int
}

type fakePersister struct {
	mu    sync.Mutex
	calls []moveCall
	err   error
}

func (f *fakePersister) MoveCard(_ context.Context, cardID, columnID string, position int) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, moveCall{cardID: cardID, columnID: columnID, position: position})
	if f.err != nil {
		return domain.Card{}, f.err
	}
	return domain.Card{ID: cardID, ColumnID: columnID, Position: position}, nil
}

type countingNotifier struct {
	errs []error
}

func (n *countingNotifier) Notify(err error) {
	n.errs = append(n.errs, err)
}

func testBoard() domain.Board {
	return domain.Board{
		ID:   "b1",
		Name: "Roadmap",
		Columns: []domain.Column{
			{ID: "A", BoardID: "b1", Name: "To Do", Position: 1, Cards: []domain.Card{
				{ID: "X", ColumnID: "A", Title: "Card X", Position: 1},
				{ID: "Y", ColumnID: "A", Title: "Card Y", Position: 2},
			}},
			{ID: "B", BoardID: "b1", Name: "Done", Position: 2, Cards: []domain.Card{
				{ID: "Z", ColumnID: "B", Title: "Card Z", Position: 1},
			}},
		},
	}
}

func newTestSession(persister MovePersister, notifier Notifier) *Session {
	store := NewBoardStore(StoreConfig{BoardID: "b1"})
	store.Replace(testBoard())
	return NewSession(SessionConfig{Store: store, Persister: persister, Notifier: notifier})
}

func cardIDs(col domain.Column) []string {
	out := make([]string, 0, len(col.Cards))
	for _, c := range col.Cards {
		out = append(out, c.ID)
	}
	return out
}

func TestSessionCrossColumnMoveCommits(t *testing.T) {
	persister := &fakePersister{}
	notifier := &countingNotifier{}
	session := newTestSession(persister, notifier)

	if err := session.DragStart("Y", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if session.State() != StateDragging || session.DraggingCardID() != "Y" {
		t.Fatalf("unexpected state %s dragging %q", session.State(), session.DraggingCardID())
	}
	if err := session.DragOver("B", "Z"); err != nil {
		t.Fatalf("DragOver() error = %v", err)
	}
	col, before, ok := session.HoverTarget()
	if !ok || col != "B" || before != "Z" {
		t.Fatalf("HoverTarget() = %q, %q, %v", col, before, ok)
	}

	if err := session.Commit(context.Background(), "B", "Z"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	board := session.Store().Snapshot()
	if got := cardIDs(board.Columns[0]); !reflect.DeepEqual(got, []string{"X"}) {
		t.Fatalf("column A = %v", got)
	}
	if got := cardIDs(board.Columns[1]); !reflect.DeepEqual(got, []string{"Y", "Z"}) {
		t.Fatalf("column B = %v", got)
	}
	if board.Columns[1].Cards[0].Position != 1 || board.Columns[1].Cards[1].Position != 2 {
		t.Fatalf("unexpected positions %#v", board.Columns[1].Cards)
	}
	if want := []moveCall{{cardID: "Y", columnID: "B", position: 1}}; !reflect.DeepEqual(persister.calls, want) {
		t.Fatalf("persist calls = %#v, want %#v", persister.calls, want)
	}
	if len(notifier.errs) != 0 {
		t.Fatalf("expected no notifications, got %v", notifier.errs)
	}
	if session.State() != StateIdle || session.DraggingCardID() != "" {
		t.Fatalf("expected idle after commit, got %s", session.State())
	}
}

func TestSessionRollbackRestoresExactSnapshot(t *testing.T) {
	boom := errors.New("network down")
	persister := &fakePersister{err: boom}
	notifier := &countingNotifier{}
	session := newTestSession(persister, notifier)
	before := session.Store().Snapshot()

	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	move, err := session.Drop("B", "")
	if err != nil || move == nil {
		t.Fatalf("Drop() = %v, %v", move, err)
	}
	optimistic := session.Store().Snapshot()
	if got := cardIDs(optimistic.Columns[1]); !reflect.DeepEqual(got, []string{"Z", "X"}) {
		t.Fatalf("optimistic column B = %v", got)
	}
	if session.State() != StateCommitting {
		t.Fatalf("expected committing, got %s", session.State())
	}

	err = session.Persist(context.Background(), move)
	if !errors.Is(err, boom) {
		t.Fatalf("Persist() error = %v, want %v", err, boom)
	}
	session.Complete(move, err)

	if after := session.Store().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatalf("rollback mismatch:\n got %#v\nwant %#v", after, before)
	}
	if len(notifier.errs) != 1 || !errors.Is(notifier.errs[0], boom) {
		t.Fatalf("expected exactly one notification, got %v", notifier.errs)
	}
	session.Complete(move, err)
	if len(notifier.errs) != 1 {
		t.Fatalf("repeated completion notified again: %v", notifier.errs)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected idle after rollback, got %s", session.State())
	}
}

func TestSessionRejectsDragStartWhileCommitting(t *testing.T) {
	session := newTestSession(&fakePersister{}, nil)
	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	move, err := session.Drop("A", "")
	if err != nil || move == nil {
		t.Fatalf("Drop() = %v, %v", move, err)
	}
	if err := session.DragStart("Z", "B"); !errors.Is(err, ErrDragInFlight) {
		t.Fatalf("expected ErrDragInFlight, got %v", err)
	}
	if err := session.DragOver("B", ""); !errors.Is(err, ErrDragInFlight) {
		t.Fatalf("expected ErrDragInFlight on drag over, got %v", err)
	}
	if _, err := session.Drop("B", ""); !errors.Is(err, ErrDragInFlight) {
		t.Fatalf("expected ErrDragInFlight on drop, got %v", err)
	}
	session.DragEnd()
	if session.State() != StateCommitting {
		t.Fatal("drag end must not abandon an in-flight commit")
	}
	session.Complete(move, nil)
	if err := session.DragStart("Z", "B"); err != nil {
		t.Fatalf("DragStart() after commit error = %v", err)
	}
}

func TestSessionSelfDropKeepsOrder(t *testing.T) {
	persister := &fakePersister{}
	session := newTestSession(persister, nil)
	before := session.Store().Snapshot()

	if err := session.DragStart("Y", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if err := session.Commit(context.Background(), "A", "Y"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if after := session.Store().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatalf("self drop changed board: %v", cardIDs(after.Columns[0]))
	}
	if want := []moveCall{{cardID: "Y", columnID: "A", position: 2}}; !reflect.DeepEqual(persister.calls, want) {
		t.Fatalf("persist calls = %#v", persister.calls)
	}
}

func TestSessionDropCancels(t *testing.T) {
	persister := &fakePersister{}
	session := newTestSession(persister, nil)
	before := session.Store().Snapshot()

	move, err := session.Drop("B", "")
	if move != nil || err != nil {
		t.Fatalf("drop while idle = %v, %v", move, err)
	}

	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if move, err := session.Drop("missing", ""); move != nil || err != nil {
		t.Fatalf("drop on unknown column = %v, %v", move, err)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected idle after cancelled drop, got %s", session.State())
	}

	if err := session.DragStart("gone", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if move, err := session.Drop("B", ""); move != nil || err != nil {
		t.Fatalf("drop of stale card = %v, %v", move, err)
	}

	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if err := session.DragOver("B", "Z"); err != nil {
		t.Fatalf("DragOver() error = %v", err)
	}
	session.DragEnd()
	if _, _, ok := session.HoverTarget(); ok {
		t.Fatal("expected hover target to clear on drag end")
	}

	if len(persister.calls) != 0 {
		t.Fatalf("cancelled drops must not persist, got %#v", persister.calls)
	}
	if after := session.Store().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatal("cancelled drops must not change the board")
	}
}

func TestSessionDragOverRequiresDrag(t *testing.T) {
	session := newTestSession(&fakePersister{}, nil)
	if err := session.DragOver("A", ""); !errors.Is(err, ErrNoActiveDrag) {
		t.Fatalf("expected ErrNoActiveDrag, got %v", err)
	}
	if err := session.DragStart(" ", "A"); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}

func TestSessionStaleBeforeTargetAppends(t *testing.T) {
	persister := &fakePersister{}
	session := newTestSession(persister, nil)
	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if err := session.Commit(context.Background(), "B", "deleted-card"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	board := session.Store().Snapshot()
	if got := cardIDs(board.Columns[1]); !reflect.DeepEqual(got, []string{"Z", "X"}) {
		t.Fatalf("column B = %v", got)
	}
	if persister.calls[0].position != 2 {
		t.Fatalf("expected position 2, got %d", persister.calls[0].position)
	}
}

func TestSessionCompleteIgnoresForeignMove(t *testing.T) {
	notifier := &countingNotifier{}
	session := newTestSession(&fakePersister{}, notifier)
	if err := session.DragStart("X", "A"); err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	move, _ := session.Drop("B", "")
	session.Complete(&PendingMove{CardID: "X"}, errors.New("stale"))
	if session.State() != StateCommitting || len(notifier.errs) != 0 {
		t.Fatalf("foreign completion changed state %s / %v", session.State(), notifier.errs)
	}
	session.Complete(move, nil)
	if session.State() != StateIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:        "idle",
		StateDragging:    "dragging",
		StateHoverTarget: "hover",
		StateCommitting:  "committing",
		State(99):        "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
