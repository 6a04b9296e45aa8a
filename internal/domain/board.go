package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// BoardSummary is the list view of a board.
type BoardSummary struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Board is the aggregate root holding columns and their cards.
// Column order is defined by Column.Position, not slice order.
type Board struct {
	ID        string
	OwnerID   string
	Name      string
	Columns   []Column
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBoard constructs an empty board owned by ownerID.
func NewBoard(id, ownerID, name string, now time.Time) (Board, error) {
	id = strings.TrimSpace(id)
	ownerID = strings.TrimSpace(ownerID)
	name = strings.TrimSpace(name)
	if id == "" || ownerID == "" {
		return Board{}, ErrInvalidID
	}
	if name == "" {
		return Board{}, ErrInvalidName
	}
	return Board{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Columns:   []Column{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Summary returns the list view of b.
func (b Board) Summary() BoardSummary {
	return BoardSummary{ID: b.ID, Name: b.Name, CreatedAt: b.CreatedAt}
}

// Clone deep-copies the board so the result shares no slices with b.
func (b Board) Clone() Board {
	out := b
	if b.Columns != nil {
		out.Columns = make([]Column, len(b.Columns))
		for i, col := range b.Columns {
			out.Columns[i] = col.Clone()
		}
	}
	return out
}

// SortedColumns returns copies of the columns ordered by position, ties by id.
func (b Board) SortedColumns() []Column {
	out := make([]Column, 0, len(b.Columns))
	for _, col := range b.Columns {
		out = append(out, col.Clone())
	}
	slices.SortStableFunc(out, func(x, y Column) int {
		if c := cmp.Compare(x.Position, y.Position); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return out
}

// ColumnIndex returns the slice index of a column, or -1.
func (b Board) ColumnIndex(columnID string) int {
	return slices.IndexFunc(b.Columns, func(col Column) bool {
		return col.ID == columnID
	})
}

// FindCard searches every column for a card.
func (b Board) FindCard(cardID string) (Card, int, bool) {
	for colIdx, col := range b.Columns {
		if idx := col.CardIndex(cardID); idx >= 0 {
			return col.Cards[idx], colIdx, true
		}
	}
	return Card{}, -1, false
}

// CardCount returns the total number of cards on the board.
func (b Board) CardCount() int {
	total := 0
	for _, col := range b.Columns {
		total += len(col.Cards)
	}
	return total
}
