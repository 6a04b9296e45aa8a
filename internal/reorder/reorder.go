// Package reorder computes card ranks and produces new board snapshots for
// card moves, creates, edits, and deletes. Every function is pure: inputs are
// never mutated and results share no slices with them.
package reorder

import (
	"cmp"
	"slices"

	"github.com/hylla/minikan/internal/domain"
)

// NormalizeCards returns a copy of cards with each position set to its 1-based index.
// Order is preserved.
func NormalizeCards(cards []domain.Card) []domain.Card {
	out := make([]domain.Card, len(cards))
	for idx, card := range cards {
		card.Position = idx + 1
		out[idx] = card
	}
	return out
}

// SortedCards returns the column's cards ordered by position. Equal positions keep slice order.
func SortedCards(column domain.Column) []domain.Card {
	out := make([]domain.Card, len(column.Cards))
	copy(out, column.Cards)
	slices.SortStableFunc(out, func(a, b domain.Card) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

// ResolveDestination returns the zero-based insertion index for a drop.
//
// cards is the destination column sorted by position. beforeCardID is the card the drop
// lands in front of; empty means end of column. When sameColumn is set the dragged card
// is excluded before searching. A drop before the dragged card itself or before an id
// missing from the list appends at the end. The result is always in [0, len(filtered)].
func ResolveDestination(cards []domain.Card, draggedCardID, beforeCardID string, sameColumn bool) int {
	candidates := cards
	if sameColumn {
		candidates = withoutCard(cards, draggedCardID)
	}

	if beforeCardID == "" || beforeCardID == draggedCardID {
		return len(candidates)
	}
	if idx := indexOf(candidates, beforeCardID); idx >= 0 {
		return idx
	}
	return len(candidates)
}

// ApplyMove returns a new snapshot with cardID removed from whichever column holds it
// and inserted into columnID at destIndex, clamped to the column bounds. Every column
// the removal touches and the destination are renormalized.
//
// An unknown card or destination column yields an unchanged copy of board.
func ApplyMove(board domain.Board, cardID, columnID string, destIndex int) domain.Board {
	out := board.Clone()
	destColIdx := out.ColumnIndex(columnID)
	moving, _, found := out.FindCard(cardID)
	if !found || destColIdx < 0 {
		return out
	}

	for colIdx := range out.Columns {
		col := &out.Columns[colIdx]
		if col.CardIndex(cardID) < 0 {
			continue
		}
		col.Cards = NormalizeCards(withoutCard(SortedCards(*col), cardID))
	}

	dest := &out.Columns[destColIdx]
	cards := SortedCards(*dest)
	destIndex = min(max(destIndex, 0), len(cards))
	moving.ColumnID = columnID
	dest.Cards = NormalizeCards(slices.Insert(cards, destIndex, moving))
	return out
}

// AppendCard adds card to the end of its column. A card whose column is absent leaves
// the board unchanged.
func AppendCard(board domain.Board, card domain.Card) domain.Board {
	out := board.Clone()
	colIdx := out.ColumnIndex(card.ColumnID)
	if colIdx < 0 {
		return out
	}
	col := &out.Columns[colIdx]
	col.Cards = NormalizeCards(append(SortedCards(*col), card))
	return out
}

// ReplaceCard swaps the title and description of the card with the same id.
// Column membership and position stay as they are in board.
func ReplaceCard(board domain.Board, card domain.Card) domain.Board {
	out := board.Clone()
	for colIdx := range out.Columns {
		col := &out.Columns[colIdx]
		idx := col.CardIndex(card.ID)
		if idx < 0 {
			continue
		}
		existing := col.Cards[idx]
		existing.Title = card.Title
		existing.Description = card.Description
		if !card.UpdatedAt.IsZero() {
			existing.UpdatedAt = card.UpdatedAt
		}
		col.Cards[idx] = existing
	}
	return out
}

// RemoveCard drops cardID and renormalizes the owning column. Unknown ids are a no-op.
func RemoveCard(board domain.Board, cardID string) domain.Board {
	out := board.Clone()
	for colIdx := range out.Columns {
		col := &out.Columns[colIdx]
		if col.CardIndex(cardID) < 0 {
			continue
		}
		col.Cards = NormalizeCards(withoutCard(SortedCards(*col), cardID))
	}
	return out
}

// NormalizeBoard sorts and renumbers every column.
func NormalizeBoard(board domain.Board) domain.Board {
	out := board.Clone()
	for colIdx := range out.Columns {
		col := &out.Columns[colIdx]
		col.Cards = NormalizeCards(SortedCards(*col))
	}
	return out
}

func withoutCard(cards []domain.Card, cardID string) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if card.ID != cardID {
			out = append(out, card)
		}
	}
	return out
}

func indexOf(cards []domain.Card, cardID string) int {
	return slices.IndexFunc(cards, func(card domain.Card) bool {
		return card.ID == cardID
	})
}
