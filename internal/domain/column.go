package domain

import (
	"slices"
	"strings"
	"time"
)

// Column is an ordered bucket of cards within a board.
type Column struct {
	ID        string
	BoardID   string
	Name      string
	Position  int
	Cards     []Card
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewColumn constructs a column without cards.
func NewColumn(id, boardID, name string, position int, now time.Time) (Column, error) {
	id = strings.TrimSpace(id)
	boardID = strings.TrimSpace(boardID)
	name = strings.TrimSpace(name)
	if id == "" {
		return Column{}, ErrInvalidID
	}
	if boardID == "" {
		return Column{}, ErrInvalidBoardID
	}
	if name == "" {
		return Column{}, ErrInvalidName
	}
	if position < 0 {
		return Column{}, ErrInvalidPosition
	}

	return Column{
		ID:        id,
		BoardID:   boardID,
		Name:      name,
		Position:  position,
		Cards:     []Card{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the column.
func (c *Column) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}

// SetPosition sets the column rank among its siblings.
func (c *Column) SetPosition(position int, now time.Time) error {
	if position < 0 {
		return ErrInvalidPosition
	}
	c.Position = position
	c.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a copy that shares no card storage with c.
func (c Column) Clone() Column {
	out := c
	if c.Cards != nil {
		out.Cards = slices.Clone(c.Cards)
	}
	return out
}

// CardIndex returns the slice index of a card, or -1.
func (c Column) CardIndex(cardID string) int {
	return slices.IndexFunc(c.Cards, func(card Card) bool {
		return card.ID == cardID
	})
}
