package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MinCardTitleLength is the minimum trimmed rune count for a card title.
const MinCardTitleLength = 3

// Card is the unit of work tracked on a board. It belongs to exactly one column.
type Card struct {
	ID          string
	ColumnID    string
	Title       string
	Description string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CardInput holds constructor values for NewCard.
type CardInput struct {
	ID          string
	ColumnID    string
	Title       string
	Description string
	Position    int
}

// NewCard validates input and builds a card.
func NewCard(in CardInput, now time.Time) (Card, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	if in.ID == "" {
		return Card{}, ErrInvalidID
	}
	if in.ColumnID == "" {
		return Card{}, ErrInvalidColumnID
	}
	title, err := NormalizeCardTitle(in.Title)
	if err != nil {
		return Card{}, err
	}
	if in.Position < 0 {
		return Card{}, ErrInvalidPosition
	}

	return Card{
		ID:          in.ID,
		ColumnID:    in.ColumnID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Position:    in.Position,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// NormalizeCardTitle trims a title and enforces the minimum length.
func NormalizeCardTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < MinCardTitleLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}

// UpdateDetails rewrites title and description. Position and column are untouched.
func (c *Card) UpdateDetails(title, description string, now time.Time) error {
	title, err := NormalizeCardTitle(title)
	if err != nil {
		return err
	}
	c.Title = title
	c.Description = strings.TrimSpace(description)
	c.UpdatedAt = now.UTC()
	return nil
}

// Move transfers the card to a column at a rank.
func (c *Card) Move(columnID string, position int, now time.Time) error {
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return ErrInvalidColumnID
	}
	if position < 0 {
		return ErrInvalidPosition
	}
	c.ColumnID = columnID
	c.Position = position
	c.UpdatedAt = now.UTC()
	return nil
}
