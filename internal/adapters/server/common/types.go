// Package common provides the transport-agnostic wire contract shared by the REST, MCP, and client adapters.
package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/minikan/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ID is a resource identifier that is always written as a JSON string but accepts numbers on read.
type ID string

// UnmarshalJSON accepts "abc", 42, and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id text.
func (id ID) String() string {
	return string(id)
}

// User is the wire form of an account.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// BoardSummary is one entry of the board list.
type BoardSummary struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Board is a full board snapshot.
type Board struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Columns   []Column  `json:"columns"`
}

// Column is one board column with its cards.
type Column struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// Card is one card.
type Card struct {
	ID          ID        `json:"id"`
	ColumnID    ID        `json:"columnId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateBoardRequest is the body of POST /boards.
type CreateBoardRequest struct {
	Name string `json:"name"`
}

// CreateColumnRequest is the body of POST /boards/{id}/columns.
type CreateColumnRequest struct {
	Name     string `json:"name"`
	Position *int   `json:"position,omitempty"`
}

// CreateCardRequest is the body of POST /columns/{id}/cards.
type CreateCardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// UpdateCardRequest is the body of PUT /cards/{id}. Omitted fields are left unchanged.
type UpdateCardRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MoveCardRequest is the body of PATCH /cards/{id}/move. NewPosition is 1-based; nil means end of column.
type MoveCardRequest struct {
	NewColumnID ID   `json:"newColumnId"`
	NewPosition *int `json:"newPosition,omitempty"`
}

// ErrorDetail points at one invalid field.
type ErrorDetail struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// APIError is the error object inside an envelope.
type APIError struct {
	Message string        `json:"message"`
	Type    string        `json:"type,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// Envelope wraps every REST response.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

// RawEnvelope is Envelope with undecoded data, for clients.
type RawEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Message string          `json:"message,omitempty"`
}

// FromDomainUser maps a user to its wire form.
func FromDomainUser(user domain.User) User {
	return User{ID: ID(user.ID), Name: user.Name, Email: user.Email}
}

// FromDomainSummaries maps board summaries to their wire form.
func FromDomainSummaries(in []domain.BoardSummary) []BoardSummary {
	out := make([]BoardSummary, 0, len(in))
	for _, b := range in {
		out = append(out, BoardSummary{ID: ID(b.ID), Name: b.Name, CreatedAt: b.CreatedAt})
	}
	return out
}

// FromDomainBoard maps a board with columns ordered by position.
func FromDomainBoard(board domain.Board) Board {
	cols := board.SortedColumns()
	out := Board{
		ID:        ID(board.ID),
		Name:      board.Name,
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
		Columns:   make([]Column, 0, len(cols)),
	}
	for _, col := range cols {
		out.Columns = append(out.Columns, FromDomainColumn(col))
	}
	return out
}

// FromDomainColumn maps a column and its cards.
func FromDomainColumn(col domain.Column) Column {
	out := Column{ID: ID(col.ID), Name: col.Name, Position: col.Position, Cards: make([]Card, 0, len(col.Cards))}
	for _, card := range col.Cards {
		out.Cards = append(out.Cards, FromDomainCard(card))
	}
	return out
}

// FromDomainCard maps a card.
func FromDomainCard(card domain.Card) Card {
	return Card{
		ID:          ID(card.ID),
		ColumnID:    ID(card.ColumnID),
		Title:       card.Title,
		Description: card.Description,
		Position:    card.Position,
		CreatedAt:   card.CreatedAt,
		UpdatedAt:   card.UpdatedAt,
	}
}

// ToDomainUser maps a wire user back into the domain.
func (u User) ToDomainUser() domain.User {
	return domain.User{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

// ToDomainSummary maps a wire summary back into the domain.
func (b BoardSummary) ToDomainSummary() domain.BoardSummary {
	return domain.BoardSummary{ID: b.ID.String(), Name: b.Name, CreatedAt: b.CreatedAt}
}

// ToDomainBoard maps a wire board back into the domain. Cards missing a column id inherit their column's.
func (b Board) ToDomainBoard() domain.Board {
	out := domain.Board{
		ID:        b.ID.String(),
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Columns:   make([]domain.Column, 0, len(b.Columns)),
	}
	for _, col := range b.Columns {
		dc := domain.Column{
			ID:       col.ID.String(),
			BoardID:  out.ID,
			Name:     col.Name,
			Position: col.Position,
			Cards:    make([]domain.Card, 0, len(col.Cards)),
		}
		for _, card := range col.Cards {
			c := card.ToDomainCard()
			if strings.TrimSpace(c.ColumnID) == "" {
				c.ColumnID = dc.ID
			}
			dc.Cards = append(dc.Cards, c)
		}
		out.Columns = append(out.Columns, dc)
	}
	return out
}

// ToDomainColumn maps a wire column back into the domain.
func (c Column) ToDomainColumn(boardID string) domain.Column {
	board := Board{ID: ID(boardID), Columns: []Column{c}}.ToDomainBoard()
	return board.Columns[0]
}

// ToDomainCard maps a wire card back into the domain.
func (c Card) ToDomainCard() domain.Card {
	return domain.Card{
		ID:          c.ID.String(),
		ColumnID:    c.ColumnID.String(),
		Title:       c.Title,
		Description: c.Description,
		Position:    c.Position,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
