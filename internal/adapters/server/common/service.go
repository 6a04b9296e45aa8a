package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/hylla/minikan/internal/app"
	"github.com/hylla/minikan/internal/domain"
)

// BoardService is the app surface both transports drive.
type BoardService interface {
	Register(ctx context.Context, name, email, password string) (app.AuthResult, error)
	Login(ctx context.Context, email, password string) (app.AuthResult, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)

	ListBoards(ctx context.Context, userID string) ([]domain.BoardSummary, error)
	CreateBoard(ctx context.Context, userID, name string) (domain.Board, error)
	GetBoard(ctx context.Context, userID, boardID string) (domain.Board, error)
	DeleteBoard(ctx context.Context, userID, boardID string) error
	CreateColumn(ctx context.Context, userID, boardID, name string, position *int) (domain.Column, error)

	CreateCard(ctx context.Context, userID, columnID, title, description string) (domain.Card, error)
	UpdateCard(ctx context.Context, userID, cardID string, in app.UpdateCardInput) (domain.Card, error)
	DeleteCard(ctx context.Context, userID, cardID string) error
	MoveCard(ctx context.Context, userID, cardID, newColumnID string, newPosition *int) (domain.Card, error)
}

var _ BoardService = (*app.Service)(nil)

// Error types carried in APIError.Type.
const (
	ErrorTypeValidation   = "ValidationError"
	ErrorTypeUnauthorized = "UnauthorizedError"
	ErrorTypeNotFound     = "NotFoundError"
	ErrorTypeConflict     = "ConflictError"
	ErrorTypeInternal     = "InternalError"
)

var validationErrors = []error{
	ErrInvalidRequest,
	domain.ErrInvalidID,
	domain.ErrInvalidName,
	domain.ErrInvalidTitle,
	domain.ErrInvalidPosition,
	domain.ErrInvalidColumnID,
	domain.ErrInvalidBoardID,
	domain.ErrInvalidEmail,
	domain.ErrInvalidPassword,
}

// Classify maps an error onto an HTTP status and an error type.
func Classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, app.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorTypeUnauthorized
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, ErrorTypeNotFound
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict, ErrorTypeConflict
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, ErrorTypeValidation
		}
	}
	return http.StatusInternalServerError, ErrorTypeInternal
}

// PublicMessage returns the client-safe message for err. Internal failures are not echoed.
func PublicMessage(err error) string {
	status, _ := Classify(err)
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// ValidationDetails returns field-level details for validation errors.
func ValidationDetails(err error) []ErrorDetail {
	paths := []struct {
		target error
		path   string
	}{
		{domain.ErrInvalidTitle, "title"},
		{domain.ErrInvalidName, "name"},
		{domain.ErrInvalidEmail, "email"},
		{domain.ErrInvalidPassword, "password"},
		{domain.ErrInvalidPosition, "position"},
		{domain.ErrInvalidColumnID, "columnId"},
	}
	var out []ErrorDetail
	for _, p := range paths {
		if errors.Is(err, p.target) {
			out = append(out, ErrorDetail{Message: p.target.Error(), Path: p.path})
		}
	}
	return out
}
