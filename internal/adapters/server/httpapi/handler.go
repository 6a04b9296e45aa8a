// Package httpapi serves the REST board API behind the success/data/error envelope.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hylla/minikan/internal/adapters/server/common"
	"github.com/hylla/minikan/internal/app"
)

// maxRequestBodyBytes bounds JSON request payload size for REST handlers.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the board REST API.
type Handler struct {
	service common.BoardService
	router  chi.Router
}

// NewHandler constructs the REST handler. Routes are relative to the API mount point.
func NewHandler(service common.BoardService) *Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, common.APIError{Message: "route not found", Type: common.ErrorTypeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, common.APIError{Message: "method not allowed", Type: "MethodNotAllowed"})
	})

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireActor)
		r.Get("/auth/me", h.handleMe)
		r.Get("/boards", h.handleListBoards)
		r.Post("/boards", h.handleCreateBoard)
		r.Get("/boards/{boardID}", h.handleGetBoard)
		r.Delete("/boards/{boardID}", h.handleDeleteBoard)
		r.Post("/boards/{boardID}/columns", h.handleCreateColumn)
		r.Post("/columns/{columnID}/cards", h.handleCreateCard)
		r.Put("/cards/{cardID}", h.handleUpdateCard)
		r.Delete("/cards/{cardID}", h.handleDeleteCard)
		r.Patch("/cards/{cardID}/move", h.handleMoveCard)
	})
	h.router = r
	return h
}

// ServeHTTP dispatches to the router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, common.APIError{Message: "board service unavailable", Type: common.ErrorTypeInternal})
		return
	}
	h.router.ServeHTTP(w, r)
}

// requireActor resolves the bearer token into a request actor.
func (h *Handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, common.APIError{Message: "missing bearer token", Type: common.ErrorTypeUnauthorized})
			return
		}
		user, err := h.service.Authenticate(r.Context(), token)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		ctx := app.WithActor(r.Context(), app.Actor{UserID: user.ID, Email: user.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// actorID returns the authenticated user id. requireActor guarantees presence.
func actorID(r *http.Request) string {
	actor, _ := app.ActorFromContext(r.Context())
	return actor.UserID
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req common.RegisterRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, common.AuthResponse{User: common.FromDomainUser(result.User), AccessToken: result.AccessToken})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req common.LoginRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, common.AuthResponse{User: common.FromDomainUser(result.User), AccessToken: result.AccessToken})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := app.ActorFromContext(r.Context())
	writeData(w, http.StatusOK, common.User{ID: common.ID(actor.UserID), Email: actor.Email})
}

func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.service.ListBoards(r.Context(), actorID(r))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, common.FromDomainSummaries(boards))
}

func (h *Handler) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateBoardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.service.CreateBoard(r.Context(), actorID(r), req.Name)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, common.FromDomainBoard(board))
}

func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetBoard(r.Context(), actorID(r), chi.URLParam(r, "boardID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, common.FromDomainBoard(board))
}

func (h *Handler) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBoard(r.Context(), actorID(r), chi.URLParam(r, "boardID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *Handler) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req common.CreateColumnRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	column, err := h.service.CreateColumn(r.Context(), actorID(r), chi.URLParam(r, "boardID"), req.Name, req.Position)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, common.FromDomainColumn(column))
}

func (h *Handler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.service.CreateCard(r.Context(), actorID(r), chi.URLParam(r, "columnID"), req.Title, req.Description)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, common.FromDomainCard(card))
}

func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req common.UpdateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.service.UpdateCard(r.Context(), actorID(r), chi.URLParam(r, "cardID"), app.UpdateCardInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, common.FromDomainCard(card))
}

func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCard(r.Context(), actorID(r), chi.URLParam(r, "cardID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *Handler) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	var req common.MoveCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if strings.TrimSpace(req.NewColumnID.String()) == "" {
		writeJSONError(w, http.StatusBadRequest, common.APIError{
			Message: "newColumnId is required",
			Type:    common.ErrorTypeValidation,
			Details: []common.ErrorDetail{{Message: "newColumnId is required", Path: "newColumnId"}},
		})
		return
	}
	card, err := h.service.MoveCard(r.Context(), actorID(r), chi.URLParam(r, "cardID"), req.NewColumnID.String(), req.NewPosition)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, common.FromDomainCard(card))
}

// writeErrorFrom maps service errors onto envelope responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	status, kind := common.Classify(err)
	apiErr := common.APIError{Message: common.PublicMessage(err), Type: kind}
	if status == http.StatusBadRequest {
		apiErr.Details = common.ValidationDetails(err)
	}
	writeJSONError(w, status, apiErr)
}

// writeJSONError writes one failure envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr common.APIError) {
	writeJSON(w, statusCode, common.Envelope{Success: false, Error: &apiErr})
}

// writeData writes one success envelope.
func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, common.Envelope{Success: true, Data: data})
}

// writeJSON writes one JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"success":false,"data":null,"error":{"message":%q}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
