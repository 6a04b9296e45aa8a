// Package apiclient talks to the board REST API and unwraps its response envelope.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hylla/minikan/internal/adapters/server/common"
	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/dragdrop"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000/api"

// DefaultTimeout bounds one request round trip.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes int64 = 4 << 20

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken() string
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenSource
}

// Client is a REST client for one API base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

var (
	_ dragdrop.SnapshotProvider = (*Client)(nil)
	_ dragdrop.MovePersister    = (*Client)(nil)
	_ dragdrop.CardCollaborator = (*Client)(nil)
)

// New builds a client. An empty base URL falls back to DefaultBaseURL.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q must use http or https", raw)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, http: httpClient, tokens: cfg.Tokens}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Register creates an account and returns the user with a fresh access token.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.User, string, error) {
	var out common.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", false, common.RegisterRequest{Name: name, Email: email, Password: password}, &out)
	if err != nil {
		return domain.User{}, "", err
	}
	return out.User.ToDomainUser(), out.AccessToken, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	var out common.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", false, common.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return domain.User{}, "", err
	}
	return out.User.ToDomainUser(), out.AccessToken, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var out common.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", true, nil, &out); err != nil {
		return domain.User{}, err
	}
	return out.ToDomainUser(), nil
}

// ListBoards lists the caller's boards.
func (c *Client) ListBoards(ctx context.Context) ([]domain.BoardSummary, error) {
	var out []common.BoardSummary
	if err := c.do(ctx, http.MethodGet, "/boards", true, nil, &out); err != nil {
		return nil, err
	}
	boards := make([]domain.BoardSummary, 0, len(out))
	for _, b := range out {
		boards = append(boards, b.ToDomainSummary())
	}
	return boards, nil
}

// CreateBoard creates a board.
func (c *Client) CreateBoard(ctx context.Context, name string) (domain.Board, error) {
	var out common.Board
	if err := c.do(ctx, http.MethodPost, "/boards", true, common.CreateBoardRequest{Name: name}, &out); err != nil {
		return domain.Board{}, err
	}
	return out.ToDomainBoard(), nil
}

// GetBoard fetches one board snapshot.
func (c *Client) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	var out common.Board
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID), true, nil, &out); err != nil {
		return domain.Board{}, err
	}
	return out.ToDomainBoard(), nil
}

// DeleteBoard deletes a board.
func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, "/boards/"+url.PathEscape(boardID), true, nil, nil)
}

// CreateColumn adds a column. A nil position appends.
func (c *Client) CreateColumn(ctx context.Context, boardID, name string, position *int) (domain.Column, error) {
	var out common.Column
	path := "/boards/" + url.PathEscape(boardID) + "/columns"
	if err := c.do(ctx, http.MethodPost, path, true, common.CreateColumnRequest{Name: name, Position: position}, &out); err != nil {
		return domain.Column{}, err
	}
	return out.ToDomainColumn(boardID), nil
}

// CreateCard appends a card to a column.
func (c *Client) CreateCard(ctx context.Context, columnID, title, description string) (domain.Card, error) {
	var out common.Card
	path := "/columns/" + url.PathEscape(columnID) + "/cards"
	if err := c.do(ctx, http.MethodPost, path, true, common.CreateCardRequest{Title: title, Description: description}, &out); err != nil {
		return domain.Card{}, err
	}
	card := out.ToDomainCard()
	if card.ColumnID == "" {
		card.ColumnID = columnID
	}
	return card, nil
}

// UpdateCard replaces a card's title and description.
func (c *Client) UpdateCard(ctx context.Context, cardID, title, description string) (domain.Card, error) {
	var out common.Card
	body := common.UpdateCardRequest{Title: &title, Description: &description}
	if err := c.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(cardID), true, body, &out); err != nil {
		return domain.Card{}, err
	}
	return out.ToDomainCard(), nil
}

// DeleteCard deletes a card.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, "/cards/"+url.PathEscape(cardID), true, nil, nil)
}

// MoveCard persists a move to a 1-based position. Non-positive positions append.
func (c *Client) MoveCard(ctx context.Context, cardID, columnID string, position int) (domain.Card, error) {
	body := common.MoveCardRequest{NewColumnID: common.ID(columnID)}
	if position > 0 {
		body.NewPosition = &position
	}
	var out common.Card
	if err := c.do(ctx, http.MethodPatch, "/cards/"+url.PathEscape(cardID)+"/move", true, body, &out); err != nil {
		return domain.Card{}, err
	}
	return out.ToDomainCard(), nil
}

// do sends one request and decodes the envelope data into out.
func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.AccessToken()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	data, apiErr := unwrap(resp.StatusCode, raw)
	if apiErr != nil {
		return apiErr
	}
	if out == nil || len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// unwrap extracts envelope data. Bodies without a data field are returned whole.
func unwrap(status int, raw []byte) (json.RawMessage, *Error) {
	trimmed := bytes.TrimSpace(raw)
	var fields map[string]json.RawMessage
	isObject := len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &fields) == nil

	var env common.RawEnvelope
	if isObject {
		_ = json.Unmarshal(trimmed, &env)
	}
	_, hasSuccess := fields["success"]
	failed := status >= http.StatusBadRequest || (hasSuccess && !env.Success)
	if !failed {
		if _, ok := fields["data"]; ok {
			return env.Data, nil
		}
		return json.RawMessage(trimmed), nil
	}

	apiErr := &Error{Status: status}
	switch {
	case env.Error != nil:
		apiErr.Message = env.Error.Message
		apiErr.Type = env.Error.Type
		apiErr.Details = env.Error.Details
	case env.Message != "":
		apiErr.Message = env.Message
	}
	return nil, apiErr
}

// Error is a failed API call.
type Error struct {
	Status  int
	Message string
	Type    string
	Details []common.ErrorDetail
}

// Error formats the failure for logs.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Request failed."
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message returns the user-facing text for err: the API message, then the
// transport error text, then a generic fallback.
func Message(err error) string {
	const fallback = "Something went wrong. Please try again."
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
		return "Request failed."
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
