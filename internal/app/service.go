package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/reorder"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultColumns []string
	Passwords      PasswordHasher
	Tokens         TokenIssuer
	Cache          BoardCache
	// Logger receives cache failures that do not fail the request. Nil discards them.
	Logger Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User        domain.User
	AccessToken string
}

// UpdateCardInput holds optional card edits. Nil fields keep their current value.
type UpdateCardInput struct {
	Title       *string
	Description *string
}

// Service implements the board use cases on top of a Repository.
type Service struct {
	repo           Repository
	idGen          IDGenerator
	clock          Clock
	defaultColumns []string
	passwords      PasswordHasher
	tokens         TokenIssuer
	cache          BoardCache
	logger         Logger

	// placementMu serializes read-renumber-write cycles on card positions.
	placementMu sync.Mutex
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger{}
	}
	columns := sanitizeColumnNames(cfg.DefaultColumns)
	if len(columns) == 0 {
		columns = defaultColumnNames()
	}
	return &Service{
		repo:           repo,
		idGen:          idGen,
		clock:          clock,
		defaultColumns: columns,
		passwords:      cfg.Passwords,
		tokens:         cfg.Tokens,
		cache:          cfg.Cache,
		logger:         logger,
	}
}

// Register creates an account and issues an access token.
func (s *Service) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	if s.passwords == nil || s.tokens == nil {
		return AuthResult{}, ErrAuthUnavailable
	}
	if err := domain.ValidateRegistration(name, email, password); err != nil {
		return AuthResult{}, err
	}
	normalized, _ := domain.NormalizeEmail(email)
	if _, err := s.repo.GetUserByEmail(ctx, normalized); err == nil {
		return AuthResult{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResult{}, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock()
	user, err := domain.NewUser(s.idGen(), name, email, hash, now)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return AuthResult{}, err
	}
	return s.issue(user, now)
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	if s.passwords == nil || s.tokens == nil {
		return AuthResult{}, ErrAuthUnavailable
	}
	if err := domain.ValidateLogin(email, password); err != nil {
		return AuthResult{}, err
	}
	normalized, _ := domain.NormalizeEmail(email)
	user, err := s.repo.GetUserByEmail(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.passwords.Compare(user.PasswordHash, password); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.issue(user, s.clock())
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if s.tokens == nil {
		return domain.User{}, ErrAuthUnavailable
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrUnauthorized
	}
	userID, err := s.tokens.Verify(token, s.clock())
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.User{}, ErrUnauthorized
	}
	return user, err
}

func (s *Service) issue(user domain.User, now time.Time) (AuthResult, error) {
	token, err := s.tokens.Issue(user, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	user.PasswordHash = ""
	return AuthResult{User: user, AccessToken: token}, nil
}

// ListBoards lists the boards owned by userID.
func (s *Service) ListBoards(ctx context.Context, userID string) ([]domain.BoardSummary, error) {
	return s.repo.ListBoards(ctx, userID)
}

// CreateBoard creates a board with the default columns.
func (s *Service) CreateBoard(ctx context.Context, userID, name string) (domain.Board, error) {
	now := s.clock()
	board, err := domain.NewBoard(s.idGen(), userID, name, now)
	if err != nil {
		return domain.Board{}, err
	}
	if err := s.repo.CreateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	for idx, columnName := range s.defaultColumns {
		column, err := domain.NewColumn(s.idGen(), board.ID, columnName, idx+1, now)
		if err != nil {
			return domain.Board{}, fmt.Errorf("create default column %q: %w", columnName, err)
		}
		if err := s.repo.CreateColumn(ctx, column); err != nil {
			return domain.Board{}, fmt.Errorf("persist default column %q: %w", columnName, err)
		}
		board.Columns = append(board.Columns, column)
	}
	return board, nil
}

// GetBoard returns the full board aggregate when userID owns it.
func (s *Service) GetBoard(ctx context.Context, userID, boardID string) (domain.Board, error) {
	if s.cache != nil {
		if board, ok, err := s.cache.GetBoard(ctx, boardID); err == nil && ok {
			if board.OwnerID != userID {
				return domain.Board{}, ErrNotFound
			}
			return board, nil
		}
	}
	board, err := s.ownedBoard(ctx, userID, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	board = reorder.NormalizeBoard(board)
	if s.cache != nil {
		if err := s.cache.SetBoard(ctx, board); err != nil {
			s.logger.Warn("cache board failed", "board_id", board.ID, "err", err)
		}
	}
	return board, nil
}

// DeleteBoard deletes a board with its columns and cards.
func (s *Service) DeleteBoard(ctx context.Context, userID, boardID string) error {
	if _, err := s.ownedBoard(ctx, userID, boardID); err != nil {
		return err
	}
	if err := s.repo.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	s.invalidate(ctx, boardID)
	return nil
}

// CreateColumn adds a column. A nil position places it after the last column.
func (s *Service) CreateColumn(ctx context.Context, userID, boardID, name string, position *int) (domain.Column, error) {
	board, err := s.ownedBoard(ctx, userID, boardID)
	if err != nil {
		return domain.Column{}, err
	}
	rank := 1
	for _, col := range board.Columns {
		rank = max(rank, col.Position+1)
	}
	if position != nil {
		rank = *position
	}
	column, err := domain.NewColumn(s.idGen(), board.ID, name, rank, s.clock())
	if err != nil {
		return domain.Column{}, err
	}
	if err := s.repo.CreateColumn(ctx, column); err != nil {
		return domain.Column{}, err
	}
	s.invalidate(ctx, board.ID)
	return column, nil
}

// CreateCard appends a card to the end of columnID.
func (s *Service) CreateCard(ctx context.Context, userID, columnID, title, description string) (domain.Card, error) {
	s.placementMu.Lock()
	defer s.placementMu.Unlock()

	board, colIdx, err := s.boardForColumn(ctx, userID, columnID)
	if err != nil {
		return domain.Card{}, err
	}
	card, err := domain.NewCard(domain.CardInput{
		ID:          s.idGen(),
		ColumnID:    columnID,
		Title:       title,
		Description: description,
		Position:    len(board.Columns[colIdx].Cards) + 1,
	}, s.clock())
	if err != nil {
		return domain.Card{}, err
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return domain.Card{}, err
	}
	s.invalidate(ctx, board.ID)
	return card, nil
}

// UpdateCard edits title and description. Placement never changes.
func (s *Service) UpdateCard(ctx context.Context, userID, cardID string, in UpdateCardInput) (domain.Card, error) {
	board, err := s.boardForCard(ctx, userID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	card, _, _ := board.FindCard(cardID)
	title, description := card.Title, card.Description
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if err := card.UpdateDetails(title, description, s.clock()); err != nil {
		return domain.Card{}, err
	}
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return domain.Card{}, err
	}
	s.invalidate(ctx, board.ID)
	return card, nil
}

// DeleteCard deletes a card and renumbers its remaining siblings.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID string) error {
	s.placementMu.Lock()
	defer s.placementMu.Unlock()

	board, err := s.boardForCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	_, colIdx, _ := board.FindCard(cardID)
	next := reorder.RemoveCard(board, cardID)
	if err := s.repo.DeleteCard(ctx, cardID, next.Columns[colIdx].Cards); err != nil {
		return err
	}
	s.invalidate(ctx, board.ID)
	return nil
}

// MoveCard moves a card to newColumnID at the 1-based newPosition. A nil position
// appends; out of range positions are clamped. Both touched columns are renumbered.
func (s *Service) MoveCard(ctx context.Context, userID, cardID, newColumnID string, newPosition *int) (domain.Card, error) {
	s.placementMu.Lock()
	defer s.placementMu.Unlock()

	board, err := s.boardForCard(ctx, userID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	newColumnID = strings.TrimSpace(newColumnID)
	destIdx := board.ColumnIndex(newColumnID)
	if destIdx < 0 {
		return domain.Card{}, fmt.Errorf("%w: column %q", ErrNotFound, newColumnID)
	}

	_, srcIdx, _ := board.FindCard(cardID)
	siblings := reorder.SortedCards(board.Columns[destIdx])
	index := reorder.ResolveDestination(siblings, cardID, "", srcIdx == destIdx)
	if newPosition != nil {
		index = *newPosition - 1
	}
	next := reorder.ApplyMove(board, cardID, newColumnID, index)

	now := s.clock()
	placements := changedPlacements(board, next, srcIdx, destIdx)
	for idx := range placements {
		placements[idx].UpdatedAt = now.UTC()
	}
	if err := s.repo.UpdateCardPlacements(ctx, placements, now); err != nil {
		return domain.Card{}, err
	}
	s.invalidate(ctx, board.ID)

	moved, _, _ := next.FindCard(cardID)
	moved.UpdatedAt = now.UTC()
	return moved, nil
}

func changedPlacements(before, after domain.Board, columnIdxs ...int) []domain.Card {
	out := make([]domain.Card, 0)
	seen := map[int]struct{}{}
	for _, colIdx := range columnIdxs {
		if _, ok := seen[colIdx]; ok {
			continue
		}
		seen[colIdx] = struct{}{}
		for _, card := range after.Columns[colIdx].Cards {
			prev, _, ok := before.FindCard(card.ID)
			if ok && prev.ColumnID == card.ColumnID && prev.Position == card.Position {
				continue
			}
			out = append(out, card)
		}
	}
	return out
}

func (s *Service) ownedBoard(ctx context.Context, userID, boardID string) (domain.Board, error) {
	board, err := s.repo.GetBoard(ctx, strings.TrimSpace(boardID))
	if err != nil {
		return domain.Board{}, err
	}
	if board.OwnerID != strings.TrimSpace(userID) {
		return domain.Board{}, ErrNotFound
	}
	return board, nil
}

func (s *Service) boardForColumn(ctx context.Context, userID, columnID string) (domain.Board, int, error) {
	column, err := s.repo.GetColumn(ctx, strings.TrimSpace(columnID))
	if err != nil {
		return domain.Board{}, -1, err
	}
	board, err := s.ownedBoard(ctx, userID, column.BoardID)
	if err != nil {
		return domain.Board{}, -1, err
	}
	colIdx := board.ColumnIndex(column.ID)
	if colIdx < 0 {
		return domain.Board{}, -1, ErrNotFound
	}
	return reorder.NormalizeBoard(board), colIdx, nil
}

func (s *Service) boardForCard(ctx context.Context, userID, cardID string) (domain.Board, error) {
	card, err := s.repo.GetCard(ctx, strings.TrimSpace(cardID))
	if err != nil {
		return domain.Board{}, err
	}
	board, _, err := s.boardForColumn(ctx, userID, card.ColumnID)
	if err != nil {
		return domain.Board{}, err
	}
	if _, _, ok := board.FindCard(card.ID); !ok {
		return domain.Board{}, ErrNotFound
	}
	return board, nil
}

func (s *Service) invalidate(ctx context.Context, boardID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBoard(ctx, boardID); err != nil {
		s.logger.Warn("invalidate cached board failed", "board_id", boardID, "err", err)
	}
}

func defaultColumnNames() []string {
	return []string{"To Do", "In Progress", "Done"}
}

func sanitizeColumnNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, name := range in {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
