package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/minikan/internal/app"
	"github.com/hylla/minikan/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// filePragmas apply to every pooled connection opened from a file path.
const filePragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Repository stores users, boards, columns, and cards in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path+filePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; concurrent requests queue on the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(owner_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS board_columns (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			column_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(column_id) REFERENCES board_columns(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_boards_owner ON boards(owner_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_columns_board ON board_columns(board_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_column ON cards(column_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash, ts(u.CreatedAt))
	if isUniqueErr(err) {
		return fmt.Errorf("%w: email already registered", app.ErrConflict)
	}
	return err
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user registered with email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// CreateBoard creates board. Columns on b are ignored.
func (r *Repository) CreateBoard(ctx context.Context, b domain.Board) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO boards(id, owner_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.OwnerID, b.Name, ts(b.CreatedAt), ts(b.UpdatedAt))
	return err
}

// GetBoard returns the board with its columns and cards ordered by position.
func (r *Repository) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	var (
		b          domain.Board
		createdRaw string
		updatedRaw string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, created_at, updated_at
		FROM boards
		WHERE id = ?
	`, id).Scan(&b.ID, &b.OwnerID, &b.Name, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Board{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Board{}, err
	}
	b.CreatedAt = parseTS(createdRaw)
	b.UpdatedAt = parseTS(updatedRaw)

	columns, err := r.listColumns(ctx, b.ID)
	if err != nil {
		return domain.Board{}, err
	}
	cards, err := r.listBoardCards(ctx, b.ID)
	if err != nil {
		return domain.Board{}, err
	}
	for idx := range columns {
		columns[idx].Cards = cards[columns[idx].ID]
		if columns[idx].Cards == nil {
			columns[idx].Cards = []domain.Card{}
		}
	}
	b.Columns = columns
	return b, nil
}

// ListBoards lists the boards owned by ownerID, oldest first.
func (r *Repository) ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM boards
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BoardSummary{}
	for rows.Next() {
		var (
			s          domain.BoardSummary
			createdRaw string
		)
		if err := rows.Scan(&s.ID, &s.Name, &createdRaw); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTS(createdRaw)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteBoard deletes a board with its columns and cards.
func (r *Repository) DeleteBoard(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM cards WHERE column_id IN (SELECT id FROM board_columns WHERE board_id = ?)
	`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM board_columns WHERE board_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// CreateColumn creates column.
func (r *Repository) CreateColumn(ctx context.Context, c domain.Column) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO board_columns(id, board_id, name, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.BoardID, c.Name, c.Position, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

// GetColumn returns a column without its cards.
func (r *Repository) GetColumn(ctx context.Context, id string) (domain.Column, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, position, created_at, updated_at
		FROM board_columns
		WHERE id = ?
	`, id)
	return scanColumn(row)
}

// listColumns lists columns.
func (r *Repository) listColumns(ctx context.Context, boardID string) ([]domain.Column, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, board_id, name, position, created_at, updated_at
		FROM board_columns
		WHERE board_id = ?
		ORDER BY position ASC, id ASC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Column{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCard creates card.
func (r *Repository) CreateCard(ctx context.Context, c domain.Card) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards(id, column_id, title, description, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ColumnID, c.Title, c.Description, c.Position, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

// GetCard returns card.
func (r *Repository) GetCard(ctx context.Context, id string) (domain.Card, error) {
	return getCardByID(ctx, r.db, id)
}

// UpdateCard updates title and description. Placement is written by UpdateCardPlacements.
func (r *Repository) UpdateCard(ctx context.Context, c domain.Card) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cards
		SET title = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Description, ts(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteCard deletes a card and rewrites the remaining sibling positions in one transaction.
func (r *Repository) DeleteCard(ctx context.Context, id string, siblings []domain.Card) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	if err = writePlacements(ctx, tx, siblings, time.Now()); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// UpdateCardPlacements rewrites column_id and position for each card in one transaction.
func (r *Repository) UpdateCardPlacements(ctx context.Context, cards []domain.Card, now time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = writePlacements(ctx, tx, cards, now); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func writePlacements(ctx context.Context, execer execerContext, cards []domain.Card, now time.Time) error {
	for _, c := range cards {
		updated := c.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		res, err := execer.ExecContext(ctx, `
			UPDATE cards
			SET column_id = ?, position = ?, updated_at = ?
			WHERE id = ?
		`, c.ColumnID, c.Position, ts(updated), c.ID)
		if err != nil {
			return fmt.Errorf("update placement for card %q: %w", c.ID, err)
		}
		if err := translateNoRows(res); err != nil {
			return fmt.Errorf("update placement for card %q: %w", c.ID, err)
		}
	}
	return nil
}

// listBoardCards returns every card on a board grouped by column id.
func (r *Repository) listBoardCards(ctx context.Context, boardID string) (map[string][]domain.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.column_id, c.title, c.description, c.position, c.created_at, c.updated_at
		FROM cards c
		JOIN board_columns col ON col.id = c.column_id
		WHERE col.board_id = ?
		ORDER BY c.column_id ASC, c.position ASC, c.created_at ASC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out[card.ColumnID] = append(out[card.ColumnID], card)
	}
	return out, rows.Err()
}

// queryRower represents a read-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// getCardByID returns a card by id.
func getCardByID(ctx context.Context, q queryRower, id string) (domain.Card, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, column_id, title, description, position, created_at, updated_at
		FROM cards
		WHERE id = ?
	`, id)
	return scanCard(row)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		createdRaw string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

func scanColumn(s scanner) (domain.Column, error) {
	var (
		c          domain.Column
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Column{}, app.ErrNotFound
		}
		return domain.Column{}, err
	}
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		c          domain.Card
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.ColumnID, &c.Title, &c.Description, &c.Position, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, app.ErrNotFound
		}
		return domain.Card{}, err
	}
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// isUniqueErr reports whether err is a unique constraint violation.
func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
