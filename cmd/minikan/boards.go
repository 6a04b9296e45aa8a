package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hylla/minikan/internal/adapters/apiclient"
	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/dragdrop"
	"github.com/spf13/cobra"
)

func newBoardsCommand(env *runtimeEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List, show, create, and delete boards",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your boards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := env.requireLogin(); err != nil {
					return err
				}
				boards, err := env.client.ListBoards(cmd.Context())
				if err != nil {
					return userError(err)
				}
				if len(boards) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no boards yet: create one with `minikan boards create <name>`")
					return nil
				}
				rows := make([][]string, 0, len(boards))
				for _, b := range boards {
					rows = append(rows, []string{b.ID, b.Name, b.CreatedAt.Local().Format("2006-01-02 15:04")})
				}
				writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CREATED"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <board-id>",
			Short: "Print a board's columns and cards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := env.requireLogin(); err != nil {
					return err
				}
				board, err := env.client.GetBoard(cmd.Context(), firstArg(args))
				if err != nil {
					return userError(err)
				}
				writeBoard(cmd, board)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a board with the default columns",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := env.requireLogin(); err != nil {
					return err
				}
				board, err := env.client.CreateBoard(cmd.Context(), firstArg(args))
				if err != nil {
					return userError(err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created board %s (%s)\n", board.Name, board.ID)
				writeBoard(cmd, board)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <board-id>",
			Short: "Delete a board with its columns and cards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := env.requireLogin(); err != nil {
					return err
				}
				boardID := firstArg(args)
				if err := env.client.DeleteBoard(cmd.Context(), boardID); err != nil {
					return userError(err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted board %s\n", boardID)
				return nil
			},
		},
	)
	return cmd
}

func newColumnsCommand(env *runtimeEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Manage board columns",
		Args:  cobra.NoArgs,
	}
	create := &cobra.Command{
		Use:   "create <board-id> <name>",
		Short: "Add a column to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			var position *int
			if cmd.Flags().Changed("position") {
				pos, _ := cmd.Flags().GetInt("position")
				position = &pos
			}
			col, err := env.client.CreateColumn(cmd.Context(), strings.TrimSpace(args[0]), args[1], position)
			if err != nil {
				return userError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created column %s (%s) at position %d\n", col.Name, col.ID, col.Position)
			return nil
		},
	}
	create.Flags().Int("position", 0, "1-based column position (default: append)")
	cmd.AddCommand(create)
	return cmd
}

func newCardsCommand(env *runtimeEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Create, edit, delete, and move cards",
		Args:  cobra.NoArgs,
	}
	var boardID string
	cmd.PersistentFlags().StringVar(&boardID, "board", "", "board holding the card (default: searched)")

	create := &cobra.Command{
		Use:   "create <column-id> <title>",
		Short: "Append a card to a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			title, err := domain.NormalizeCardTitle(args[1])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			card, err := env.client.CreateCard(cmd.Context(), strings.TrimSpace(args[0]), title, strings.TrimSpace(description))
			if err != nil {
				return userError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created card %s (%s) at position %d\n", card.Title, card.ID, card.Position)
			return nil
		},
	}
	create.Flags().String("description", "", "card description (markdown)")

	edit := &cobra.Command{
		Use:   "edit <card-id>",
		Short: "Change a card's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("description") {
				return errors.New("nothing to change: pass --title and/or --description")
			}
			target, err := env.openCardBoard(cmd.Context(), boardID, firstArg(args))
			if err != nil {
				return err
			}
			title, description := target.card.Title, target.card.Description
			if cmd.Flags().Changed("title") {
				title, _ = cmd.Flags().GetString("title")
			}
			if cmd.Flags().Changed("description") {
				description, _ = cmd.Flags().GetString("description")
			}
			card, err := target.store.UpdateCard(cmd.Context(), target.card.ID, title, description)
			if err != nil {
				return userError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated card %s (%s)\n", card.Title, card.ID)
			return nil
		},
	}
	edit.Flags().String("title", "", "new title")
	edit.Flags().String("description", "", "new description (markdown)")

	remove := &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			target, err := env.openCardBoard(cmd.Context(), boardID, firstArg(args))
			if err != nil {
				return err
			}
			if err := target.store.DeleteCard(cmd.Context(), target.card.ID); err != nil {
				return userError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted card %s\n", target.card.ID)
			return nil
		},
	}

	var before string
	move := &cobra.Command{
		Use:   "move <card-id> <column-id>",
		Short: "Move a card to a column, before another card or at the end",
		Long: `move drives the same drag session the board uses: pick the card up,
hover the target, and drop it. Without --before the card lands at the end
of the column.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			return env.moveCard(cmd, boardID, firstArg(args), strings.TrimSpace(args[1]), strings.TrimSpace(before))
		},
	}
	move.Flags().StringVar(&before, "before", "", "card id to drop in front of")

	cmd.AddCommand(create, edit, remove, move)
	return cmd
}

// cardTarget is a card located on a freshly loaded board store.
type cardTarget struct {
	store    *dragdrop.BoardStore
	card     domain.Card
	columnID string
}

// newBoardStore wires a store for boardID against the API client.
func (e *runtimeEnv) newBoardStore(boardID string, notifier dragdrop.Notifier) *dragdrop.BoardStore {
	return dragdrop.NewBoardStore(dragdrop.StoreConfig{
		BoardID:  boardID,
		Provider: e.client,
		Cards:    e.client,
		Notifier: notifier,
		Logger:   e.logger,
	})
}

// cliNotifier logs backend rejections; the command returns the error itself.
func (e *runtimeEnv) cliNotifier() dragdrop.Notifier {
	return dragdrop.NotifierFunc(func(err error) {
		e.logger.Debug("backend rejected change", "err", apiclient.Message(err))
	})
}

// openCardBoard loads the board holding cardID. Without boardID the default board
// is tried first, then every board the user owns.
func (e *runtimeEnv) openCardBoard(ctx context.Context, boardID, cardID string) (cardTarget, error) {
	var candidates []string
	if boardID = strings.TrimSpace(boardID); boardID != "" {
		candidates = []string{boardID}
	} else {
		if def := strings.TrimSpace(e.cfg.Board.DefaultBoard); def != "" {
			candidates = append(candidates, def)
		}
		boards, err := e.client.ListBoards(ctx)
		if err != nil {
			return cardTarget{}, userError(err)
		}
		for _, b := range boards {
			if !slices.Contains(candidates, b.ID) {
				candidates = append(candidates, b.ID)
			}
		}
	}

	for _, id := range candidates {
		store := e.newBoardStore(id, e.cliNotifier())
		if err := store.Reload(ctx); err != nil {
			if apiclient.IsNotFound(err) && boardID == "" {
				continue
			}
			return cardTarget{}, userError(err)
		}
		board := store.Snapshot()
		if card, colIdx, ok := board.FindCard(cardID); ok {
			return cardTarget{store: store, card: card, columnID: board.Columns[colIdx].ID}, nil
		}
	}
	return cardTarget{}, fmt.Errorf("card %s: %w", cardID, dragdrop.ErrCardNotFound)
}

// moveCard runs drag-start, drag-over, and drop for one card.
func (e *runtimeEnv) moveCard(cmd *cobra.Command, boardID, cardID, columnID, beforeCardID string) error {
	ctx := cmd.Context()
	target, err := e.openCardBoard(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	board := target.store.Snapshot()
	if board.ColumnIndex(columnID) < 0 {
		return fmt.Errorf("column %s: %w", columnID, dragdrop.ErrColumnNotFound)
	}
	if beforeCardID != "" {
		if _, colIdx, ok := board.FindCard(beforeCardID); !ok || board.Columns[colIdx].ID != columnID {
			return fmt.Errorf("--before card %s is not in column %s", beforeCardID, columnID)
		}
	}

	session := dragdrop.NewSession(dragdrop.SessionConfig{
		Store:     target.store,
		Persister: e.client,
		Notifier:  e.cliNotifier(),
		Logger:    e.logger,
	})
	if err := session.DragStart(target.card.ID, target.columnID); err != nil {
		return err
	}
	if err := session.DragOver(columnID, beforeCardID); err != nil {
		return err
	}
	if err := session.Commit(ctx, columnID, beforeCardID); err != nil {
		return fmt.Errorf("move rolled back: %s", apiclient.Message(err))
	}

	moved, colIdx, ok := target.store.Snapshot().FindCard(target.card.ID)
	if !ok {
		return fmt.Errorf("card %s: %w", target.card.ID, dragdrop.ErrCardNotFound)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s at position %d\n",
		moved.Title, target.store.Snapshot().Columns[colIdx].Name, moved.Position)
	return nil
}

// writeBoard prints one row per card, columns in position order.
func writeBoard(cmd *cobra.Command, board domain.Board) {
	rows := [][]string{}
	for _, col := range board.SortedColumns() {
		cards := slices.Clone(col.Cards)
		slices.SortStableFunc(cards, func(a, b domain.Card) int {
			return cmp.Compare(a.Position, b.Position)
		})
		if len(cards) == 0 {
			rows = append(rows, []string{col.Name, col.ID, "", "", "(empty)"})
			continue
		}
		for _, card := range cards {
			rows = append(rows, []string{col.Name, col.ID, strconv.Itoa(card.Position), card.ID, card.Title})
		}
	}
	writeTable(cmd.OutOrStdout(), []string{"COLUMN", "COLUMN ID", "#", "CARD ID", "TITLE"}, rows)
}

// userError reduces API failures to the message the server sent.
func userError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return errors.New(apiclient.Message(err))
	}
	return err
}
