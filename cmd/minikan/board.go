package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/minikan/internal/dragdrop"
	"github.com/hylla/minikan/internal/tui"
	"github.com/spf13/cobra"
)

// errNoBoards is returned when the TUI has nothing to open.
var errNoBoards = errors.New("no boards yet: create one with `minikan boards create <name>`")

// runBoard opens the interactive board.
func runBoard(cmd *cobra.Command, env *runtimeEnv, args []string) error {
	ctx := cmd.Context()
	if err := env.requireLogin(); err != nil {
		return err
	}
	boardID, err := resolveBoardID(ctx, env, firstArg(args))
	if err != nil {
		return err
	}

	feed := tui.NewStatusFeed()
	store := env.newBoardStore(boardID, feed)
	session := dragdrop.NewSession(dragdrop.SessionConfig{
		Store:     store,
		Persister: env.client,
		Notifier:  feed,
		Logger:    env.logger,
	})
	model := tui.NewModel(
		session,
		tui.WithStatusFeed(feed),
		tui.WithShowDescriptions(env.cfg.Board.ShowDescriptions),
		tui.WithRequestTimeout(env.cfg.API.Timeout.Std()),
	)

	env.logger.SetConsoleEnabled(false)
	defer env.logger.SetConsoleEnabled(true)
	env.logger.Info("starting board program", "board_id", boardID, "api", env.client.BaseURL(), "dev_log", env.logger.DevLogPath())

	p := programFactory(model)
	model.Subscribe(p.Send)
	if _, err := p.Run(); err != nil {
		env.logger.Error("board program failed", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("board program exited", "board_id", boardID)
	return nil
}

// resolveBoardID picks the explicit argument, then [board] default_board, then the first board.
func resolveBoardID(ctx context.Context, env *runtimeEnv, arg string) (string, error) {
	if arg = strings.TrimSpace(arg); arg != "" {
		return arg, nil
	}
	if def := strings.TrimSpace(env.cfg.Board.DefaultBoard); def != "" {
		return def, nil
	}
	boards, err := env.client.ListBoards(ctx)
	if err != nil {
		return "", userError(err)
	}
	if len(boards) == 0 {
		return "", errNoBoards
	}
	return boards[0].ID, nil
}
