package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/minikan/internal/adapters/apiclient"
	"github.com/hylla/minikan/internal/adapters/server"
	"github.com/hylla/minikan/internal/config"
	"github.com/hylla/minikan/internal/credentials"
	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("MINIKAN_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram stands in for *tea.Program.
type fakeProgram struct {
	model  tea.Model
	runErr error
	sent   []tea.Msg
}

func (f *fakeProgram) Run() (tea.Model, error) {
	return f.model, f.runErr
}

func (f *fakeProgram) Send(msg tea.Msg) {
	f.sent = append(f.sent, msg)
}

// isolateHome points config, data, and token paths at temp dirs and returns the config root.
func isolateHome(t *testing.T) string {
	t.Helper()
	configHome := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, name := range []string{"MINIKAN_CONFIG", "MINIKAN_DB_PATH", "MINIKAN_API_URL", "MINIKAN_APP_NAME", "MINIKAN_JWT_SECRET"} {
		t.Setenv(name, "")
	}
	return configHome
}

// startBackend serves the same wiring as `minikan serve` over httptest.
func startBackend(t *testing.T) string {
	t.Helper()
	cfg := config.Default(filepath.Join(t.TempDir(), "api.db"))
	cfg.Server.JWTSecret = "0123456789abcdef0123"
	cfg.Server.BcryptCost = 4
	logger, err := newRuntimeLogger(io.Discard, "minikan", false, cfg.Logging, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	env := &runtimeEnv{now: time.Now, cfg: cfg, logger: logger}

	b, err := newBackend(context.Background(), env, "")
	if err != nil {
		t.Fatalf("newBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	handler, _, err := server.NewHandler(b.cfg, b.deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

// runCLI runs one command line against apiURL and returns stdout.
func runCLI(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"--api-url", apiURL}, args...), &out, io.Discard)
	return out.String(), err
}

// mustRunCLI fails the test when the command errors.
func mustRunCLI(t *testing.T, apiURL string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, apiURL, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

// savedClient reads the token the CLI saved and returns a direct API client.
func savedClient(t *testing.T, configHome, apiURL string) *apiclient.Client {
	t.Helper()
	tokens := credentials.New(filepath.Join(configHome, "minikan", "token.toml"), time.Now)
	if err := tokens.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	client, err := apiclient.New(apiclient.Config{BaseURL: apiURL, Tokens: tokens})
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	return client
}

// registerWithBoard registers ada and creates one board, returning it fresh from the API.
func registerWithBoard(t *testing.T, configHome, apiURL string) (*apiclient.Client, domain.Board) {
	t.Helper()
	mustRunCLI(t, apiURL, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	mustRunCLI(t, apiURL, "boards", "create", "Roadmap")
	client := savedClient(t, configHome, apiURL)
	boards, err := client.ListBoards(context.Background())
	if err != nil || len(boards) != 1 {
		t.Fatalf("ListBoards() = %v, %v", boards, err)
	}
	board, err := client.GetBoard(context.Background(), boards[0].ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	return client, board
}

func TestRunVersion(t *testing.T) {
	isolateHome(t)
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "minikan") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunPaths(t *testing.T) {
	configHome := isolateHome(t)
	var out strings.Builder
	if err := run(context.Background(), []string{"paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{
		"app: minikan",
		"dev_mode: false",
		"config: " + filepath.Join(configHome, "minikan", "config.toml"),
		"token: " + filepath.Join(configHome, "minikan", "token.toml"),
		"api: http://localhost:5000/api",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("paths output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunPathsDevModeAndOverrides(t *testing.T) {
	configHome := isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "custom.db")
	t.Setenv("MINIKAN_DB_PATH", dbPath)
	t.Setenv("MINIKAN_API_URL", "http://example.test:9000/api")

	var out strings.Builder
	if err := run(context.Background(), []string{"--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{
		"dev_mode: true",
		"config: " + filepath.Join(configHome, "minikan-dev", "config.toml"),
		"db: " + dbPath,
		"api: http://example.test:9000/api",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("paths output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	isolateHome(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--config", cfgPath, "paths"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

func TestRunRequiresLogin(t *testing.T) {
	isolateHome(t)
	apiURL := startBackend(t)
	for _, args := range [][]string{{"boards", "list"}, {"whoami"}, {}} {
		_, err := runCLI(t, apiURL, args...)
		if !errors.Is(err, credentials.ErrLoggedOut) {
			t.Fatalf("run(%v) error = %v, want ErrLoggedOut", args, err)
		}
	}
}

func TestRunAuthFlow(t *testing.T) {
	isolateHome(t)
	apiURL := startBackend(t)

	out := mustRunCLI(t, apiURL, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	if !strings.Contains(out, "registered ada@example.com") {
		t.Fatalf("unexpected register output %q", out)
	}
	if out := mustRunCLI(t, apiURL, "whoami"); !strings.Contains(out, "ada@example.com") {
		t.Fatalf("unexpected whoami output %q", out)
	}
	mustRunCLI(t, apiURL, "logout")
	if _, err := runCLI(t, apiURL, "whoami"); !errors.Is(err, credentials.ErrLoggedOut) {
		t.Fatalf("whoami after logout error = %v", err)
	}

	if _, err := runCLI(t, apiURL, "login", "--email", "ada@example.com", "--password", "wrong-pass"); err == nil {
		t.Fatal("expected login failure with a wrong password")
	}
	var stdin bytes.Buffer
	stdin.WriteString("secret1\n")
	root := newRootCommand(newRuntimeEnv())
	var loginOut bytes.Buffer
	root.SetArgs([]string{"--api-url", apiURL, "login", "--email", "ada@example.com"})
	root.SetIn(&stdin)
	root.SetOut(&loginOut)
	root.SetErr(io.Discard)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login with prompted password error = %v", err)
	}
	if !strings.Contains(loginOut.String(), "logged in as ada@example.com") {
		t.Fatalf("unexpected login output %q", loginOut.String())
	}
}

func TestRunBoardsAndCards(t *testing.T) {
	configHome := isolateHome(t)
	apiURL := startBackend(t)
	client, board := registerWithBoard(t, configHome, apiURL)
	ctx := context.Background()

	cols := board.SortedColumns()
	if len(cols) != 3 {
		t.Fatalf("expected default columns, got %d", len(cols))
	}
	todo, doing := cols[0], cols[1]

	if out := mustRunCLI(t, apiURL, "boards", "list"); !strings.Contains(out, "Roadmap") || !strings.Contains(out, board.ID) {
		t.Fatalf("boards list output missing board:\n%s", out)
	}
	out := mustRunCLI(t, apiURL, "columns", "create", board.ID, "Review", "--position", "3")
	if !strings.Contains(out, "created column Review") || !strings.Contains(out, "position 3") {
		t.Fatalf("unexpected columns create output %q", out)
	}

	mustRunCLI(t, apiURL, "cards", "create", todo.ID, "Card X", "--description", "**bold** plan")
	mustRunCLI(t, apiURL, "cards", "create", todo.ID, "Card Y")
	if _, err := runCLI(t, apiURL, "cards", "create", todo.ID, "ab"); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("short title error = %v, want ErrInvalidTitle", err)
	}

	board, err := client.GetBoard(ctx, board.ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	x := cardByTitle(t, board, "Card X")
	y := cardByTitle(t, board, "Card Y")

	out = mustRunCLI(t, apiURL, "cards", "move", y.ID, todo.ID, "--before", x.ID)
	if !strings.Contains(out, "moved Card Y to To Do at position 1") {
		t.Fatalf("unexpected move output %q", out)
	}
	out = mustRunCLI(t, apiURL, "cards", "move", x.ID, doing.ID, "--board", board.ID)
	if !strings.Contains(out, "moved Card X to In Progress at position 1") {
		t.Fatalf("unexpected move output %q", out)
	}
	if _, err := runCLI(t, apiURL, "cards", "move", x.ID, doing.ID, "--before", y.ID); err == nil || !strings.Contains(err.Error(), "is not in column") {
		t.Fatalf("expected foreign --before error, got %v", err)
	}

	mustRunCLI(t, apiURL, "cards", "edit", x.ID, "--title", "Card X2")
	if _, err := runCLI(t, apiURL, "cards", "edit", x.ID); err == nil {
		t.Fatal("expected error for edit without changes")
	}
	mustRunCLI(t, apiURL, "cards", "delete", y.ID)

	board, err = client.GetBoard(ctx, board.ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	edited := cardByTitle(t, board, "Card X2")
	if edited.ColumnID != doing.ID || edited.Description != "**bold** plan" {
		t.Fatalf("unexpected edited card %+v", edited)
	}
	if _, _, ok := board.FindCard(y.ID); ok {
		t.Fatal("expected Card Y to be deleted")
	}

	out = mustRunCLI(t, apiURL, "boards", "show", board.ID)
	for _, want := range []string{"Card X2", "Review", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("boards show output missing %q:\n%s", want, out)
		}
	}

	mustRunCLI(t, apiURL, "boards", "delete", board.ID)
	if out := mustRunCLI(t, apiURL, "boards", "list"); !strings.Contains(out, "no boards yet") {
		t.Fatalf("unexpected list output after delete %q", out)
	}
}

func TestRunCardsMissingCard(t *testing.T) {
	configHome := isolateHome(t)
	apiURL := startBackend(t)
	registerWithBoard(t, configHome, apiURL)

	_, err := runCLI(t, apiURL, "cards", "delete", "missing-card")
	if err == nil || !strings.Contains(err.Error(), "card not found") {
		t.Fatalf("expected card not found, got %v", err)
	}
}

func TestRunStartsProgram(t *testing.T) {
	configHome := isolateHome(t)
	apiURL := startBackend(t)
	_, board := registerWithBoard(t, configHome, apiURL)

	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	var started *fakeProgram
	programFactory = func(m tea.Model) program {
		started = &fakeProgram{model: m}
		return started
	}

	if _, err := runCLI(t, apiURL); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if started == nil {
		t.Fatal("expected the TUI program to start")
	}
	if _, ok := started.model.(tui.Model); !ok {
		t.Fatalf("program model type %T", started.model)
	}

	started = nil
	if _, err := runCLI(t, apiURL, board.ID); err != nil {
		t.Fatalf("run(board id) error = %v", err)
	}
	if started == nil {
		t.Fatal("expected the TUI program to start for an explicit board")
	}
}

func TestRunProgramErrorAndNoBoards(t *testing.T) {
	isolateHome(t)
	apiURL := startBackend(t)
	mustRunCLI(t, apiURL, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")

	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(m tea.Model) program {
		return &fakeProgram{model: m, runErr: errors.New("boom")}
	}

	if _, err := runCLI(t, apiURL); !errors.Is(err, errNoBoards) {
		t.Fatalf("run() without boards error = %v, want errNoBoards", err)
	}
	mustRunCLI(t, apiURL, "boards", "create", "Roadmap")
	if _, err := runCLI(t, apiURL); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected program error, got %v", err)
	}
}

func TestRunServeStopsOnCancel(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "serve", "minikan.db")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := run(ctx, []string{"--db", dbPath, "serve", "--bind", "127.0.0.1:0"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite file at %s: %v", dbPath, err)
	}
}

func cardByTitle(t *testing.T, board domain.Board, title string) domain.Card {
	t.Helper()
	for _, col := range board.Columns {
		for _, card := range col.Cards {
			if card.Title == title {
				return card
			}
		}
	}
	t.Fatalf("card %q not found on board", title)
	return domain.Card{}
}
