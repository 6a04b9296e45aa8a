package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/hylla/minikan/internal/adapters/apiclient"
	"github.com/hylla/minikan/internal/config"
	"github.com/hylla/minikan/internal/credentials"
	"github.com/hylla/minikan/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time; "dev" turns on dev-mode paths.
var version = "dev"

// program is the part of *tea.Program the board command drives.
type program interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
}

// programFactory builds the TUI program; tests swap it for a fake.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	env := newRuntimeEnv()
	err := fang.Execute(ctx, newRootCommand(env), fang.WithVersion(version))
	_ = env.Close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang's styled error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	env := newRuntimeEnv()
	defer func() { _ = env.Close() }()

	root := newRootCommand(env)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	apiURL     string
	appName    string
	devMode    bool
}

// runtimeEnv holds the resolved state built once per invocation.
type runtimeEnv struct {
	flags globalFlags
	now   func() time.Time

	appName    string
	devMode    bool
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	tokens     *credentials.Store
	client     *apiclient.Client
}

func newRuntimeEnv() *runtimeEnv {
	return &runtimeEnv{now: time.Now}
}

// Close releases the dev log file.
func (e *runtimeEnv) Close() error {
	if e == nil {
		return nil
	}
	return e.logger.Close()
}

// newRootCommand builds the full command tree around env.
func newRootCommand(env *runtimeEnv) *cobra.Command {
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("MINIKAN_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("MINIKAN_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "minikan [board-id]",
		Short: "A terminal kanban board with keyboard drag and drop",
		Long: `minikan opens a kanban board in the terminal. Pick a card up with space,
move it with h/j/k/l, and drop it with enter. Moves show immediately and
roll back if the server rejects them.

With no board id, the [board] default_board from config is opened, or
else your first board.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, env, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&env.flags.configPath, "config", "", "path to config TOML")
	flags.StringVar(&env.flags.dbPath, "db", "", "path to the sqlite database used by serve")
	flags.StringVar(&env.flags.apiURL, "api-url", "", "backend API root (overrides [api] base_url)")
	flags.StringVar(&env.flags.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&env.flags.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newServeCommand(env),
		newRegisterCommand(env),
		newLoginCommand(env),
		newLogoutCommand(env),
		newWhoamiCommand(env),
		newBoardsCommand(env),
		newColumnsCommand(env),
		newCardsCommand(env),
		newPathsCommand(env),
	)
	return root
}

// setup resolves paths, config, logging, credentials, and the API client.
func (e *runtimeEnv) setup(cmd *cobra.Command) error {
	e.appName = e.flags.appName
	e.devMode = e.flags.devMode

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: e.appName,
		DevMode: e.devMode,
	})
	if err != nil {
		return err
	}
	e.paths = paths

	e.configPath = strings.TrimSpace(e.flags.configPath)
	if e.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("MINIKAN_CONFIG")); envPath != "" {
			e.configPath = envPath
		} else {
			e.configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(e.flags.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("MINIKAN_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(e.configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", e.configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	apiURL := strings.TrimSpace(e.flags.apiURL)
	if apiURL == "" {
		apiURL = strings.TrimSpace(os.Getenv("MINIKAN_API_URL"))
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.cfg = cfg

	logger, err := newRuntimeLogger(cmd.ErrOrStderr(), platform.AppName(platform.Options{AppName: e.appName, DevMode: e.devMode}), e.devMode, cfg.Logging, e.now)
	if err != nil {
		return err
	}
	e.logger = logger

	e.tokens = credentials.New(paths.TokenPath, e.now)
	if err := e.tokens.Load(); err != nil {
		logger.Warn("saved token unreadable, continuing logged out", "path", paths.TokenPath, "err", err)
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout.Std(),
		Tokens:  e.tokens,
	})
	if err != nil {
		return err
	}
	e.client = client

	logger.Debug(
		"startup configuration resolved",
		"command", cmd.CommandPath(),
		"app", e.appName,
		"dev_mode", e.devMode,
		"config_path", e.configPath,
		"api", client.BaseURL(),
		"dev_log", logger.DevLogPath(),
	)
	return nil
}

// requireLogin fails fast with a hint when no usable token is saved.
func (e *runtimeEnv) requireLogin() error {
	if _, err := e.tokens.Require(); err != nil {
		return fmt.Errorf("%w: run `minikan login` first", err)
	}
	return nil
}

func newPathsCommand(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and token paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", env.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", env.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", env.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", env.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", env.cfg.Database.Path)
			_, _ = fmt.Fprintf(out, "token: %s\n", env.paths.TokenPath)
			_, _ = fmt.Fprintf(out, "api: %s\n", env.client.BaseURL())
			if devLog := env.logger.DevLogPath(); devLog != "" {
				_, _ = fmt.Fprintf(out, "dev_log: %s\n", devLog)
			}
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

// parseBoolEnv reads a boolean env var; ok is false when unset or unparsable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
