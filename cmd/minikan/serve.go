package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hylla/minikan/internal/adapters/security"
	"github.com/hylla/minikan/internal/adapters/server"
	"github.com/hylla/minikan/internal/adapters/storage/rediscache"
	"github.com/hylla/minikan/internal/adapters/storage/sqlite"
	"github.com/hylla/minikan/internal/app"
	"github.com/spf13/cobra"
)

func newServeCommand(env *runtimeEnv) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and MCP backend",
		Long: `serve runs the board backend on sqlite: the REST API the board client
talks to, an MCP endpoint for agents, and /healthz + /readyz probes.

A redis cache is used for board snapshots when [cache] redis_addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), env, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides [server] bind)")
	return cmd
}

// backend is the wired service plus the resources serve must release.
type backend struct {
	cfg     server.Config
	deps    server.Dependencies
	closers []func() error
}

// Close releases resources in reverse acquisition order.
func (b *backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// newBackend opens storage, the optional cache, and the auth adapters.
func newBackend(ctx context.Context, env *runtimeEnv, bind string) (*backend, error) {
	cfg := env.cfg
	logger := env.logger
	b := &backend{}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, repo.Close)

	secret := strings.TrimSpace(cfg.Server.JWTSecret)
	if envSecret := strings.TrimSpace(os.Getenv("MINIKAN_JWT_SECRET")); envSecret != "" {
		secret = envSecret
	}
	if secret == "" {
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		logger.Warn("no [server] jwt_secret configured, using an ephemeral secret; tokens will not survive a restart")
	}
	signer, err := security.NewJWTSigner(secret, cfg.Server.TokenTTL.Std())
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("configure jwt signer: %w", err)
	}

	svcCfg := app.ServiceConfig{
		DefaultColumns: cfg.Server.DefaultColumns,
		Passwords:      security.NewBcryptHasher(cfg.Server.BcryptCost),
		Tokens:         signer,
		Logger:         logger,
	}
	if addr := strings.TrimSpace(cfg.Cache.RedisAddr); addr != "" {
		cache, err := rediscache.Dial(ctx, addr, cfg.Cache.TTL.Std())
		if err != nil {
			logger.Warn("redis cache unavailable, serving without cache", "addr", addr, "err", err)
		} else {
			svcCfg.Cache = cache
			b.closers = append(b.closers, cache.Close)
			logger.Info("board cache enabled", "addr", addr, "ttl", cfg.Cache.TTL.Std())
		}
	}

	if strings.TrimSpace(bind) == "" {
		bind = cfg.Server.Bind
	}
	b.cfg = server.Config{
		HTTPBind:      bind,
		APIEndpoint:   cfg.Server.APIEndpoint,
		MCPEndpoint:   cfg.Server.MCPEndpoint,
		ServerName:    "minikan",
		ServerVersion: version,
	}
	b.deps = server.Dependencies{
		Service: app.NewService(repo, uuid.NewString, env.now, svcCfg),
		Logger:  logger,
		Ready:   repo.Ping,
	}
	return b, nil
}

func runServe(ctx context.Context, env *runtimeEnv, bind string) error {
	b, err := newBackend(ctx, env, bind)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			env.logger.Warn("close backend resources", "err", err)
		}
	}()

	env.logger.Info(
		"serving backend",
		"bind", b.cfg.HTTPBind,
		"api", b.cfg.APIEndpoint,
		"mcp", b.cfg.MCPEndpoint,
		"db", env.cfg.Database.Path,
	)
	if err := server.Run(ctx, b.cfg, b.deps); err != nil {
		return err
	}
	env.logger.Info("backend stopped")
	return nil
}
