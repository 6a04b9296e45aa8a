// Package server composes HTTP API and MCP transports into one process handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hylla/minikan/internal/adapters/server/common"
	"github.com/hylla/minikan/internal/adapters/server/httpapi"
	"github.com/hylla/minikan/internal/adapters/server/mcpapi"
)

// defaultBindAddress defines the localhost-first serve default.
const defaultBindAddress = "127.0.0.1:8080"

// defaultShutdownTimeout bounds graceful shutdown time once context cancellation starts.
const defaultShutdownTimeout = 5 * time.Second

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// RequestLogger receives one line per served request. *log.Logger satisfies it.
type RequestLogger interface {
	Info(msg any, keyvals ...any)
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Service common.BoardService
	Logger  RequestLogger
	// Ready reports backing-store health for /readyz. Nil means always ready.
	Ready func(context.Context) error
}

// NewHandler composes one root router containing health, REST API, and MCP endpoints.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	normalizedCfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Service == nil {
		return nil, Config{}, fmt.Errorf("board service dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    normalizedCfg.ServerName,
			ServerVersion: normalizedCfg.ServerVersion,
			EndpointPath:  normalizedCfg.MCPEndpoint,
		},
		deps.Service,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	apiHandler := httpapi.NewHandler(deps.Service)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if deps.Logger != nil {
		r.Use(requestLogger(deps.Logger))
	}
	r.Get("/healthz", writeHealthStatus)
	r.Get("/readyz", readinessHandler(deps.Ready))
	r.Handle(normalizedCfg.MCPEndpoint, mcpHandler)
	r.Mount(normalizedCfg.APIEndpoint, apiHandler)
	return r, normalizedCfg, nil
}

// Run starts the composed HTTP server and blocks until shutdown or startup failure.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, normalizedCfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:              normalizedCfg.HTTPBind,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		serveErr := <-serveErrCh
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
			return fmt.Errorf("shutdown server: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve after shutdown: %w", serveErr)
		}
		return nil
	}
}

// requestLogger logs method, path, status, and duration for each request.
func requestLogger(logger RequestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

// normalizeConfig applies defaults and validates endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, "/api")
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, "/mcp")
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ")
	}
	if cfg.APIEndpoint == "/healthz" || cfg.APIEndpoint == "/readyz" || cfg.MCPEndpoint == "/healthz" || cfg.MCPEndpoint == "/readyz" {
		return Config{}, fmt.Errorf("endpoints must not shadow health checks")
	}

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "minikan"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// normalizeEndpoint normalizes one endpoint path and applies fallback defaults.
func normalizeEndpoint(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return fallback
	}
	return path
}

// writeHealthStatus responds with a deterministic liveness payload.
func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// readinessHandler reports unavailable while ready returns an error.
func readinessHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
				return
			}
		}
		writeHealthStatus(w, r)
	}
}
