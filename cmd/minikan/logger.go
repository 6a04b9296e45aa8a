package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/minikan/internal/config"
)

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
// It satisfies dragdrop.Logger and server.RequestLogger.
type runtimeLogger struct {
	mu             sync.RWMutex
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	devLogPath, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	// File output stays unstyled logfmt.
	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	closeFile := l.closeFile
	l.closeFile = nil
	return closeFile()
}

// SetConsoleEnabled mutes the console sink while the TUI owns the terminal.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consoleEnabled = enabled
}

// activeSinks returns the sinks that should receive the next event.
func (l *runtimeLogger) activeSinks() []*charmLog.Logger {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*charmLog.Logger, 0, len(l.sinks))
	for _, sink := range l.sinks {
		if sink == nil || (sink == l.consoleSink && !l.consoleEnabled) {
			continue
		}
		out = append(out, sink)
	}
	return out
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) {
	for _, sink := range l.activeSinks() {
		sink.Debug(msg, keyvals...)
	}
}

func (l *runtimeLogger) Info(msg any, keyvals ...any) {
	for _, sink := range l.activeSinks() {
		sink.Info(msg, keyvals...)
	}
}

func (l *runtimeLogger) Warn(msg any, keyvals ...any) {
	for _, sink := range l.activeSinks() {
		sink.Warn(msg, keyvals...)
	}
}

func (l *runtimeLogger) Error(msg any, keyvals ...any) {
	for _, sink := range l.activeSinks() {
		sink.Error(msg, keyvals...)
	}
}

// devLogFilePath resolves a workspace-local dev log file for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".minikan/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(workspaceRootFrom(cwd), baseDir)
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName), nil
}

// workspaceRootFrom walks up to the nearest directory holding go.mod or .git.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	for dir := start; ; {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// sanitizeLogFileStem turns an app name into a safe file-name segment.
func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "minikan"
	}
	return stem
}
