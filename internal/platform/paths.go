// Package platform resolves per-OS config and data locations.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "minikan"

// Paths lists every file location the app touches.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	// TokenPath holds the persisted access token. It lives next to the config, not the data.
	TokenPath string
}

// Options selects the app name and dev-mode suffix.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths from the current OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, AppName(opts))
}

// AppName returns the effective directory name, with a -dev suffix in dev mode.
func AppName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}

// PathsFor computes paths from explicit inputs so callers and tests avoid global state.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase := userConfigDir
	dataBase := userDataDir
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	}

	appConfigDir := filepath.Join(configBase, appName)
	appDataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(appConfigDir, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, appName+".db"),
		TokenPath:  filepath.Join(appConfigDir, "token.toml"),
	}, nil
}
