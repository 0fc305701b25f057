package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const defaultAppName = "loantrack"

// Paths holds the resolved per-user file locations.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
}

// Options selects the app directory name. DevMode keeps development state
// apart from the live pipeline.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPathsWithOptions resolves the config file and database locations
// for the current platform.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configBase, dataBase, err := baseDirs(runtime.GOOS, os.Getenv)
	if err != nil {
		return Paths{}, err
	}
	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
	}, nil
}

// baseDirs picks the config and data roots for one platform. XDG variables
// win on linux, the AppData pair wins on windows, and everything else keeps
// the os.UserConfigDir default for both roots.
func baseDirs(goos string, getenv func(string) string) (string, string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("user config dir: %w", err)
	}
	dataBase := configBase

	switch goos {
	case "linux":
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", "", fmt.Errorf("user home dir: %w", homeErr)
		}
		dataBase = filepath.Join(home, ".local", "share")
		if v := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv("XDG_DATA_HOME")); v != "" {
			dataBase = v
		}
	case "windows":
		if v := strings.TrimSpace(getenv("APPDATA")); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv("LOCALAPPDATA")); v != "" {
			dataBase = v
		}
	}
	return configBase, dataBase, nil
}
