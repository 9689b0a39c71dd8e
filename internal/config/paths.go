package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the data directory.
const HomeEnv = "MADHUBANI_HOME"

// Paths are the on-disk locations the application uses.
type Paths struct {
	Home   string
	DB     string
	Log    string
	Tuning string
	Web    string
}

// DefaultPaths resolves paths under $MADHUBANI_HOME, or ~/.madhubani when
// unset. The home directory is created if missing.
func DefaultPaths() (Paths, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("get home directory: %w", err)
		}
		home = filepath.Join(userHome, ".madhubani")
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return Paths{}, fmt.Errorf("create data directory: %w", err)
	}

	return Paths{
		Home:   home,
		DB:     filepath.Join(home, "madhubani.db"),
		Log:    filepath.Join(home, "logs", "madhubani.log"),
		Tuning: filepath.Join(home, "tuning.json"),
		Web:    FindWebDir(home),
	}, nil
}

// FindWebDir searches for the web directory in common locations:
// "web", "../web", "../../web", then <home>/web. It returns the first
// existing directory or "" if none is found.
func FindWebDir(home string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	if home == "" {
		return ""
	}
	homeWeb := filepath.Join(home, "web")
	if info, err := os.Stat(homeWeb); err == nil && info.IsDir() {
		return homeWeb
	}
	return ""
}
