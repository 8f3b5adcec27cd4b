package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnv points the node at a state directory other than ~/.config/nodeweave.
	HomeEnv       = "NODEWEAVE_HOME"
	defaultSubDir = ".config/nodeweave"
)

// StateDir is where the node keeps its config file and sqlite database.
// It is created on first use.
func StateDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("state dir: %w", err)
		}
		dir = filepath.Join(home, defaultSubDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("state dir %s: %w", dir, err)
	}
	return dir, nil
}

// ResolveFilePath places a config or database file. Absolute paths and files
// present in the working directory win; otherwise the file lives in StateDir,
// whether or not it exists yet.
func ResolveFilePath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	if _, err := os.Stat(filename); err == nil {
		return filename
	}
	dir, err := StateDir()
	if err != nil {
		return filename
	}
	return filepath.Join(dir, filename)
}
