// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDBPath is where the local SQLite database lives unless configured
// otherwise.
func DefaultDBPath() string {
	return ExpandPath("~/.local/share/taxikko/taxikko.db")
}

// DefaultSessionStatePath is where the rehydratable shift session state is
// kept between invocations.
func DefaultSessionStatePath() string {
	return ExpandPath("~/.local/state/taxikko/session.json")
}
