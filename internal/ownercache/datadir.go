package ownercache

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// cacheDirName is the subdirectory within the user's cache directory
	// where the owner cache document is stored.
	cacheDirName = "rallyterm"
)

// DefaultDir returns the default cache directory for the owner cache.
func DefaultDir() (string, error) {
	var cacheDir string

	// Try XDG_CACHE_HOME first, then fall back to the platform default.
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		cacheDir = xdgCacheHome
	} else {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("cannot obtain user cache dir: %w", err)
		}
		cacheDir = userCacheDir
	}

	return filepath.Join(cacheDir, cacheDirName), nil
}
