package env

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// EnvWorkspace names the environment variable overriding WorkspaceDir.
	EnvWorkspace = "COOK_WORKSPACE"
	// EnvPackages names the environment variable overriding PackageDir.
	EnvPackages = "COOK_PACKAGES"
)

// WorkspaceDir returns the root under which per-recipe working directories
// are created, creating it with 0700 permissions if needed.
//
//	Linux:  $XDG_CACHE_HOME/cook/work
//	macOS:  ~/Library/Caches/cook/work
func WorkspaceDir() (string, error) {
	return ensure(EnvWorkspace, filepath.Join(xdg.CacheHome, "cook", "work"))
}

// PackageDir returns the root of published packages, creating it with 0700
// permissions if needed.
//
//	Linux:  $XDG_DATA_HOME/cook/packages
//	macOS:  ~/Library/Application Support/cook/packages
func PackageDir() (string, error) {
	return ensure(EnvPackages, filepath.Join(xdg.DataHome, "cook", "packages"))
}

func ensure(key, def string) (string, error) {
	dir := def
	if v := os.Getenv(key); v != "" {
		dir = v
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
