// Package module defines the module.Version type, the identity of a recipe,
// along with support code.
package module

import (
	"fmt"
	"path/filepath"
	"strings"
)

// A Version (for clients, a module.Version) identifies one package: the
// recipe name and the exact version it builds. Consumers always pin both.
type Version struct {
	Name    string // Recipe name, e.g. "glew"
	Version string // Version string, e.g. "2.1.0" or "latest"
}

// Parse parses "name@version".
func Parse(s string) (Version, error) {
	name, version, ok := strings.Cut(s, "@")
	if !ok || name == "" || version == "" {
		return Version{}, fmt.Errorf("invalid recipe reference %q, expected name@version", s)
	}
	return Version{Name: name, Version: version}, nil
}

func (v Version) String() string {
	return v.Name + "@" + v.Version
}

// SourceDirName returns the deterministic name of the unpacked source tree:
// "<name>-<version>_sources".
func (v Version) SourceDirName() string {
	return v.Name + "-" + v.Version + "_sources"
}

// EscapePath returns the escaped form of the given name as a valid
// file system path. It fails if the name is invalid.
func EscapePath(path string) (escaped string, err error) {
	if path == "" || strings.ContainsAny(path, `/\`) {
		return "", fmt.Errorf("invalid path element %q", path)
	}
	return filepath.Localize(path)
}
