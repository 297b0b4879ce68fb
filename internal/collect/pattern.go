package collect

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/platform"
)

// Kind is an artifact category. Each kind has a canonical subdirectory in
// the published package.
type Kind int

const (
	Header Kind = iota
	Library
	Binary
	License
)

var kindDirs = [...]string{Header: "include", Library: "lib", Binary: "bin", License: "licenses"}
var kindNames = [...]string{Header: "header", Library: "library", Binary: "binary", License: "license"}

func (k Kind) String() string { return kindNames[k] }

// Subdir returns the package subdirectory of k.
func (k Kind) Subdir() string { return kindDirs[k] }

// Root is the tree a pattern is evaluated in.
type Root int

const (
	FromInstall Root = iota
	FromSource
	FromBuild
)

// Pattern selects files of one kind. Globs match file base names; an empty
// Globs for libraries and binaries means the plan's output patterns.
type Pattern struct {
	Selector platform.Selector
	Kind     Kind
	From     Root
	// Dir is relative to the root. "${build_type}" expands to the CMake
	// configuration name.
	Dir        string
	Globs      []string
	Recursive  bool
	KeepPath   bool // keep the path below Dir in the destination
	IgnoreCase bool
}

func (p Pattern) globs(pl *plan.Plan) []string {
	if len(p.Globs) > 0 {
		return p.Globs
	}
	switch p.Kind {
	case Library:
		return pl.Outputs.Libraries
	case Binary:
		return pl.Outputs.Binaries
	}
	return nil
}

func (p Pattern) dir(pl *plan.Plan) string {
	var root string
	switch p.From {
	case FromSource:
		root = pl.SourceDir
	case FromBuild:
		root = pl.BuildDir
	default:
		root = pl.InstallDir
	}
	dir := strings.ReplaceAll(p.Dir, "${build_type}", pl.Descriptor.BuildType().CMakeName())
	return filepath.Join(root, filepath.FromSlash(dir))
}

func (p Pattern) match(globs []string, name string) bool {
	if p.IgnoreCase {
		name = strings.ToLower(name)
	}
	for _, g := range globs {
		if p.IgnoreCase {
			g = strings.ToLower(g)
		}
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// copyMatches copies every file matched by p into dest/<kind subdir> and
// returns the destination paths relative to dest, slash-separated.
func (p Pattern) copyMatches(pl *plan.Plan, dest string) ([]string, error) {
	globs := p.globs(pl)
	if len(globs) == 0 {
		return nil, nil
	}
	dir := p.dir(pl)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var copied []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !p.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.match(globs, d.Name()) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				return nil
			}
		}
		rel := d.Name()
		if p.KeepPath {
			if rel, err = filepath.Rel(dir, path); err != nil {
				return err
			}
		}
		to := filepath.Join(dest, p.Kind.Subdir(), rel)
		if err := copyFile(path, to); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(filepath.Join(p.Kind.Subdir(), rel)))
		return nil
	})
	return copied, err
}

// copyFile copies src to dst, following symlinks.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
