// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	_ "crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/cook/internal/vcs"
	"github.com/goplus/cook/mod/module"
	"github.com/opencontainers/go-digest"
	"github.com/qiniu/x/log"
)

// Spec describes where the source of a recipe comes from. It is either
// Pinned or Floating; the two are never interchangeable because only a
// Pinned source yields a reproducible build.
type Spec interface {
	Locator() string
	Reproducible() bool
	isSpec()
}

// Pinned is a versioned archive at a fixed URL.
type Pinned struct {
	URL    string
	Format Format
	// Integrity is the expected digest of the archive. An empty Integrity is
	// an accepted risk and is logged as a warning on every download.
	Integrity digest.Digest
	// Root names the top-level directory inside the archive that becomes the
	// source tree. When empty, a single top-level directory is stripped.
	Root string
}

func (p Pinned) Locator() string    { return p.URL }
func (p Pinned) Reproducible() bool { return true }
func (Pinned) isSpec()              {}

// Floating is a VCS reference that moves over time (e.g. the default
// branch). Its output is never reproducible and never cached.
type Floating struct {
	Repo string
	Ref  string
}

func (f Floating) Locator() string    { return f.Repo + "#" + f.Ref }
func (f Floating) Reproducible() bool { return false }
func (Floating) isSpec()              {}

// WorkingSource is an unpacked source tree ready for planning.
type WorkingSource struct {
	Dir          string
	Locator      string
	Reproducible bool
	Digest       digest.Digest // archive digest, pinned sources only
	Revision     string        // checked out commit, floating sources only
	Reused       bool          // the tree was already present and complete
}

// Acquirer retrieves and unpacks sources. It keeps no state between calls.
type Acquirer struct {
	Client *http.Client
	VCS    vcs.VCS
}

// New returns an Acquirer with a default HTTP client and git.
func New() *Acquirer {
	return &Acquirer{
		Client: &http.Client{Timeout: 30 * time.Minute},
		VCS:    vcs.NewGitVCS(),
	}
}

// Acquire makes the source of id available under root as
// "<name>-<version>_sources". Re-acquiring into a fully populated tree that
// matches spec is a no-op.
func (a *Acquirer) Acquire(ctx context.Context, id module.Version, spec Spec, root string) (*WorkingSource, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, id.SourceDirName())

	switch spec := spec.(type) {
	case Pinned:
		return a.acquirePinned(ctx, id, spec, root, dir)
	case Floating:
		return a.acquireFloating(ctx, id, spec, dir)
	}
	return nil, fmt.Errorf("%w: unknown source kind %T", ErrUnsupportedFormat, spec)
}

func (a *Acquirer) acquirePinned(ctx context.Context, id module.Version, spec Pinned, root, dir string) (*WorkingSource, error) {
	if spec.Integrity != "" {
		if err := spec.Integrity.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid declared digest: %v", ErrIntegrity, id, err)
		}
	}
	format, err := resolveFormat(spec.Format, spec.URL)
	if err != nil {
		return nil, err
	}

	if m, err := readMarker(dir); err == nil && m.matchesPinned(spec) {
		log.Debugf("%s: source already present at %s", id, dir)
		return m.workingSource(dir, true), nil
	}

	if spec.Integrity == "" {
		log.Warnf("%s: no integrity hash declared for %s, accepting the archive unverified", id, spec.URL)
	}

	archive, got, err := a.download(ctx, spec.URL, root, spec.Integrity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	defer os.Remove(archive)

	if spec.Integrity != "" && got != spec.Integrity {
		return nil, fmt.Errorf("%w: %s: %s has digest %s, want %s", ErrIntegrity, id, spec.URL, got, spec.Integrity)
	}

	tmp, err := os.MkdirTemp(root, ".extract-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	if err := extract(archive, format, tmp); err != nil {
		return nil, fmt.Errorf("%s: extract %s: %w", id, spec.URL, err)
	}
	top, err := contentRoot(tmp, spec.Root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.Rename(top, dir); err != nil {
		return nil, err
	}

	m := &marker{Locator: spec.URL, Integrity: spec.Integrity, Digest: got, Reproducible: true}
	if err := writeMarker(dir, m); err != nil {
		return nil, err
	}
	log.Infof("%s: unpacked %s into %s", id, spec.URL, dir)
	return m.workingSource(dir, false), nil
}

func (a *Acquirer) acquireFloating(ctx context.Context, id module.Version, spec Floating, dir string) (*WorkingSource, error) {
	log.Warnf("%s: floating source %s, the build is not reproducible", id, spec.Locator())

	if a.VCS == nil {
		return nil, fmt.Errorf("%w: %s: no version control driver", ErrNetwork, id)
	}
	if err := a.VCS.Sync(ctx, spec.Repo, spec.Ref, dir); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, id, err)
	}
	rev, err := a.VCS.Head(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	m := &marker{Locator: spec.Locator(), Revision: rev}
	if err := writeMarker(dir, m); err != nil {
		return nil, err
	}
	log.Infof("%s: floating source resolved to %s", id, rev)
	return m.workingSource(dir, false), nil
}

// contentRoot returns the directory inside tmp that becomes the source tree.
func contentRoot(tmp, root string) (string, error) {
	if root != "" {
		dir := filepath.Join(tmp, root)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("archive has no top-level directory %q", root)
		}
		return dir, nil
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(tmp, entries[0].Name()), nil
	}
	return tmp, nil
}
