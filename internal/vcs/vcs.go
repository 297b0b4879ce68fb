// Package vcs checks out floating sources from remote repositories.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultRef names the remote's default branch.
const DefaultRef = "HEAD"

// VCS is the set of repository operations a floating source needs.
type VCS interface {
	// Sync leaves dir holding a clean checkout of ref from remote. An empty
	// ref means DefaultRef. dir is initialized on first use and fetched
	// into on later calls; local edits are discarded.
	Sync(ctx context.Context, remote, ref, dir string) error

	// Head reports the commit checked out in dir.
	Head(ctx context.Context, dir string) (string, error)

	// Latest reports the commit remote's default branch points at.
	Latest(ctx context.Context, remote string) (string, error)
}

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return "git " + e.Args[0] + ": " + e.Stderr
	}
	return "git " + e.Args[0] + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// ErrNoHead reports a remote without a default branch.
var ErrNoHead = errors.New("remote has no HEAD")

type git struct {
	exe string
}

// GitOption configures the git implementation.
type GitOption func(*git)

// WithGitPath runs the git executable at path instead of the one on PATH.
func WithGitPath(path string) GitOption {
	return func(g *git) { g.exe = path }
}

// NewGitVCS returns a VCS backed by the git command.
func NewGitVCS(opts ...GitOption) VCS {
	g := &git{exe: "git"}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *git) Sync(ctx context.Context, remote, ref, dir string) error {
	if ref == "" {
		ref = DefaultRef
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if _, err := g.exec(ctx, dir, "init", "--quiet"); err != nil {
			return err
		}
	}
	// Only the tip is built, so history is never fetched.
	if _, err := g.exec(ctx, dir, "fetch", "--quiet", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("sync %s#%s: %w", remote, ref, err)
	}
	if _, err := g.exec(ctx, dir, "checkout", "--quiet", "--force", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("sync %s#%s: %w", remote, ref, err)
	}
	_, err := g.exec(ctx, dir, "clean", "-fdxq")
	return err
}

func (g *git) Head(ctx context.Context, dir string) (string, error) {
	out, err := g.exec(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *git) Latest(ctx context.Context, remote string) (string, error) {
	out, err := g.exec(ctx, "", "ls-remote", remote, DefaultRef)
	if err != nil {
		return "", err
	}
	// <hash>\tHEAD
	hash, _, _ := strings.Cut(strings.TrimSpace(out), "\t")
	if hash == "" {
		return "", fmt.Errorf("%s: %w", remote, ErrNoHead)
	}
	return hash, nil
}

// exec runs git with args in dir and returns its standard output.
func (g *git) exec(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.exe, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}
