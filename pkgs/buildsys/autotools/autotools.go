// Package autotools generates the classic configure/make/make-install steps.
package autotools

import (
	"maps"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goplus/cook/pkgs/buildsys"
)

// AutoTools generates Autotools-style build steps. Builds run in buildDir;
// when buildDir equals the source directory the build is in-tree.
type AutoTools struct {
	sourceDir  string
	buildDir   string
	installDir string
	jobs       int
	env        map[string]string
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New returns an AutoTools for the given source, build and install directories.
func New(sourceDir, buildDir, installDir string) *AutoTools {
	return &AutoTools{
		sourceDir:  sourceDir,
		buildDir:   buildDir,
		installDir: installDir,
		env:        make(map[string]string),
	}
}

// Source overrides the source directory.
func (a *AutoTools) Source(dir string) { a.sourceDir = dir }

// InstallDir overrides the --prefix directory.
func (a *AutoTools) InstallDir(dir string) { a.installDir = dir }

// Jobs sets make's -j. Zero leaves make serial.
func (a *AutoTools) Jobs(n int) *AutoTools {
	a.jobs = n
	return a
}

// Env sets key=value for every step generated afterwards.
func (a *AutoTools) Env(key, value string) {
	a.env[key] = value
}

// AppendFlag appends a space-separated flag to an env var of the steps
// generated afterwards.
func (a *AutoTools) AppendFlag(key, flag string) {
	if cur := a.env[key]; cur != "" {
		flag = cur + " " + flag
	}
	a.env[key] = strings.TrimSpace(flag)
}

// Configure returns the configure step with --prefix set to the install dir.
func (a *AutoTools) Configure(args ...string) buildsys.Step {
	configArgs := []string{}
	if a.installDir != "" {
		configArgs = append(configArgs, "--prefix="+a.installDir)
	}
	configArgs = append(configArgs, args...)
	return a.step(buildsys.Configure, filepath.Join(a.sourceDir, "configure"), configArgs)
}

// Build returns "make" (or the provided command) in the build directory.
func (a *AutoTools) Build(args ...string) buildsys.Step {
	if len(args) > 0 {
		return a.step(buildsys.Compile, args[0], args[1:])
	}
	makeArgs := []string{}
	if a.jobs > 0 {
		makeArgs = append(makeArgs, "-j"+strconv.Itoa(a.jobs))
	}
	return a.step(buildsys.Compile, "make", makeArgs)
}

// Install returns "make install" (or the provided command) in the build
// directory.
func (a *AutoTools) Install(args ...string) buildsys.Step {
	if len(args) > 0 {
		return a.step(buildsys.Install, args[0], args[1:])
	}
	return a.step(buildsys.Install, "make", []string{"install"})
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.buildDir
}

func (a *AutoTools) step(phase buildsys.Phase, exe string, args []string) buildsys.Step {
	return buildsys.Step{
		Phase: phase,
		Dir:   a.buildDir,
		Exe:   exe,
		Args:  args,
		Env:   maps.Clone(a.env),
	}
}
