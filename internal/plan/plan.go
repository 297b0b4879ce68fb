// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plan turns an unpacked source tree and a platform descriptor into
// an ordered list of toolchain invocations.
package plan

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/goplus/cook/internal/source"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/pkgs/buildsys/autotools"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
	"github.com/qiniu/x/log"
)

// Plan is the build of one recipe for one descriptor. Plans are produced
// fresh for every build and never reused across descriptors.
type Plan struct {
	Recipe     module.Version
	Descriptor platform.Descriptor
	SourceDir  string
	BuildDir   string
	InstallDir string
	// Env is the prepared environment layered under every step.
	Env          map[string]string
	Steps        []buildsys.Step
	Outputs      Outputs
	Reproducible bool
}

// Request is the input of New.
type Request struct {
	Recipe     module.Version
	Source     *source.WorkingSource
	Descriptor platform.Descriptor
	BuildDir   string
	InstallDir string
	Jobs       int
}

// Context is what a Template sees.
type Context struct {
	Recipe     module.Version
	Descriptor platform.Descriptor
	SourceDir  string
	BuildDir   string
	InstallDir string
	Jobs       int
	Env        map[string]string
}

// New plans req with rules. An (os, compiler) pair missing from rules fails
// with *UnsupportedPlatformError.
func New(req Request, rules Table) (*Plan, error) {
	d := req.Descriptor
	name := req.Recipe.String()
	if err := Supports(name, rules, d); err != nil {
		return nil, err
	}
	rule, _ := rules.Lookup(d)
	outputs, _ := outputsFor(d)

	ctx := &Context{
		Recipe:     req.Recipe,
		Descriptor: d,
		SourceDir:  req.Source.Dir,
		BuildDir:   req.BuildDir,
		InstallDir: req.InstallDir,
		Jobs:       req.Jobs,
		Env:        Environment(d),
	}
	steps, err := rule.Template(ctx)
	if err != nil {
		var upe *UnsupportedPlatformError
		if errors.As(err, &upe) {
			return nil, err
		}
		return nil, &UnsupportedPlatformError{Recipe: name, OS: string(d.OS()), Compiler: d.Compiler(), Reason: err.Error()}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%s: rule for %s/%s produced no steps", name, d.OS(), d.Compiler())
	}

	for i := range steps {
		env := maps.Clone(ctx.Env)
		maps.Copy(env, steps[i].Env)
		steps[i].Env = env
		if steps[i].Dir == "" {
			steps[i].Dir = req.BuildDir
		}
	}
	slices.SortStableFunc(steps, func(a, b buildsys.Step) int {
		return cmp.Compare(a.Phase, b.Phase)
	})

	p := &Plan{
		Recipe:       req.Recipe,
		Descriptor:   d,
		SourceDir:    req.Source.Dir,
		BuildDir:     req.BuildDir,
		InstallDir:   req.InstallDir,
		Env:          ctx.Env,
		Steps:        steps,
		Outputs:      outputs,
		Reproducible: req.Source.Reproducible,
	}
	if !p.Reproducible {
		log.Warnf("%s: planned from a floating source, output is not reproducible", name)
	}
	log.Debugf("%s: planned %d steps for %s", name, len(steps), d)
	return p, nil
}

// Print writes a readable form of p to w.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "# %s for %s\n", p.Recipe, p.Descriptor)
	if !p.Reproducible {
		fmt.Fprintln(w, "# floating source: not reproducible")
	}
	for _, k := range slices.Sorted(maps.Keys(p.Env)) {
		fmt.Fprintf(w, "%-9s %s=%s\n", buildsys.Prepare, k, p.Env[k])
	}
	for i, s := range p.Steps {
		fmt.Fprintf(w, "%-9s [%d] (cd %s && %s)\n", s.Phase, i, s.Dir, s.CommandLine())
	}
}

// Sub returns a path below the source tree.
func (c *Context) Sub(elem ...string) string {
	return filepath.Join(append([]string{c.SourceDir}, elem...)...)
}

var msvcPlatforms = map[string]string{"x86_64": "x64", "x86": "Win32", "armv8": "ARM64"}

// CMake returns a cmake step generator for the source subdirectory subdir,
// preconfigured from the descriptor: build type, generator, shared and
// position independent code.
func (c *Context) CMake(subdir string) (*cmake.CMake, error) {
	d := c.Descriptor
	m := cmake.New(c.Sub(subdir), c.BuildDir, c.InstallDir).
		BuildType(d.BuildType().CMakeName()).
		Jobs(c.Jobs)

	switch {
	case d.OS() == platform.Windows && d.Compiler() == "msvc":
		arch, ok := msvcPlatforms[d.Arch()]
		if !ok {
			return nil, fmt.Errorf("no generator platform for %s", d.Arch())
		}
		m.Platform(arch)
	case d.OS() == platform.Windows && d.Compiler() == "gcc":
		m.Generator("MinGW Makefiles")
	}

	m.DefineBool("BUILD_SHARED_LIBS", d.Shared())
	if _, ok := d.Option(platform.OptionFPIC); ok {
		m.DefineBool("CMAKE_POSITION_INDEPENDENT_CODE", d.Bool(platform.OptionFPIC))
	}
	for k, v := range c.Env {
		m.Env(k, v)
	}
	return m, nil
}

// AutoTools returns an autotools step generator. The build runs inside the
// source tree when inTree is set.
func (c *Context) AutoTools(inTree bool) *autotools.AutoTools {
	build := c.BuildDir
	if inTree {
		build = c.SourceDir
	}
	a := autotools.New(c.SourceDir, build, c.InstallDir).Jobs(c.Jobs)
	for k, v := range c.Env {
		a.Env(k, v)
	}
	return a
}
