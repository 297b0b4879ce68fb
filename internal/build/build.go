// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build runs recipes through the pipeline: derive the descriptor,
// install system prerequisites, acquire the source, plan, execute and
// collect the package. Each (recipe, platform) pair owns its working
// directory and package directory, so pipelines run in parallel.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goplus/cook/internal/build/lockedfile"
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/env"
	"github.com/goplus/cook/internal/executor"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/internal/recipes"
	"github.com/goplus/cook/internal/source"
	"github.com/goplus/cook/internal/sysdeps"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
	"github.com/qiniu/x/log"
)

// Target is one requested recipe with its own option assignments.
type Target struct {
	ID      module.Version
	Options map[string]string
}

func (t Target) String() string {
	if len(t.Options) == 0 {
		return t.ID.String()
	}
	var b strings.Builder
	b.WriteString(t.ID.String())
	for i, k := range sortedKeys(t.Options) {
		if i == 0 {
			b.WriteByte('[')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(k + "=" + t.Options[k])
	}
	b.WriteByte(']')
	return b.String()
}

// Options configures a Builder. Zero fields take defaults.
type Options struct {
	WorkspaceDir string // defaults to env.WorkspaceDir
	PackageDir   string // defaults to env.PackageDir

	// Platform is the base descriptor. Its options are ignored: every
	// recipe derives its own from Global and the target options.
	Platform platform.Descriptor
	// Global options apply to the recipes that declare them.
	Global map[string]string

	Jobs        int           // concurrent recipes, defaults to runtime.NumCPU
	CompileJobs int           // parallel jobs passed to the native build
	Timeout     time.Duration // per-recipe build timeout, 0 for none
	Force       bool          // rebuild even if a cached package matches

	// Output receives the toolchain output. Nil discards it.
	Output io.Writer

	Runner   executor.Runner
	Acquirer *source.Acquirer
	Fence    *sysdeps.Fence
	Lookup   func(module.Version) (*recipes.Recipe, error)
}

// Builder runs recipe pipelines.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options) (*Builder, error) {
	var err error
	if opts.WorkspaceDir == "" {
		if opts.WorkspaceDir, err = env.WorkspaceDir(); err != nil {
			return nil, err
		}
	}
	if opts.PackageDir == "" {
		if opts.PackageDir, err = env.PackageDir(); err != nil {
			return nil, err
		}
	}
	if opts.Platform.OS() == "" {
		opts.Platform = platform.Host(nil)
	}
	if opts.Jobs < 1 {
		opts.Jobs = runtime.NumCPU()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Runner == nil {
		opts.Runner = executor.ExecRunner{}
	}
	if opts.Acquirer == nil {
		opts.Acquirer = source.New()
	}
	if opts.Fence == nil {
		opts.Fence = sysdeps.NewFence(opts.Runner)
	}
	if opts.Lookup == nil {
		opts.Lookup = recipes.Lookup
	}
	return &Builder{opts: opts}, nil
}

// Platform returns the base descriptor of b.
func (b *Builder) Platform() platform.Descriptor { return b.opts.Platform }

// configure derives the descriptor of t and checks that its recipe has a
// rule for it. No network or process work happens before it succeeds.
func (b *Builder) configure(t Target) (*recipes.Recipe, platform.Descriptor, source.Spec, error) {
	r, err := b.opts.Lookup(t.ID)
	if err != nil {
		return nil, platform.Descriptor{}, nil, stageErr(StageConfigure, err)
	}
	raw := r.FilterOptions(b.opts.Global)
	maps.Copy(raw, t.Options)
	d, err := r.Descriptor(b.opts.Platform, raw)
	if err != nil {
		return nil, platform.Descriptor{}, nil, stageErr(StageConfigure, err)
	}
	if err := plan.Supports(r.ID.String(), r.Rules, d); err != nil {
		return nil, d, nil, stageErr(StagePlan, err)
	}
	spec, err := r.SourceSpec()
	if err != nil {
		return nil, d, nil, stageErr(StageConfigure, err)
	}
	return r, d, spec, nil
}

// checkGlobal rejects batch-wide options that no recipe among targets
// declares. Targets whose recipe is unknown fail on their own later.
func (b *Builder) checkGlobal(targets []Target) error {
	if len(b.opts.Global) == 0 {
		return nil
	}
	declared := make(map[string]bool)
	for _, t := range targets {
		r, err := b.opts.Lookup(t.ID)
		if err != nil {
			continue
		}
		for name := range r.Options {
			declared[name] = true
		}
	}
	for _, name := range sortedKeys(b.opts.Global) {
		if !declared[name] {
			return &platform.ConfigurationError{Option: name, Reason: "not declared by any recipe being built"}
		}
	}
	return nil
}

// Plan returns the plan of t without acquiring its source.
func (b *Builder) Plan(t Target) (*plan.Plan, error) {
	if err := b.checkGlobal([]Target{t}); err != nil {
		return nil, stageErr(StageConfigure, err)
	}
	r, d, spec, err := b.configure(t)
	if err != nil {
		return nil, err
	}
	ws, err := b.workDir(r.ID, d)
	if err != nil {
		return nil, stageErr(StagePlan, err)
	}
	p, err := plan.New(b.planRequest(r, d, ws, &source.WorkingSource{
		Dir:          filepath.Join(ws, r.ID.SourceDirName()),
		Locator:      spec.Locator(),
		Reproducible: spec.Reproducible(),
	}), r.Rules)
	return p, stageErr(StagePlan, err)
}

func (b *Builder) planRequest(r *recipes.Recipe, d platform.Descriptor, ws string, src *source.WorkingSource) plan.Request {
	return plan.Request{
		Recipe:     r.ID,
		Source:     src,
		Descriptor: d,
		BuildDir:   filepath.Join(ws, "build"),
		InstallDir: filepath.Join(ws, "install"),
		Jobs:       b.opts.CompileJobs,
	}
}

// Build runs the pipeline of t. The returned outcome is never nil.
func (b *Builder) Build(ctx context.Context, t Target) *Outcome {
	return b.run(ctx, t, b.checkGlobal([]Target{t}))
}

// run builds t unless the batch-wide options were rejected with optErr.
func (b *Builder) run(ctx context.Context, t Target, optErr error) *Outcome {
	start := time.Now()
	var o *Outcome
	if optErr != nil {
		o = &Outcome{Status: StatusFailed, Err: stageErr(StageConfigure, optErr)}
	} else {
		o = b.build(ctx, t)
	}
	o.Target = t
	o.Duration = time.Since(start)
	if o.Err != nil {
		var se *StageError
		if errors.As(o.Err, &se) {
			o.Stage = se.Stage
		}
		if o.Status == "" {
			o.Status = StatusFailed
		}
		log.Warnf("%s: %s: %v", t, o.Status, o.Err)
	}
	return o
}

func (b *Builder) build(ctx context.Context, t Target) *Outcome {
	if ctx.Err() != nil {
		return &Outcome{Status: StatusCancelled, Err: stageErr(StageConfigure, executor.ErrCancelled)}
	}
	r, d, spec, err := b.configure(t)
	if err != nil {
		o := &Outcome{Err: err}
		if d.OS() != "" {
			o.Platform = d.Key()
		}
		return o
	}
	o := &Outcome{Platform: d.Key()}

	ws, err := b.workDir(r.ID, d)
	if err == nil {
		err = os.MkdirAll(ws, 0o755)
	}
	if err != nil {
		o.Err = stageErr(StageConfigure, err)
		return o
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(ws, ".lock")).Lock()
	if err != nil {
		o.Err = stageErr(StageConfigure, err)
		return o
	}
	defer unlock()

	// Checked after locking: another process may have just built it.
	if spec.Reproducible() && !b.opts.Force {
		if a, ok := b.cached(r.ID, d); ok {
			log.Infof("%s: using cached package %s", r.ID, a.Dir)
			o.Status, o.Artifact = StatusCached, a
			return o
		}
	}

	if err := b.opts.Fence.Ensure(ctx, r.ID.String(), r.SystemPackages); err != nil {
		return b.fail(ctx, o, StagePrerequisites, err)
	}

	log.Infof("%s: acquiring %s", r.ID, spec.Locator())
	src, err := b.opts.Acquirer.Acquire(ctx, r.ID, spec, ws)
	if err != nil {
		return b.fail(ctx, o, StageSource, err)
	}

	req := b.planRequest(r, d, ws, src)
	if err := os.RemoveAll(req.InstallDir); err != nil {
		return b.fail(ctx, o, StagePlan, err)
	}
	p, err := plan.New(req, r.Rules)
	if err != nil {
		return b.fail(ctx, o, StagePlan, err)
	}

	exec := &executor.Executor{Runner: b.opts.Runner, Output: b.opts.Output, Timeout: b.opts.Timeout}
	res := exec.Execute(ctx, p)
	o.Result = res
	switch res.Status {
	case executor.Cancelled:
		o.Status, o.Err = StatusCancelled, stageErr(StageBuild, res.Err)
		return o
	case executor.Failed:
		o.Err = stageErr(StageBuild, res.Err)
		return o
	}

	a, err := b.publish(r, p, src)
	if err != nil {
		return b.fail(ctx, o, StagePackage, err)
	}
	if src.Reproducible {
		if err := b.record(r.ID, d, a); err != nil {
			log.Warnf("%s: cannot record package in cache: %v", r.ID, err)
		}
	}
	o.Status, o.Artifact = StatusBuilt, a
	return o
}

// fail records err at stage. Errors caused by ctx are cancellations.
func (b *Builder) fail(ctx context.Context, o *Outcome, stage Stage, err error) *Outcome {
	if ctx.Err() != nil {
		o.Status = StatusCancelled
		if !errors.Is(err, executor.ErrCancelled) {
			err = fmt.Errorf("%w: %v", executor.ErrCancelled, err)
		}
	}
	o.Err = stageErr(stage, err)
	return o
}

// publish collects the package into a staging directory and moves it into
// place, so the package directory never holds a partial package.
func (b *Builder) publish(r *recipes.Recipe, p *plan.Plan, src *source.WorkingSource) (*collect.Artifact, error) {
	dest, err := b.packageDir(r.ID, p.Descriptor)
	if err != nil {
		return nil, err
	}
	staging := filepath.Join(filepath.Dir(dest), ".staging-"+uuid.NewString())
	locator := src.Locator
	if src.Digest != "" {
		locator += "@" + src.Digest.String()
	}
	a, err := collect.Collect(collect.Request{
		Plan:        p,
		Dest:        staging,
		Description: r.Description,
		Source:      locator,
		Revision:    src.Revision,
		Rules:       r.Package,
	})
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	if err := os.Rename(staging, dest); err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	a.Dir = dest
	return a, nil
}

// Installed returns the published package of t, verified against its
// metadata record.
func (b *Builder) Installed(t Target) (*collect.Artifact, error) {
	r, d, _, err := b.configure(t)
	if err != nil {
		return nil, err
	}
	dir, err := b.packageDir(r.ID, d)
	if err != nil {
		return nil, err
	}
	a, err := collect.Load(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s is not built for %s", r.ID, d)
	}
	return a, err
}

// Clean removes the working directories. With packages set it also removes
// every published package and the package cache.
func (b *Builder) Clean(packages bool) error {
	dirs := []string{b.opts.WorkspaceDir}
	if packages {
		dirs = append(dirs, b.opts.PackageDir)
	}
	for _, dir := range dirs {
		log.Infof("removing %s", dir)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
