// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recipes declares the built-in recipes. A recipe is static data:
// where its source lives, which options it accepts, and the rule tables
// that plan, package and link it for each platform.
package recipes

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/internal/source"
	"github.com/goplus/cook/internal/sysdeps"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
	"github.com/opencontainers/go-digest"
	"github.com/qiniu/x/log"
)

// Source declares where a recipe's source comes from. URL, Repo and Ref are
// templates over the recipe identity, e.g. "glew-{{.Version}}.tgz".
// A non-empty Repo declares a floating source.
type Source struct {
	URL       string
	Format    source.Format
	Integrity digest.Digest
	Root      string

	Repo string
	Ref  string
}

// Drop removes an option from descriptors matched by Selector.
type Drop struct {
	Selector platform.Selector
	Option   string
}

// Recipe describes how to obtain, build and package one library version.
type Recipe struct {
	ID          module.Version
	Description string
	Homepage    string
	License     string

	Source  Source
	Options platform.Schema
	Drops   []Drop

	SystemPackages sysdeps.Packages
	Rules          plan.Table
	Package        collect.Rules
}

var funcs = template.FuncMap{
	"replace": strings.ReplaceAll,
	"lower":   strings.ToLower,
}

func (r *Recipe) expand(name, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%s: %s template: %w", r.ID, name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, r.ID); err != nil {
		return "", fmt.Errorf("%s: %s template: %w", r.ID, name, err)
	}
	return b.String(), nil
}

// SourceSpec resolves the source declaration into a pinned or floating spec.
func (r *Recipe) SourceSpec() (source.Spec, error) {
	if r.Source.Repo != "" {
		repo, err := r.expand("repo", r.Source.Repo)
		if err != nil {
			return nil, err
		}
		ref, err := r.expand("ref", r.Source.Ref)
		if err != nil {
			return nil, err
		}
		return source.Floating{Repo: repo, Ref: ref}, nil
	}
	url, err := r.expand("url", r.Source.URL)
	if err != nil {
		return nil, err
	}
	return source.Pinned{URL: url, Format: r.Source.Format, Integrity: r.Source.Integrity, Root: r.Source.Root}, nil
}

// Floating reports whether the recipe builds from a moving reference.
func (r *Recipe) Floating() bool { return r.Source.Repo != "" }

// Descriptor derives the descriptor of this recipe from base, whose own
// options are ignored, and the raw option assignments. Unknown options and
// ill-typed values are configuration errors. Options dropped for the target
// platform are removed from the derived descriptor.
func (r *Recipe) Descriptor(base platform.Descriptor, raw map[string]string) (platform.Descriptor, error) {
	opts, err := r.Options.Resolve(raw)
	if err != nil {
		return platform.Descriptor{}, fmt.Errorf("%s: %w", r.ID, err)
	}
	d := platform.New(base.OS(), base.Compiler(), base.Arch(), base.BuildType(), opts)
	for _, drop := range r.Drops {
		if _, ok := d.Option(drop.Option); ok && drop.Selector.Matches(d) {
			if _, given := raw[drop.Option]; given {
				log.Debugf("%s: option %s does not apply to %s, dropped", r.ID, drop.Option, d.OS())
			}
			d = d.Without(drop.Option)
		}
	}
	if err := d.ValidateOptions(r.Options); err != nil {
		return platform.Descriptor{}, fmt.Errorf("%s: %w", r.ID, err)
	}
	return d, nil
}

// FilterOptions keeps the assignments of options r declares. Batch-wide
// options go through it; per-recipe options do not.
func (r *Recipe) FilterOptions(global map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range global {
		if _, ok := r.Options[k]; ok {
			out[k] = v
		}
	}
	return out
}

var registry = map[module.Version]*Recipe{}

func register(r *Recipe) {
	if _, dup := registry[r.ID]; dup {
		panic("recipes: duplicate recipe " + r.ID.String())
	}
	registry[r.ID] = r
}

// Lookup returns the recipe with exactly the identity id.
func Lookup(id module.Version) (*Recipe, error) {
	if r, ok := registry[id]; ok {
		return r, nil
	}
	var versions []string
	for k := range registry {
		if k.Name == id.Name {
			versions = append(versions, k.Version)
		}
	}
	if len(versions) > 0 {
		slices.SortFunc(versions, module.CompareVersion)
		return nil, fmt.Errorf("recipe %s not found (available versions: %s)", id, strings.Join(versions, ", "))
	}
	return nil, fmt.Errorf("recipe %s not found", id)
}

// All returns every registered recipe, sorted by name, then by version.
func All() []*Recipe {
	ids := slices.SortedFunc(maps.Keys(registry), func(a, b module.Version) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return module.CompareVersion(a.Version, b.Version)
	})
	out := make([]*Recipe, len(ids))
	for i, id := range ids {
		out[i] = registry[id]
	}
	return out
}
