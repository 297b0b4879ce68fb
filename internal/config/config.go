// Package config loads batch files. A batch file lists the recipes to build
// and the platform to build them for:
//
//	platform:
//	  os: linux
//	  compiler: gcc
//	  build_type: release
//	options:
//	  fPIC: true
//	requires:
//	  - name: glew
//	    version: 2.1.0
//	    options:
//	      shared: false
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/cook/internal/build"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the batch file looked up in the current directory.
const DefaultFile = "cook.yaml"

// File is a parsed batch file.
type File struct {
	// Workspace is the root of the working directories.
	Workspace string `yaml:"workspace,omitempty"`
	// Output is the root of the published packages.
	Output string `yaml:"output,omitempty"`

	Jobs        int           `yaml:"jobs,omitempty"`
	CompileJobs int           `yaml:"compile_jobs,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`

	Platform Platform          `yaml:"platform,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
	Requires []Require         `yaml:"requires"`
}

// Platform selects the target platform. Empty fields default to the host.
type Platform struct {
	OS        string `yaml:"os,omitempty"`
	Compiler  string `yaml:"compiler,omitempty"`
	Arch      string `yaml:"arch,omitempty"`
	BuildType string `yaml:"build_type,omitempty"`
}

// Require is one recipe to build.
type Require struct {
	Name    string            `yaml:"name"`
	Version string            `yaml:"version"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Load reads and parses the batch file at path. Relative directories in it
// are resolved against the directory of path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for _, dir := range []*string{&f.Workspace, &f.Output} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(base, *dir)
		}
	}
	return f, nil
}

// Parse parses a batch file. Unknown fields are errors.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Requires) == 0 {
		return errors.New("requires list is required and must be non-empty")
	}
	for i, r := range f.Requires {
		if r.Name == "" || r.Version == "" {
			return fmt.Errorf("requires[%d]: name and version are required", i)
		}
	}
	if f.Jobs < 0 || f.CompileJobs < 0 {
		return errors.New("jobs must not be negative")
	}
	return nil
}

// Descriptor returns the base descriptor of the batch.
func (p Platform) Descriptor() (platform.Descriptor, error) {
	host := platform.Host(nil)
	goos, compiler, arch, bt := host.OS(), host.Compiler(), host.Arch(), host.BuildType()
	var err error
	if p.OS != "" {
		if goos, err = platform.ParseOS(p.OS); err != nil {
			return platform.Descriptor{}, err
		}
		if goos != host.OS() {
			compiler = platform.DefaultCompiler(goos)
		}
	}
	if p.Compiler != "" {
		compiler = p.Compiler
	}
	if p.Arch != "" {
		arch = p.Arch
	}
	if p.BuildType != "" {
		if bt, err = platform.ParseBuildType(p.BuildType); err != nil {
			return platform.Descriptor{}, err
		}
	}
	return platform.New(goos, compiler, arch, bt, nil), nil
}

// Targets returns the requires as build targets, in order.
func (f *File) Targets() []build.Target {
	targets := make([]build.Target, len(f.Requires))
	for i, r := range f.Requires {
		targets[i] = build.Target{
			ID:      module.Version{Name: r.Name, Version: r.Version},
			Options: r.Options,
		}
	}
	return targets
}

// BuildOptions returns the builder options the batch file sets.
func (f *File) BuildOptions() (build.Options, error) {
	d, err := f.Platform.Descriptor()
	if err != nil {
		return build.Options{}, err
	}
	return build.Options{
		WorkspaceDir: f.Workspace,
		PackageDir:   f.Output,
		Platform:     d,
		Global:       f.Options,
		Jobs:         f.Jobs,
		CompileJobs:  f.CompileJobs,
		Timeout:      f.Timeout,
	}, nil
}
