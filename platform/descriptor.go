// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform defines the descriptor that parameterizes every recipe
// decision: operating system, compiler family, CPU architecture, build type
// and named build options.
package platform

import (
	_ "crypto/sha256"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// OS is the target operating system of a build.
type OS string

const (
	Linux   OS = "linux"
	MacOS   OS = "macos"
	Windows OS = "windows"
)

// ParseOS parses an operating system name. Go's GOOS spellings are accepted
// as aliases.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(s) {
	case "linux":
		return Linux, nil
	case "macos", "darwin", "osx":
		return MacOS, nil
	case "windows":
		return Windows, nil
	}
	return "", &ConfigurationError{Option: "os", Reason: fmt.Sprintf("unknown operating system %q", s)}
}

// BuildType is the build configuration.
type BuildType string

const (
	Debug   BuildType = "debug"
	Release BuildType = "release"
)

// ParseBuildType parses a build configuration name, case-insensitively.
func ParseBuildType(s string) (BuildType, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "release", "":
		return Release, nil
	}
	return "", &ConfigurationError{Option: "build_type", Reason: fmt.Sprintf("unknown build type %q", s)}
}

// CMakeName returns the spelling CMake and MSBuild use for the configuration.
func (b BuildType) CMakeName() string {
	if b == Debug {
		return "Debug"
	}
	return "Release"
}

// Descriptor is the immutable platform tuple every recipe decision is keyed
// by. The zero value is not valid; use New.
//
// Descriptor values are safe to share between goroutines: options are copied
// on construction and every derivation returns a new Descriptor.
type Descriptor struct {
	os        OS
	compiler  string
	arch      string
	buildType BuildType
	options   map[string]Value
}

// New returns a Descriptor. The options map is copied.
func New(os OS, compiler, arch string, buildType BuildType, options map[string]Value) Descriptor {
	if buildType == "" {
		buildType = Release
	}
	return Descriptor{
		os:        os,
		compiler:  compiler,
		arch:      arch,
		buildType: buildType,
		options:   maps.Clone(options),
	}
}

// Host returns a Descriptor for the machine running this process, using the
// conventional default compiler of the host OS.
func Host(options map[string]Value) Descriptor {
	os, _ := ParseOS(runtime.GOOS)
	return New(os, DefaultCompiler(os), HostArch(), Release, options)
}

// DefaultCompiler returns the compiler family assumed when none is given.
func DefaultCompiler(os OS) string {
	switch os {
	case MacOS:
		return "apple-clang"
	case Windows:
		return "msvc"
	}
	return "gcc"
}

// HostArch maps GOARCH to the architecture names used by recipes.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "armv8"
	}
	return runtime.GOARCH
}

func (d Descriptor) OS() OS               { return d.os }
func (d Descriptor) Compiler() string     { return d.compiler }
func (d Descriptor) Arch() string         { return d.arch }
func (d Descriptor) BuildType() BuildType { return d.buildType }

// Option returns the value of the named option.
func (d Descriptor) Option(name string) (Value, bool) {
	v, ok := d.options[name]
	return v, ok
}

// Options returns a copy of all options.
func (d Descriptor) Options() map[string]Value {
	return maps.Clone(d.options)
}

// OptionNames returns the option names in sorted order.
func (d Descriptor) OptionNames() []string {
	return slices.Sorted(maps.Keys(d.options))
}

// Bool returns the boolean value of the named option, false when absent.
func (d Descriptor) Bool(name string) bool {
	v, ok := d.options[name]
	if !ok {
		return false
	}
	b, _ := v.Bool()
	return b
}

// Text returns the string form of the named option, "" when absent.
func (d Descriptor) Text(name string) string {
	v, ok := d.options[name]
	if !ok {
		return ""
	}
	return v.String()
}

// Shared reports whether a shared-library build is requested.
func (d Descriptor) Shared() bool {
	return d.Bool(OptionShared)
}

// Sysroot returns the sysroot option. An empty sysroot is treated exactly
// like an absent one.
func (d Descriptor) Sysroot() (string, bool) {
	s := strings.TrimSpace(d.Text(OptionSysroot))
	return s, s != ""
}

// With returns a copy of d with the option set to v.
func (d Descriptor) With(name string, v Value) Descriptor {
	opts := maps.Clone(d.options)
	if opts == nil {
		opts = make(map[string]Value)
	}
	opts[name] = v
	d.options = opts
	return d
}

// Without returns a copy of d without the named option.
func (d Descriptor) Without(name string) Descriptor {
	if _, ok := d.options[name]; !ok {
		return d
	}
	opts := maps.Clone(d.options)
	delete(opts, name)
	d.options = opts
	return d
}

// Key returns the canonical string form of d. Settings are joined with "-",
// options are sorted by name and appended after "|".
//
//	linux-gcc-x86_64-release|fPIC=true-shared=false
func (d Descriptor) Key() string {
	key := strings.Join([]string{string(d.os), d.compiler, d.arch, string(d.buildType)}, "-")
	if len(d.options) == 0 {
		return key
	}
	names := d.OptionNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+d.options[name].String())
	}
	return key + "|" + strings.Join(parts, "-")
}

// Hash returns a short, filesystem-safe digest of Key. It names the
// per-platform working directory and package directory.
func (d Descriptor) Hash() string {
	return digest.FromString(d.Key()).Encoded()[:12]
}

func (d Descriptor) String() string {
	return d.Key()
}
