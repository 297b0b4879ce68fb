package buildsys

import (
	"maps"
	"slices"
	"strings"
)

// Phase orders the steps of a build plan.
type Phase int

const (
	Prepare   Phase = iota // environment and source tree preparation
	Configure              // the native build system's generate/configure step
	Compile
	Install
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case Configure:
		return "configure"
	case Compile:
		return "compile"
	case Install:
		return "install"
	}
	return "unknown"
}

// Step is one toolchain invocation. Env is layered on top of the ambient
// environment when the step runs; it never replaces it.
type Step struct {
	Phase Phase
	Dir   string
	Exe   string
	Args  []string
	Env   map[string]string
}

// CommandLine renders the step for logs and dry runs.
func (s Step) CommandLine() string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(s.Env)) {
		b.WriteString(k + "=" + quote(s.Env[k]) + " ")
	}
	b.WriteString(quote(s.Exe))
	for _, a := range s.Args {
		b.WriteString(" " + quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// BuildSystem captures shared capabilities of build step generators (CMake,
// Autotools, etc). It keeps the common lifecycle and env setup; implementations
// add their own extras. Lifecycle methods do not run anything: they return the
// Step that would, so a plan can be inspected before execution.
type BuildSystem interface {
	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(args ...string) Step
	Build(args ...string) Step
	Install(args ...string) Step

	// Where artifacts land.
	OutputDir() string
}

// MergeEnv layers override on top of base ("KEY=VALUE" entries) and returns
// the result sorted by key.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(override))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	out := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
