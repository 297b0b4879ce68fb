package collect

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newPlan(t *testing.T, d platform.Descriptor) *plan.Plan {
	t.Helper()
	root := t.TempDir()
	p := &plan.Plan{
		Recipe:       module.Version{Name: "glew", Version: "2.1.0"},
		Descriptor:   d,
		SourceDir:    filepath.Join(root, "glew-2.1.0_sources"),
		BuildDir:     filepath.Join(root, "build"),
		InstallDir:   filepath.Join(root, "install"),
		Reproducible: true,
	}
	switch {
	case d.OS() == platform.Windows:
		p.Outputs = plan.Outputs{Libraries: []string{"*.lib"}}
	case d.Shared():
		p.Outputs = plan.Outputs{Libraries: []string{"*.so", "*.so.*"}}
	default:
		p.Outputs = plan.Outputs{Libraries: []string{"*.a"}}
	}
	return p
}

var glewRules = Rules{
	Patterns: []Pattern{
		{Kind: Header, Dir: "include", Globs: []string{"*.h"}, Recursive: true, KeepPath: true},
		{Kind: Library, Dir: "lib"},
		{Kind: Binary, Dir: "bin"},
		{Kind: License, From: FromSource, Globs: []string{"LICENSE*"}, IgnoreCase: true},
	},
	Link: []LinkRow{
		{Selector: platform.Selector{OS: platform.Windows, Linkage: platform.Static}, System: []string{"opengl32"}, Defines: []string{"GLEW_STATIC"}},
		{Selector: platform.Selector{OS: platform.Linux, Linkage: platform.Static}, System: []string{"GL"}},
		{Selector: platform.Selector{OS: platform.MacOS}, LinkerFlags: []string{"-framework", "OpenGL"}},
	},
}

func desc(os platform.OS, compiler string, shared bool) platform.Descriptor {
	return platform.New(os, compiler, "x86_64", platform.Release, map[string]platform.Value{
		platform.OptionShared: platform.BoolValue(shared),
	})
}

func TestCollectLinuxStatic(t *testing.T) {
	p := newPlan(t, desc(platform.Linux, "gcc", false))
	writeFiles(t, p.InstallDir, "include/GL/glew.h", "include/GL/glxew.h", "lib/libGLEW.a", "lib/pkgconfig/glew.pc")
	writeFiles(t, p.SourceDir, "LICENSE.txt", "doc/LICENSE.html")
	dest := filepath.Join(t.TempDir(), "pkg")

	a, err := Collect(Request{Plan: p, Dest: dest, Rules: glewRules})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]string{"GLEW", "GL"}, a.Link.LibraryNames); diff != "" {
		t.Errorf("library names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"GL"}, a.Link.SystemLibraries); diff != "" {
		t.Errorf("system libraries (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"include/GL/glew.h", "include/GL/glxew.h"}, a.Headers); diff != "" {
		t.Errorf("headers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lib/libGLEW.a"}, a.LibraryFiles); diff != "" {
		t.Errorf("library files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"licenses/LICENSE.txt"}, a.LicenseFiles); diff != "" {
		t.Errorf("license files (-want +got):\n%s", diff)
	}
	for _, f := range slices.Concat(a.Headers, a.LibraryFiles, a.LicenseFiles) {
		if _, err := os.Stat(filepath.Join(dest, f)); err != nil {
			t.Errorf("%s not in package: %v", f, err)
		}
	}

	pc, err := os.ReadFile(filepath.Join(dest, "lib", "pkgconfig", "glew.pc"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(pc), "Libs: -L${libdir} -lGLEW -lGL\n") {
		t.Errorf("pkg-config file:\n%s", pc)
	}

	info, err := Verify(dest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if info.Platform != p.Descriptor.Key() || !info.Reproducible {
		t.Errorf("info = %+v", info)
	}
}

func TestCollectMissingLibraries(t *testing.T) {
	p := newPlan(t, desc(platform.Linux, "gcc", false))
	writeFiles(t, p.InstallDir, "include/GL/glew.h")
	dest := filepath.Join(t.TempDir(), "pkg")

	_, err := Collect(Request{Plan: p, Dest: dest, Rules: glewRules})
	var mae *MissingArtifactError
	if !errors.As(err, &mae) {
		t.Fatalf("err = %v, want *MissingArtifactError", err)
	}
	if mae.Kind != Library || !slices.Contains(mae.Patterns, "lib/*.a") {
		t.Errorf("error = %+v", mae)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial package left behind")
	}
}

func TestCollectHeaderOnly(t *testing.T) {
	p := newPlan(t, desc(platform.Linux, "gcc", false))
	writeFiles(t, p.InstallDir, "include/x.h")
	rules := glewRules
	rules.HeaderOnly = true
	rules.Link = nil
	a, err := Collect(Request{Plan: p, Dest: filepath.Join(t.TempDir(), "pkg"), Rules: rules})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(a.Link.LibraryNames) != 0 {
		t.Errorf("library names = %v", a.Link.LibraryNames)
	}
}

func TestStaticAddsSystemLibraries(t *testing.T) {
	for _, os := range []platform.OS{platform.Windows, platform.Linux} {
		static := Metadata(desc(os, "gcc", false), []string{"GLEW"}, glewRules.Link)
		shared := Metadata(desc(os, "gcc", true), []string{"GLEW"}, glewRules.Link)
		var extra []string
		for _, n := range static.LibraryNames {
			if !slices.Contains(shared.LibraryNames, n) {
				extra = append(extra, n)
			}
		}
		if len(extra) == 0 {
			t.Errorf("%s: static names %v add nothing over shared %v", os, static.LibraryNames, shared.LibraryNames)
		}
		if len(shared.SystemLibraries) != 0 {
			t.Errorf("%s: shared system libraries = %v", os, shared.SystemLibraries)
		}
	}
}

func TestWindowsStaticMetadata(t *testing.T) {
	m := Metadata(desc(platform.Windows, "msvc", false), []string{"glew32s"}, glewRules.Link)
	want := LinkMetadata{
		LibraryNames:    []string{"glew32s", "opengl32"},
		SystemLibraries: []string{"opengl32"},
		Defines:         []string{"GLEW_STATIC"},
		LinkerFlags:     []string{},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
}

func TestMacOSFrameworkFlags(t *testing.T) {
	m := Metadata(desc(platform.MacOS, "apple-clang", true), []string{"GLEW"}, glewRules.Link)
	if diff := cmp.Diff([]string{"-framework", "OpenGL"}, m.LinkerFlags); diff != "" {
		t.Errorf("linker flags (-want +got):\n%s", diff)
	}
	if len(m.SystemLibraries) != 0 {
		t.Errorf("system libraries = %v", m.SystemLibraries)
	}
}

func TestFixedNamesWithSuffixes(t *testing.T) {
	names := Names{
		Base: "portaudio",
		Suffixes: []SuffixRow{
			{platform.Selector{OS: platform.Windows, Linkage: platform.Static}, "_static"},
			{platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86"}, "_x86"},
			{platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86_64"}, "_x64"},
		},
	}
	tests := []struct {
		d    platform.Descriptor
		want string
	}{
		{desc(platform.Windows, "msvc", false), "portaudio_static_x64"},
		{desc(platform.Windows, "msvc", true), "portaudio_x64"},
		{desc(platform.Windows, "gcc", false), "portaudio_static"},
		{desc(platform.Linux, "gcc", false), "portaudio"},
	}
	for _, tt := range tests {
		got := names.resolve(tt.d, nil)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%s: names = %v, want [%s]", tt.d, got, tt.want)
		}
	}
}

func TestBuildTypeDir(t *testing.T) {
	d := platform.New(platform.Windows, "msvc", "x86_64", platform.Debug, nil)
	p := newPlan(t, d)
	writeFiles(t, p.BuildDir, "Debug/glew32sd.lib", "Release/glew32s.lib")
	rules := Rules{Patterns: []Pattern{{Kind: Library, From: FromBuild, Dir: "${build_type}"}}}
	a, err := Collect(Request{Plan: p, Dest: filepath.Join(t.TempDir(), "pkg"), Rules: rules})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"glew32sd"}, a.Link.LibraryNames); diff != "" {
		t.Errorf("library names (-want +got):\n%s", diff)
	}
}

func TestVerifyDetectsModification(t *testing.T) {
	p := newPlan(t, desc(platform.Linux, "gcc", false))
	writeFiles(t, p.InstallDir, "lib/libGLEW.a")
	dest := filepath.Join(t.TempDir(), "pkg")
	if _, err := Collect(Request{Plan: p, Dest: dest, Rules: glewRules}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "lib", "libGLEW.a"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(dest); err == nil {
		t.Error("Verify accepted a modified package")
	}
}

func TestLibraryNames(t *testing.T) {
	got := libraryNames([]string{
		"lib/libGLEW.so", "lib/libGLEW.so.2.1", "lib/libGLEW.so.2.1.0",
		"lib/glew32.lib", "lib/libportaudio.dll.a", "lib/libomp.dylib",
	})
	want := []string{"GLEW", "glew32", "omp", "portaudio"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("libraryNames (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	p := newPlan(t, desc(platform.Linux, "gcc", false))
	writeFiles(t, p.InstallDir, "include/GL/glew.h", "lib/libGLEW.a")
	writeFiles(t, p.SourceDir, "LICENSE.txt")
	dest := filepath.Join(t.TempDir(), "pkg")
	want, err := Collect(Request{Plan: p, Dest: dest, Rules: glewRules})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Load(dest)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load (-collected +loaded):\n%s", diff)
	}
}
