package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/executor"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
)

func TestBuildGlewLinux(t *testing.T) {
	lookup, hits := serveGlew(t)
	tc := &toolchain{install: linuxGlewFiles}
	b := newBuilder(t, linuxGCC(), tc, lookup)

	o := b.Build(context.Background(), Target{ID: glewID, Options: map[string]string{"shared": "false"}})
	if o.Status != StatusBuilt {
		t.Fatalf("status = %s, err = %v", o.Status, o.Err)
	}
	if hits.Load() != 1 {
		t.Errorf("downloads = %d, want 1", hits.Load())
	}

	configures := tc.configures()
	if len(configures) != 1 {
		t.Fatalf("got %d configure steps, want 1", len(configures))
	}
	if src := argAfter(configures[0], "-S"); !pathHasSuffix(src, "glew-2.1.0_sources", "build", "cmake") {
		t.Errorf("configure source dir = %q", src)
	}
	if !hasArg(configures[0], "-DBUILD_SHARED_LIBS:BOOL=OFF") {
		t.Errorf("configure args = %v", configures[0].Args)
	}

	a := o.Artifact
	if !strings.HasPrefix(a.Dir, b.opts.PackageDir) {
		t.Errorf("package dir %s is outside %s", a.Dir, b.opts.PackageDir)
	}
	want := collect.LinkMetadata{
		LibraryNames:    []string{"GLEW", "GL"},
		SystemLibraries: []string{"GL"},
		Defines:         []string{},
		LinkerFlags:     []string{},
	}
	if diff := cmp.Diff(want, a.Link); diff != "" {
		t.Errorf("link metadata (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"include/GL/glew.h", "include/GL/glxew.h"}, a.Headers); diff != "" {
		t.Errorf("headers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"licenses/LICENSE.txt"}, a.LicenseFiles); diff != "" {
		t.Errorf("licenses (-want +got):\n%s", diff)
	}

	info, err := collect.ReadInfo(a.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Reproducible || !strings.Contains(info.Source, "@sha256:") {
		t.Errorf("info = %+v", info)
	}
	if info.Platform != o.Platform {
		t.Errorf("info platform = %q, outcome platform = %q", info.Platform, o.Platform)
	}
}

func TestBuildGlewWindowsStatic(t *testing.T) {
	lookup, _ := serveGlew(t)
	tc := &toolchain{install: []string{
		"include/GL/glew.h", "lib/glew32s.lib", "lib/glew32.lib", "bin/glew32.dll",
	}}
	b := newBuilder(t, windowsMSVC(), tc, lookup)

	o := b.Build(context.Background(), Target{ID: glewID, Options: map[string]string{"shared": "false"}})
	if o.Status != StatusBuilt {
		t.Fatalf("status = %s, err = %v", o.Status, o.Err)
	}
	configure := tc.configures()[0]
	if argAfter(configure, "-A") != "x64" {
		t.Errorf("configure args = %v", configure.Args)
	}

	a := o.Artifact
	if diff := cmp.Diff([]string{"lib/glew32s.lib"}, a.LibraryFiles); diff != "" {
		t.Errorf("libraries (-want +got):\n%s", diff)
	}
	want := collect.LinkMetadata{
		LibraryNames:    []string{"glew32s", "opengl32"},
		SystemLibraries: []string{"opengl32"},
		Defines:         []string{"GLEW_STATIC"},
		LinkerFlags:     []string{},
	}
	if diff := cmp.Diff(want, a.Link); diff != "" {
		t.Errorf("link metadata (-want +got):\n%s", diff)
	}
	if _, ok := platformOption(t, o.Platform, "fPIC"); ok {
		t.Errorf("platform %s keeps fPIC on windows", o.Platform)
	}
}

// platformOption finds name=value in a descriptor key.
func platformOption(t *testing.T, key, name string) (string, bool) {
	t.Helper()
	_, opts, _ := strings.Cut(key, "|")
	for _, kv := range strings.Split(opts, "-") {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v, true
		}
	}
	return "", false
}

func TestBuildUsesCache(t *testing.T) {
	lookup, hits := serveGlew(t)
	tc := &toolchain{install: linuxGlewFiles}
	b := newBuilder(t, linuxGCC(), tc, lookup)
	target := Target{ID: glewID}

	first := b.Build(context.Background(), target)
	if first.Status != StatusBuilt {
		t.Fatalf("status = %s, err = %v", first.Status, first.Err)
	}
	ran := len(tc.commands())

	second := b.Build(context.Background(), target)
	if second.Status != StatusCached {
		t.Fatalf("second status = %s, err = %v", second.Status, second.Err)
	}
	if len(tc.commands()) != ran || hits.Load() != 1 {
		t.Errorf("cached build ran %d commands and %d downloads", len(tc.commands())-ran, hits.Load()-1)
	}
	if second.Artifact.Dir != first.Artifact.Dir {
		t.Errorf("cached dir = %s, want %s", second.Artifact.Dir, first.Artifact.Dir)
	}

	// A modified package is rebuilt; the verified source tree is reused.
	lib := filepath.Join(first.Artifact.Dir, "lib", "libGLEW.a")
	if err := os.WriteFile(lib, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	third := b.Build(context.Background(), target)
	if third.Status != StatusBuilt {
		t.Fatalf("third status = %s, err = %v", third.Status, third.Err)
	}
	if hits.Load() != 1 {
		t.Errorf("downloads = %d, want 1", hits.Load())
	}

	b.opts.Force = true
	if o := b.Build(context.Background(), target); o.Status != StatusBuilt {
		t.Errorf("forced status = %s", o.Status)
	}
}

func TestBuildFloatingIsNeverCached(t *testing.T) {
	tc := &toolchain{install: []string{"include/omp.h", "lib/libomp.a"}}
	b := newBuilder(t, linuxGCC(), tc, nil)
	target := Target{ID: openmpID}

	for i := 0; i < 2; i++ {
		o := b.Build(context.Background(), target)
		if o.Status != StatusBuilt {
			t.Fatalf("build %d: status = %s, err = %v", i, o.Status, o.Err)
		}
		if o.Artifact.Info.Reproducible || o.Artifact.Info.Revision != "5f1e0c2d" {
			t.Errorf("info = %+v", o.Artifact.Info)
		}
	}
	if n := len(tc.configures()); n != 2 {
		t.Errorf("configured %d times, want 2", n)
	}
	configure := tc.configures()[0]
	if !hasArg(configure, "-DLIBOMP_ENABLE_SHARED:BOOL=OFF") {
		t.Errorf("configure args = %v", configure.Args)
	}
}

func TestBuildConfigurationErrorBeforeNetwork(t *testing.T) {
	lookup, hits := serveGlew(t)
	tc := &toolchain{}
	b := newBuilder(t, linuxGCC(), tc, lookup)

	o := b.Build(context.Background(), Target{ID: glewID, Options: map[string]string{"with_egl": "true"}})
	if o.Status != StatusFailed || o.Stage != StageConfigure {
		t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
	}
	if !errors.Is(o.Err, platform.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", o.Err)
	}
	if hits.Load() != 0 || len(tc.commands()) != 0 {
		t.Errorf("configuration error after %d downloads and %d commands", hits.Load(), len(tc.commands()))
	}
}

func TestBuildRejectsUndeclaredGlobalOption(t *testing.T) {
	lookup, hits := serveGlew(t)
	tc := &toolchain{}
	b := newBuilder(t, linuxGCC(), tc, lookup)
	b.opts.Global = map[string]string{"shraed": "true"}

	o := b.Build(context.Background(), Target{ID: glewID})
	if o.Status != StatusFailed || o.Stage != StageConfigure {
		t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
	}
	var cerr *platform.ConfigurationError
	if !errors.As(o.Err, &cerr) || cerr.Option != "shraed" {
		t.Errorf("err = %v, want configuration error for shraed", o.Err)
	}
	if hits.Load() != 0 || len(tc.commands()) != 0 {
		t.Errorf("configuration error after %d downloads and %d commands", hits.Load(), len(tc.commands()))
	}
	if _, err := b.Plan(Target{ID: glewID}); !errors.Is(err, platform.ErrConfiguration) {
		t.Errorf("Plan err = %v, want configuration error", err)
	}
}

func TestGlobalOptionsDeclaredByAnyTarget(t *testing.T) {
	b := newBuilder(t, linuxGCC(), &toolchain{}, nil)
	b.opts.Global = map[string]string{"sysroot": "/opt/sr", "shared": "true"}

	glew := Target{ID: glewID}
	portaudio := Target{ID: module.Version{Name: "portaudio", Version: "v190600.20161030"}}
	if err := b.checkGlobal([]Target{glew, portaudio}); err != nil {
		t.Errorf("glew+portaudio: %v", err)
	}
	if err := b.checkGlobal([]Target{glew}); !errors.Is(err, platform.ErrConfiguration) {
		t.Errorf("glew alone: err = %v, want configuration error for sysroot", err)
	}
}

func TestBuildUnknownArchBeforeNetwork(t *testing.T) {
	for _, base := range []platform.Descriptor{
		platform.New(platform.Linux, "gcc", "sparc64", platform.Release, nil),
		platform.New(platform.Windows, "msvc", "armv7", platform.Release, nil),
	} {
		t.Run(base.Arch(), func(t *testing.T) {
			lookup, hits := serveGlew(t)
			tc := &toolchain{install: linuxGlewFiles}
			b := newBuilder(t, base, tc, lookup)

			o := b.Build(context.Background(), Target{ID: glewID})
			if o.Status != StatusFailed || o.Stage != StagePlan {
				t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
			}
			if !errors.Is(o.Err, plan.ErrUnsupportedPlatform) {
				t.Errorf("err = %v, want unsupported platform", o.Err)
			}
			if hits.Load() != 0 || len(tc.commands()) != 0 {
				t.Errorf("unsupported arch after %d downloads and %d commands", hits.Load(), len(tc.commands()))
			}
		})
	}
}

func TestBuildUnsupportedPlatform(t *testing.T) {
	tc := &toolchain{}
	b := newBuilder(t, windowsMSVC(), tc, nil)

	o := b.Build(context.Background(), Target{ID: openmpID})
	if o.Status != StatusFailed || o.Stage != StagePlan {
		t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
	}
	if !errors.Is(o.Err, plan.ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want unsupported platform", o.Err)
	}
	if _, err := os.Stat(b.opts.WorkspaceDir); !os.IsNotExist(err) {
		t.Errorf("workspace created for an unsupported platform: %v", err)
	}
}

func TestBuildStepFailure(t *testing.T) {
	lookup, _ := serveGlew(t)
	tc := &toolchain{install: linuxGlewFiles, fail: isCompile}
	b := newBuilder(t, linuxGCC(), tc, lookup)

	o := b.Build(context.Background(), Target{ID: glewID})
	if o.Status != StatusFailed || o.Stage != StageBuild {
		t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
	}
	var serr *executor.StepError
	if !errors.As(o.Err, &serr) {
		t.Fatalf("err = %v, want *executor.StepError", o.Err)
	}
	if serr.Index != 1 || !strings.Contains(serr.Output, "GL/gl.h") {
		t.Errorf("step error = %+v", serr)
	}
	if o.Result.FailedStep != 1 {
		t.Errorf("FailedStep = %d", o.Result.FailedStep)
	}
	if _, err := b.Installed(Target{ID: glewID}); err == nil {
		t.Error("a failed build left a package")
	}
}

func TestBuildMissingArtifact(t *testing.T) {
	lookup, _ := serveGlew(t)
	tc := &toolchain{install: []string{"include/GL/glew.h"}}
	b := newBuilder(t, linuxGCC(), tc, lookup)

	o := b.Build(context.Background(), Target{ID: glewID})
	if o.Status != StatusFailed || o.Stage != StagePackage {
		t.Fatalf("status = %s, stage = %s", o.Status, o.Stage)
	}
	if !errors.Is(o.Err, collect.ErrMissingArtifact) {
		t.Errorf("err = %v, want missing artifact", o.Err)
	}
	entries, _ := os.ReadDir(filepath.Join(b.opts.PackageDir, "glew", "2.1.0"))
	if len(entries) != 0 {
		t.Errorf("package dir holds %d entries after a failed collection", len(entries))
	}
}

func TestBuildCancelled(t *testing.T) {
	lookup, _ := serveGlew(t)
	tc := &toolchain{install: linuxGlewFiles, block: isCompile, started: make(chan struct{}, 1)}
	b := newBuilder(t, linuxGCC(), tc, lookup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-tc.started
		cancel()
	}()
	o := b.Build(ctx, Target{ID: glewID})
	if o.Status != StatusCancelled || o.Stage != StageBuild {
		t.Fatalf("status = %s, stage = %s, err = %v", o.Status, o.Stage, o.Err)
	}
	if !errors.Is(o.Err, executor.ErrCancelled) {
		t.Errorf("err = %v, want cancelled", o.Err)
	}
}

func TestPlanDoesNotDownload(t *testing.T) {
	lookup, hits := serveGlew(t)
	b := newBuilder(t, linuxGCC(), &toolchain{}, lookup)

	p, err := b.Plan(Target{ID: glewID})
	if err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 0 {
		t.Errorf("Plan downloaded %d times", hits.Load())
	}
	if len(p.Steps) != 3 || !pathHasSuffix(p.SourceDir, "glew-2.1.0_sources") {
		t.Errorf("plan = %+v", p)
	}
	if !strings.Contains(p.Steps[1].CommandLine(), "--parallel 4") {
		t.Errorf("compile step = %s", p.Steps[1].CommandLine())
	}
}

func TestTargetString(t *testing.T) {
	got := Target{ID: glewID, Options: map[string]string{"shared": "true", "fPIC": "false"}}.String()
	if want := "glew@2.1.0[fPIC=false,shared=true]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWorkDirsAreDisjoint(t *testing.T) {
	b := newBuilder(t, linuxGCC(), &toolchain{}, nil)
	static := linuxGCC().With("shared", platform.BoolValue(false))
	shared := linuxGCC().With("shared", platform.BoolValue(true))

	var dirs []string
	for _, c := range []struct {
		id   Target
		desc platform.Descriptor
	}{
		{Target{ID: glewID}, static},
		{Target{ID: glewID}, shared},
		{Target{ID: openmpID}, static},
	} {
		ws, err := b.workDir(c.id.ID, c.desc)
		if err != nil {
			t.Fatal(err)
		}
		pkg, err := b.packageDir(c.id.ID, c.desc)
		if err != nil {
			t.Fatal(err)
		}
		dirs = append(dirs, ws, pkg)
	}
	for i, a := range dirs {
		for j, other := range dirs {
			if i != j && (a == other || strings.HasPrefix(other, a+string(filepath.Separator))) {
				t.Errorf("%s overlaps %s", a, other)
			}
		}
	}
}
