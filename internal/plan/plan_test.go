package plan

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goplus/cook/internal/source"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/platform"
)

var testID = module.Version{Name: "demo", Version: "1.0"}

func cmakeTemplate(ctx *Context) ([]buildsys.Step, error) {
	c, err := ctx.CMake("build/cmake")
	if err != nil {
		return nil, err
	}
	// Deliberately out of order: the planner sorts by phase.
	return []buildsys.Step{c.Install(), c.Configure(), c.Build()}, nil
}

var testTable = Table{
	{OS: platform.Linux, Compiler: "gcc", Template: cmakeTemplate},
	{OS: platform.Windows, Compiler: "msvc", Template: cmakeTemplate},
	{OS: platform.MacOS, Compiler: "apple-clang", Template: cmakeTemplate},
}

func request(d platform.Descriptor) Request {
	return Request{
		Recipe:     testID,
		Source:     &source.WorkingSource{Dir: "/w/demo-1.0_sources", Reproducible: true},
		Descriptor: d,
		BuildDir:   "/w/build",
		InstallDir: "/w/install",
	}
}

func desc(os platform.OS, compiler string, shared bool) platform.Descriptor {
	return platform.New(os, compiler, "x86_64", platform.Release, map[string]platform.Value{
		platform.OptionShared: platform.BoolValue(shared),
	})
}

func TestNewDeclaredPairs(t *testing.T) {
	for _, pair := range testTable.Pairs() {
		t.Run(pair.String(), func(t *testing.T) {
			p, err := New(request(desc(pair.OS, pair.Compiler, false)), testTable)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if len(p.Steps) == 0 {
				t.Fatal("plan has no steps")
			}
			var phases []buildsys.Phase
			for _, s := range p.Steps {
				phases = append(phases, s.Phase)
			}
			if !slices.IsSorted(phases) {
				t.Errorf("phases not in canonical order: %v", phases)
			}
		})
	}
}

func TestNewUndeclaredPair(t *testing.T) {
	for _, d := range []platform.Descriptor{
		desc(platform.Windows, "gcc", false),
		desc(platform.Linux, "clang", false),
		desc(platform.MacOS, "gcc", false),
	} {
		_, err := New(request(d), testTable)
		var upe *UnsupportedPlatformError
		if !errors.As(err, &upe) {
			t.Fatalf("%s: err = %v, want *UnsupportedPlatformError", d, err)
		}
		if upe.OS != string(d.OS()) || upe.Compiler != d.Compiler() {
			t.Errorf("error names %s/%s, want %s/%s", upe.OS, upe.Compiler, d.OS(), d.Compiler())
		}
		if !errors.Is(err, ErrUnsupportedPlatform) {
			t.Error("error does not match ErrUnsupportedPlatform")
		}
	}
}

func TestTemplateErrorIsUnsupported(t *testing.T) {
	d := platform.New(platform.Windows, "msvc", "mips", platform.Release, nil)
	_, err := New(request(d), testTable)
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestStepsCarryEnvironment(t *testing.T) {
	d := desc(platform.Linux, "gcc", false).With(platform.OptionFPIC, platform.BoolValue(true))
	p, err := New(request(d), testTable)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range p.Steps {
		if s.Env[CFLAGS] != "-m64 -fPIC" {
			t.Errorf("%s step CFLAGS = %q, want %q", s.Phase, s.Env[CFLAGS], "-m64 -fPIC")
		}
	}
	configure := p.Steps[0]
	if configure.Phase != buildsys.Configure {
		t.Fatalf("first step is %s", configure.Phase)
	}
	if !slices.Contains(configure.Args, "/w/demo-1.0_sources/build/cmake") {
		t.Errorf("configure args %v do not name the cmake source dir", configure.Args)
	}
	if !slices.Contains(configure.Args, "-DCMAKE_POSITION_INDEPENDENT_CODE:BOOL=ON") {
		t.Errorf("configure args %v lack position independent code", configure.Args)
	}
}

func TestMSVCGeneratorPlatform(t *testing.T) {
	p, err := New(request(desc(platform.Windows, "msvc", true)), testTable)
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Join(p.Steps[0].Args, " ")
	if !strings.Contains(args, "-A x64") || !strings.Contains(args, "-DBUILD_SHARED_LIBS:BOOL=ON") {
		t.Errorf("configure args = %s", args)
	}
	if len(p.Env) != 0 {
		t.Errorf("msvc env = %v, want none", p.Env)
	}
}

func TestEnvironment(t *testing.T) {
	tests := []struct {
		name string
		d    platform.Descriptor
		want map[string]string
	}{
		{
			name: "linux sysroot",
			d:    desc(platform.Linux, "gcc", false).With(platform.OptionSysroot, platform.StringValue("/sr")),
			want: map[string]string{CFLAGS: "-m64 --sysroot=/sr", CXXFLAGS: "-m64 --sysroot=/sr", LDFLAGS: "-m64 --sysroot=/sr"},
		},
		{
			name: "linux empty sysroot",
			d:    desc(platform.Linux, "gcc", false).With(platform.OptionSysroot, platform.StringValue("")),
			want: map[string]string{CFLAGS: "-m64", CXXFLAGS: "-m64", LDFLAGS: "-m64"},
		},
		{
			name: "macos sysroot",
			d:    desc(platform.MacOS, "apple-clang", false).With(platform.OptionSysroot, platform.StringValue("/sdk")),
			want: map[string]string{
				CFLAGS:   "-arch x86_64 -isysroot /sdk",
				CXXFLAGS: "-arch x86_64 -isysroot /sdk",
				LDFLAGS:  "-arch x86_64 -isysroot /sdk",
			},
		},
		{
			name: "linux armv8",
			d:    platform.New(platform.Linux, "gcc", "armv8", platform.Release, nil),
			want: map[string]string{CFLAGS: "-march=armv8-a", CXXFLAGS: "-march=armv8-a"},
		},
		{
			name: "windows ignores sysroot and fPIC",
			d: desc(platform.Windows, "msvc", false).
				With(platform.OptionSysroot, platform.StringValue("/sr")).
				With(platform.OptionFPIC, platform.BoolValue(true)),
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Environment(tt.d)); diff != "" {
				t.Errorf("Environment (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnknownArchIsUnsupported(t *testing.T) {
	tests := []platform.Descriptor{
		platform.New(platform.Linux, "gcc", "sparc64", platform.Release, nil),
		platform.New(platform.Windows, "msvc", "armv7", platform.Release, nil),
	}
	for _, d := range tests {
		t.Run(d.String(), func(t *testing.T) {
			err := Supports(testID.String(), testTable, d)
			if !errors.Is(err, ErrUnsupportedPlatform) {
				t.Fatalf("Supports = %v, want ErrUnsupportedPlatform", err)
			}
			if !strings.Contains(err.Error(), d.Arch()) {
				t.Errorf("error %q does not name the architecture", err)
			}
			if _, err := New(request(d), testTable); !errors.Is(err, ErrUnsupportedPlatform) {
				t.Errorf("New = %v, want ErrUnsupportedPlatform", err)
			}
		})
	}
}

func TestOutputsDependOnLinkage(t *testing.T) {
	tests := []struct {
		d    platform.Descriptor
		want Outputs
	}{
		{desc(platform.Windows, "msvc", false), Outputs{Libraries: []string{"*.lib"}}},
		{desc(platform.Windows, "msvc", true), Outputs{Libraries: []string{"*.lib"}, Binaries: []string{"*.dll"}}},
		{desc(platform.Windows, "gcc", true), Outputs{Libraries: []string{"*.dll.a"}, Binaries: []string{"*.dll"}}},
		{desc(platform.Linux, "gcc", true), Outputs{Libraries: []string{"*.so", "*.so.*"}}},
		{desc(platform.MacOS, "apple-clang", false), Outputs{Libraries: []string{"*.a"}}},
	}
	for _, tt := range tests {
		got, ok := outputsFor(tt.d)
		if !ok {
			t.Errorf("%s: no outputs", tt.d)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s outputs (-want +got):\n%s", tt.d, diff)
		}
	}
}

func TestFloatingSourceIsNotReproducible(t *testing.T) {
	req := request(desc(platform.Linux, "gcc", false))
	req.Source.Reproducible = false
	p, err := New(req, testTable)
	if err != nil {
		t.Fatal(err)
	}
	if p.Reproducible {
		t.Error("plan from floating source marked reproducible")
	}
	var buf bytes.Buffer
	p.Print(&buf)
	if !strings.Contains(buf.String(), "not reproducible") {
		t.Errorf("printed plan does not flag floating source:\n%s", buf.String())
	}
}

func TestTriplet(t *testing.T) {
	got, err := Triplet(desc(platform.Linux, "gcc", false), "pc-linux")
	if err != nil || got != "x86_64-pc-linux" {
		t.Errorf("Triplet = %q, %v", got, err)
	}
	mips := platform.New(platform.Linux, "gcc", "mips", platform.Release, nil)
	if _, err := Triplet(mips, "pc-linux"); err == nil {
		t.Error("Triplet guessed an unknown architecture")
	}
}
