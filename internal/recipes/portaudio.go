package recipes

import (
	"path/filepath"
	"strings"

	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/internal/sysdeps"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
)

const macosMinVersion = "-mmacosx-version-min=10.15"

func init() {
	register(&Recipe{
		ID:          module.Version{Name: "portaudio", Version: "v190600.20161030"},
		Description: "Portable cross-platform audio I/O",
		Homepage:    "http://www.portaudio.com",
		License:     "http://www.portaudio.com/license.html",
		Source: Source{
			URL: `http://portaudio.com/archives/pa_stable_{{replace .Version "." "_"}}.tgz`,
		},
		Options: platform.Schema{
			platform.OptionShared:  platform.Bool(false),
			platform.OptionFPIC:    platform.Bool(true),
			platform.OptionSysroot: platform.String(""),
		},
		Drops: noFPICOnWindows,
		SystemPackages: sysdeps.Packages{
			"apt-get": {"libasound2-dev", "libjack-dev"},
			"yum":     {"alsa-lib-devel", "jack-audio-connection-kit-devel"},
		},
		Rules: plan.Table{
			{OS: platform.Linux, Compiler: "gcc", Template: portaudioLinux},
			{OS: platform.Linux, Compiler: "clang", Template: portaudioLinux},
			{OS: platform.MacOS, Compiler: "apple-clang", Template: portaudioMac},
			{OS: platform.MacOS, Compiler: "osxcross", Template: portaudioOSXCross},
			{OS: platform.Windows, Compiler: "msvc", Template: portaudioWindows},
			{OS: platform.Windows, Compiler: "gcc", Template: portaudioWindows},
		},
		Package: collect.Rules{
			Patterns: []collect.Pattern{
				{Kind: collect.Header, From: collect.FromSource, Dir: "include", Globs: []string{"*.h"}},
				{Kind: collect.License, From: collect.FromSource, Globs: []string{"LICENSE*"}, IgnoreCase: true},

				{Kind: collect.Library, From: collect.FromSource, Dir: "lib/.libs",
					Selector: platform.Selector{OS: platform.Linux}},
				{Kind: collect.Library, From: collect.FromSource, Dir: "lib/.libs",
					Selector: platform.Selector{OS: platform.MacOS}},

				{Kind: collect.Library, From: collect.FromBuild, Dir: "${build_type}",
					Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc"}},
				{Kind: collect.Binary, From: collect.FromBuild, Dir: "${build_type}",
					Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc"}},

				{Kind: collect.Library, From: collect.FromBuild, Globs: []string{"*static.a"}, Recursive: true,
					Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.Static}},
				{Kind: collect.Library, From: collect.FromBuild, Recursive: true,
					Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.SharedLib}},
				{Kind: collect.Binary, From: collect.FromBuild, Recursive: true,
					Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.SharedLib}},
			},
			Names: collect.Names{
				Base: "portaudio",
				Suffixes: []collect.SuffixRow{
					{Selector: platform.Selector{OS: platform.Windows, Linkage: platform.Static}, Suffix: "_static"},
					{Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86"}, Suffix: "_x86"},
					{Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86_64"}, Suffix: "_x64"},
				},
			},
			Link: []collect.LinkRow{
				{Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.Static}, System: []string{"winmm"}},
				{Selector: platform.Selector{OS: platform.Linux, Linkage: platform.Static}, System: []string{"jack", "asound", "m", "pthread"}},
				{Selector: platform.Selector{OS: platform.MacOS}, LinkerFlags: frameworks("CoreAudio", "AudioToolbox", "AudioUnit", "CoreServices", "Carbon")},
			},
		},
	})
}

// autotoolsArgs are the configure arguments shared by every POSIX rule.
func autotoolsArgs(d platform.Descriptor) []string {
	var args []string
	if d.Shared() {
		args = append(args, "--enable-shared", "--disable-static")
	} else {
		args = append(args, "--disable-shared", "--enable-static")
	}
	if sysroot, ok := d.Sysroot(); ok {
		args = append(args, "--with-sysroot="+sysroot)
	}
	return args
}

// chmodConfigure makes the unpacked configure script executable.
func chmodConfigure(ctx *plan.Context) buildsys.Step {
	return buildsys.Step{
		Phase: buildsys.Prepare,
		Dir:   ctx.SourceDir,
		Exe:   "chmod",
		Args:  []string{"+x", filepath.Join(ctx.SourceDir, "configure")},
	}
}

func portaudioLinux(ctx *plan.Context) ([]buildsys.Step, error) {
	host, err := plan.Triplet(ctx.Descriptor, "pc-linux")
	if err != nil {
		return nil, err
	}
	a := ctx.AutoTools(true)
	args := append(autotoolsArgs(ctx.Descriptor), "--host="+host)
	return []buildsys.Step{chmodConfigure(ctx), a.Configure(args...), a.Build(), a.Install()}, nil
}

func withMacMinVersion(ctx *plan.Context) {
	for _, k := range []string{plan.CFLAGS, plan.CXXFLAGS, plan.LDFLAGS} {
		ctx.Env[k] = strings.TrimSpace(ctx.Env[k] + " " + macosMinVersion)
	}
}

// fixInstallNames sets the install name of each shared library to its file
// name so that consumers load it next to themselves.
func fixInstallNames(ctx *plan.Context) buildsys.Step {
	return buildsys.Step{
		Phase: buildsys.Install,
		Dir:   filepath.Join(ctx.SourceDir, "lib", ".libs"),
		Exe:   "sh",
		Args:  []string{"-c", `for f in *.dylib; do install_name_tool -id "$f" "$f"; done`},
	}
}

func portaudioMac(ctx *plan.Context) ([]buildsys.Step, error) {
	withMacMinVersion(ctx)
	a := ctx.AutoTools(true)
	args := append(autotoolsArgs(ctx.Descriptor), "--disable-mac-universal")
	steps := []buildsys.Step{chmodConfigure(ctx), a.Configure(args...), a.Build(), a.Install()}
	if ctx.Descriptor.Shared() {
		steps = append(steps, fixInstallNames(ctx))
	}
	return steps, nil
}

// portaudioOSXCross cross-compiles for macOS from Linux with osxcross.
func portaudioOSXCross(ctx *plan.Context) ([]buildsys.Step, error) {
	host, err := plan.Triplet(ctx.Descriptor, "apple-darwin19")
	if err != nil {
		return nil, err
	}
	ar := host + "-ar"
	if sysroot, ok := ctx.Descriptor.Sysroot(); ok {
		ar = filepath.Join(sysroot, "..", "..", "bin", ar)
	}
	withMacMinVersion(ctx)
	ctx.Env["CC"] = "o64-clang"
	ctx.Env["AR"] = ar

	a := ctx.AutoTools(true)
	args := append(autotoolsArgs(ctx.Descriptor),
		"--host="+host, "--target="+host,
		"--disable-mac-universal",
		"--without-alsa", "--without-jack", "--without-oss", "--without-asihpi",
		"AR="+ar,
	)
	steps := []buildsys.Step{chmodConfigure(ctx), a.Configure(args...), a.Build(), a.Install()}
	if ctx.Descriptor.Shared() {
		steps = append(steps, fixInstallNames(ctx))
	}
	return steps, nil
}

func portaudioWindows(ctx *plan.Context) ([]buildsys.Step, error) {
	return cmakeBuild("", func(c *cmake.CMake, d platform.Descriptor) {
		if d.Compiler() == "gcc" {
			c.DefineBool("PA_USE_WDMKS", false).
				DefineBool("PA_USE_WDMKS_DEVICE_INFO", false).
				DefineBool("PA_USE_WASAPI", false)
		}
	})(ctx)
}
