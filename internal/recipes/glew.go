package recipes

import (
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
)

func init() {
	register(&Recipe{
		ID:          module.Version{Name: "glew", Version: "2.1.0"},
		Description: "The OpenGL Extension Wrangler Library",
		Homepage:    "https://github.com/nigels-com/glew",
		License:     "MIT",
		Source: Source{
			URL:       "https://github.com/nigels-com/glew/releases/download/glew-{{.Version}}/glew-{{.Version}}.tgz",
			Integrity: "sha256:04de91e7e6763039bc11940095cd9c7f880baba82196a7765f727ac05a993c95",
		},
		Options: platform.Schema{
			platform.OptionShared: platform.Bool(false),
			platform.OptionFPIC:   platform.Bool(true),
		},
		Drops: noFPICOnWindows,
		Rules: rules(cmakeBuild("build/cmake", func(c *cmake.CMake, d platform.Descriptor) {
			c.DefineBool("BUILD_UTILS", false)
		}), linuxGCC, linuxClang, appleClang, msvc, mingw),
		Package: collect.Rules{
			Patterns: []collect.Pattern{
				{Kind: collect.Header, Dir: "include", Globs: []string{"*.h"}, Recursive: true, KeepPath: true},
				{Kind: collect.Library, Dir: "lib", Selector: platform.Selector{OS: platform.Linux}},
				{Kind: collect.Library, Dir: "lib", Selector: platform.Selector{OS: platform.MacOS}},
				// Both variants are always built on Windows; keep the requested one.
				{Kind: collect.Library, Dir: "lib", Globs: []string{"glew32s.lib", "glew32sd.lib"},
					Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc", Linkage: platform.Static}},
				{Kind: collect.Library, Dir: "lib", Globs: []string{"glew32.lib", "glew32d.lib"},
					Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc", Linkage: platform.SharedLib}},
				{Kind: collect.Library, Dir: "lib", Globs: []string{"libglew32s*.a"},
					Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.Static}},
				{Kind: collect.Library, Dir: "lib",
					Selector: platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.SharedLib}},
				{Kind: collect.Binary, Dir: "bin"},
				{Kind: collect.Binary, From: collect.FromBuild, Globs: []string{"*.pdb"}, Recursive: true,
					Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc"}},
				{Kind: collect.License, From: collect.FromSource, Globs: []string{"LICENSE.txt"}, IgnoreCase: true},
			},
			Link: []collect.LinkRow{
				{Selector: platform.Selector{OS: platform.Windows, Linkage: platform.Static}, Defines: []string{"GLEW_STATIC"}, System: []string{"opengl32"}},
				{Selector: platform.Selector{OS: platform.Linux, Linkage: platform.Static}, System: []string{"GL"}},
				{Selector: platform.Selector{OS: platform.MacOS}, LinkerFlags: frameworks("OpenGL")},
			},
		},
	})
}
