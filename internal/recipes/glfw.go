package recipes

import (
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/sysdeps"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
)

func init() {
	register(&Recipe{
		ID:          module.Version{Name: "glfw", Version: "3.3.2"},
		Description: "A multi-platform library for OpenGL, window and input",
		Homepage:    "https://www.glfw.org",
		License:     "Zlib",
		Source: Source{
			URL: "https://github.com/glfw/glfw/releases/download/{{.Version}}/glfw-{{.Version}}.zip",
		},
		Options: platform.Schema{
			platform.OptionShared: platform.Bool(false),
			platform.OptionFPIC:   platform.Bool(true),
		},
		Drops: noFPICOnWindows,
		SystemPackages: sysdeps.Packages{
			"apt-get": {"libx11-dev", "libxrandr-dev", "libxinerama-dev", "libxcursor-dev", "libxi-dev"},
			"yum":     {"libX11-devel", "libXrandr-devel", "libXinerama-devel", "libXcursor-devel", "libXi-devel"},
		},
		Rules: rules(cmakeBuild("", func(c *cmake.CMake, d platform.Descriptor) {
			c.DefineBool("GLFW_BUILD_EXAMPLES", false).
				DefineBool("GLFW_BUILD_TESTS", false).
				DefineBool("GLFW_BUILD_DOCS", false)
		}), linuxGCC, linuxClang, appleClang, msvc, mingw),
		Package: collect.Rules{
			Patterns: installedPatterns("LICENSE.md"),
			Link: []collect.LinkRow{
				{Selector: platform.Selector{OS: platform.Windows, Linkage: platform.SharedLib}, Defines: []string{"GLFW_DLL"}},
				{Selector: platform.Selector{OS: platform.Windows, Linkage: platform.Static}, System: []string{"gdi32"}},
				{Selector: platform.Selector{OS: platform.Linux, Linkage: platform.Static}, System: []string{"X11", "pthread", "dl", "m"}},
				{Selector: platform.Selector{OS: platform.MacOS, Linkage: platform.Static}, LinkerFlags: frameworks("Cocoa", "IOKit", "CoreFoundation", "CoreVideo")},
			},
		},
	})
}
