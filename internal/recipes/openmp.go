package recipes

import (
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
)

func init() {
	register(&Recipe{
		ID:          module.Version{Name: "openmp", Version: "latest"},
		Description: "LLVM Library for parallel programming",
		Homepage:    "https://github.com/llvm-mirror/openmp",
		License:     "Apache",
		Source: Source{
			Repo: "https://github.com/llvm-mirror/openmp",
			Ref:  "HEAD",
		},
		Options: platform.Schema{
			platform.OptionShared: platform.Bool(false),
			platform.OptionFPIC:   platform.Bool(true),
		},
		Drops: noFPICOnWindows,
		// No Windows rules: building libomp there needs clang-cl.
		Rules: rules(cmakeBuild("", func(c *cmake.CMake, d platform.Descriptor) {
			c.DefineBool("LIBOMP_ENABLE_SHARED", d.Shared()).
				DefineBool("OPENMP_ENABLE_LIBOMPTARGET", false)
		}), linuxGCC, linuxClang, appleClang),
		Package: collect.Rules{
			Patterns: installedPatterns("LICENSE.txt"),
			Link: []collect.LinkRow{
				{Selector: platform.Selector{OS: platform.Linux, Linkage: platform.Static}, System: []string{"pthread"}},
			},
		},
	})
}
