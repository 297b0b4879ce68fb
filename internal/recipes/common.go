package recipes

import (
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/pkgs/buildsys/cmake"
	"github.com/goplus/cook/platform"
)

// cmakeBuild returns a configure, build, install template for the cmake
// project in the source subdirectory subdir. tune adds recipe defines.
func cmakeBuild(subdir string, tune func(c *cmake.CMake, d platform.Descriptor)) plan.Template {
	return func(ctx *plan.Context) ([]buildsys.Step, error) {
		c, err := ctx.CMake(subdir)
		if err != nil {
			return nil, err
		}
		if tune != nil {
			tune(c, ctx.Descriptor)
		}
		return []buildsys.Step{c.Configure(), c.Build(), c.Install()}, nil
	}
}

// rules builds a table giving every listed pair the same template.
func rules(t plan.Template, pairs ...plan.Pair) plan.Table {
	table := make(plan.Table, len(pairs))
	for i, p := range pairs {
		table[i] = plan.Rule{OS: p.OS, Compiler: p.Compiler, Template: t}
	}
	return table
}

var (
	linuxGCC   = plan.Pair{OS: platform.Linux, Compiler: "gcc"}
	linuxClang = plan.Pair{OS: platform.Linux, Compiler: "clang"}
	appleClang = plan.Pair{OS: platform.MacOS, Compiler: "apple-clang"}
	osxcross   = plan.Pair{OS: platform.MacOS, Compiler: "osxcross"}
	msvc       = plan.Pair{OS: platform.Windows, Compiler: "msvc"}
	mingw      = plan.Pair{OS: platform.Windows, Compiler: "gcc"}
)

// noFPICOnWindows removes the position independent code toggle, which
// Windows toolchains do not have.
var noFPICOnWindows = []Drop{{Selector: platform.Selector{OS: platform.Windows}, Option: platform.OptionFPIC}}

// installedPatterns packages a conventional cmake install tree.
func installedPatterns(license string) []collect.Pattern {
	return []collect.Pattern{
		{Kind: collect.Header, Dir: "include", Globs: []string{"*.h", "*.hpp"}, Recursive: true, KeepPath: true},
		{Kind: collect.Library, Dir: "lib"},
		{Kind: collect.Binary, Dir: "bin"},
		{Kind: collect.Binary, From: collect.FromBuild, Globs: []string{"*.pdb"}, Recursive: true,
			Selector: platform.Selector{OS: platform.Windows, Compiler: "msvc"}},
		{Kind: collect.License, From: collect.FromSource, Globs: []string{license}, IgnoreCase: true},
	}
}

func frameworks(names ...string) []string {
	var flags []string
	for _, n := range names {
		flags = append(flags, "-framework", n)
	}
	return flags
}
