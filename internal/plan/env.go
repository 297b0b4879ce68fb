package plan

import (
	"fmt"
	"strings"

	"github.com/goplus/cook/platform"
	"github.com/qiniu/x/log"
)

// Flag variables prepared before the configure step.
const (
	CFLAGS   = "CFLAGS"
	CXXFLAGS = "CXXFLAGS"
	LDFLAGS  = "LDFLAGS"
)

var compileVars = []string{CFLAGS, CXXFLAGS}
var allVars = []string{CFLAGS, CXXFLAGS, LDFLAGS}

type flagRow struct {
	sel   platform.Selector
	vars  []string
	flags []string
}

// archFlags selects the target architecture for GCC-style drivers. MSVC
// selects it through the generator platform, so its rows carry no flags.
// A descriptor no row matches has no supported architecture.
var archFlags = []flagRow{
	{platform.Selector{OS: platform.MacOS, Arch: "x86_64"}, allVars, []string{"-arch", "x86_64"}},
	{platform.Selector{OS: platform.MacOS, Arch: "armv8"}, allVars, []string{"-arch", "arm64"}},
	{platform.Selector{OS: platform.Linux, Arch: "x86_64"}, allVars, []string{"-m64"}},
	{platform.Selector{OS: platform.Linux, Arch: "x86"}, allVars, []string{"-m32"}},
	{platform.Selector{OS: platform.Linux, Arch: "armv8"}, compileVars, []string{"-march=armv8-a"}},
	{platform.Selector{OS: platform.Windows, Compiler: "gcc", Arch: "x86_64"}, allVars, []string{"-m64"}},
	{platform.Selector{OS: platform.Windows, Compiler: "gcc", Arch: "x86"}, allVars, []string{"-m32"}},
	{platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86_64"}, nil, nil},
	{platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "x86"}, nil, nil},
	{platform.Selector{OS: platform.Windows, Compiler: "msvc", Arch: "armv8"}, nil, nil},
}

func archRow(d platform.Descriptor) (flagRow, bool) {
	for _, row := range archFlags {
		if row.sel.Matches(d) {
			return row, true
		}
	}
	return flagRow{}, false
}

// sysrootFlags maps an OS to the driver flags injecting a sysroot.
var sysrootFlags = map[platform.OS]func(string) []string{
	platform.Linux: func(s string) []string { return []string{"--sysroot=" + s} },
	platform.MacOS: func(s string) []string { return []string{"-isysroot", s} },
}

// Environment returns the flag variables every step of d's plan sees.
func Environment(d platform.Descriptor) map[string]string {
	flags := make(map[string][]string)
	add := func(vars, fs []string) {
		for _, v := range vars {
			flags[v] = append(flags[v], fs...)
		}
	}

	if row, ok := archRow(d); ok {
		add(row.vars, row.flags)
	}
	if sysroot, ok := d.Sysroot(); ok {
		if f, ok := sysrootFlags[d.OS()]; ok {
			add(allVars, f(sysroot))
		} else {
			log.Warnf("sysroot %q ignored on %s", sysroot, d.OS())
		}
	}
	if d.OS() != platform.Windows && d.Bool(platform.OptionFPIC) {
		add(compileVars, []string{"-fPIC"})
	}

	env := make(map[string]string, len(flags))
	for k, v := range flags {
		env[k] = strings.Join(v, " ")
	}
	return env
}

var tripletArch = map[platform.OS]map[string]string{
	platform.Linux: {"x86_64": "x86_64", "x86": "i686", "armv8": "aarch64"},
	platform.MacOS: {"x86_64": "x86_64", "armv8": "aarch64"},
}

// Triplet returns the GNU configure triplet "<arch>-<vendor>" for d, for
// example "x86_64-pc-linux". Unknown architectures are an error rather than
// a guess.
func Triplet(d platform.Descriptor, vendor string) (string, error) {
	arch, ok := tripletArch[d.OS()][d.Arch()]
	if !ok {
		return "", fmt.Errorf("no configure triplet for %s/%s", d.OS(), d.Arch())
	}
	return arch + "-" + vendor, nil
}
