package plan

import "github.com/goplus/cook/platform"

// Outputs holds the file patterns a build produces for one platform.
type Outputs struct {
	Libraries []string `json:"libraries"`
	Binaries  []string `json:"binaries,omitempty"`
}

type outputRow struct {
	sel platform.Selector
	out Outputs
}

// outputTable decides the library and runtime file extensions at plan time.
// The first matching row wins.
var outputTable = []outputRow{
	{platform.Selector{OS: platform.Linux, Linkage: platform.Static}, Outputs{Libraries: []string{"*.a"}}},
	{platform.Selector{OS: platform.Linux, Linkage: platform.SharedLib}, Outputs{Libraries: []string{"*.so", "*.so.*"}}},
	{platform.Selector{OS: platform.MacOS, Linkage: platform.Static}, Outputs{Libraries: []string{"*.a"}}},
	{platform.Selector{OS: platform.MacOS, Linkage: platform.SharedLib}, Outputs{Libraries: []string{"*.dylib"}}},
	{platform.Selector{OS: platform.Windows, Compiler: "msvc", Linkage: platform.Static}, Outputs{Libraries: []string{"*.lib"}}},
	{platform.Selector{OS: platform.Windows, Compiler: "msvc", Linkage: platform.SharedLib}, Outputs{Libraries: []string{"*.lib"}, Binaries: []string{"*.dll"}}},
	{platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.Static}, Outputs{Libraries: []string{"*.a"}}},
	{platform.Selector{OS: platform.Windows, Compiler: "gcc", Linkage: platform.SharedLib}, Outputs{Libraries: []string{"*.dll.a"}, Binaries: []string{"*.dll"}}},
}

func outputsFor(d platform.Descriptor) (Outputs, bool) {
	for _, row := range outputTable {
		if row.sel.Matches(d) {
			return row.out, true
		}
	}
	return Outputs{}, false
}
