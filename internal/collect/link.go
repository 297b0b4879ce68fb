package collect

import (
	"path"
	"slices"
	"strings"

	"github.com/goplus/cook/platform"
)

// LinkMetadata tells a downstream build how to link against a package.
type LinkMetadata struct {
	LibraryNames    []string `json:"libraryNames"`
	SystemLibraries []string `json:"systemLibraries"`
	Defines         []string `json:"defines"`
	LinkerFlags     []string `json:"linkerFlags"`
}

// LinkRow adds link metadata for the descriptors its selector matches.
// System libraries are appended both to the library names, after the
// package's own libraries, and to SystemLibraries.
type LinkRow struct {
	Selector    platform.Selector
	System      []string
	Defines     []string
	LinkerFlags []string
}

// SuffixRow appends Suffix to a fixed library base name.
type SuffixRow struct {
	Selector platform.Selector
	Suffix   string
}

// Names decides the package's own library names. With an empty Base the
// names are derived from the collected library files.
type Names struct {
	Base     string
	Suffixes []SuffixRow
}

func (n Names) resolve(d platform.Descriptor, files []string) []string {
	if n.Base == "" {
		return libraryNames(files)
	}
	name := n.Base
	for _, row := range n.Suffixes {
		if row.Selector.Matches(d) {
			name += row.Suffix
		}
	}
	return []string{name}
}

// Metadata computes the link metadata of d from rows, in row order.
func Metadata(d platform.Descriptor, own []string, rows []LinkRow) LinkMetadata {
	m := LinkMetadata{
		LibraryNames:    slices.Clone(own),
		SystemLibraries: []string{},
		Defines:         []string{},
		LinkerFlags:     []string{},
	}
	if m.LibraryNames == nil {
		m.LibraryNames = []string{}
	}
	for _, row := range rows {
		if !row.Selector.Matches(d) {
			continue
		}
		m.LibraryNames = appendNew(m.LibraryNames, row.System...)
		m.SystemLibraries = appendNew(m.SystemLibraries, row.System...)
		m.Defines = appendNew(m.Defines, row.Defines...)
		m.LinkerFlags = append(m.LinkerFlags, row.LinkerFlags...)
	}
	return m
}

func appendNew(s []string, vs ...string) []string {
	for _, v := range vs {
		if !slices.Contains(s, v) {
			s = append(s, v)
		}
	}
	return s
}

// libraryNames turns library file paths into link names:
// "lib/libGLEW.so.2.1.0" is "GLEW", "lib/glew32s.lib" is "glew32s".
func libraryNames(files []string) []string {
	var names []string
	for _, f := range files {
		base := path.Base(f)
		if !strings.HasSuffix(strings.ToLower(base), ".lib") {
			base = strings.TrimPrefix(base, "lib")
		}
		name, _, _ := strings.Cut(base, ".")
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
