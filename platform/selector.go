package platform

// Linkage selects rows by the shared option.
type Linkage int

const (
	AnyLinkage Linkage = iota
	Static
	SharedLib
)

// Selector matches a subset of descriptors. Zero fields match anything.
// Rule tables key their rows with selectors so that every platform branch
// is a separate, testable entry.
type Selector struct {
	OS       OS
	Compiler string
	Arch     string
	Linkage  Linkage
}

// Matches reports whether d is selected.
func (s Selector) Matches(d Descriptor) bool {
	if s.OS != "" && s.OS != d.os {
		return false
	}
	if s.Compiler != "" && s.Compiler != d.compiler {
		return false
	}
	if s.Arch != "" && s.Arch != d.arch {
		return false
	}
	switch s.Linkage {
	case Static:
		return !d.Shared()
	case SharedLib:
		return d.Shared()
	}
	return true
}
