package plan

import (
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/platform"
)

// Template produces the configure, compile and install steps of one
// platform branch.
type Template func(ctx *Context) ([]buildsys.Step, error)

// Rule binds a Template to exactly one (os, compiler) pair.
type Rule struct {
	OS       platform.OS
	Compiler string
	Template Template
}

// Table is a recipe's rule table. Lookups are exact; there is no default row.
type Table []Rule

// Lookup returns the rule declared for d's (os, compiler) pair.
func (t Table) Lookup(d platform.Descriptor) (Rule, bool) {
	for _, r := range t {
		if r.OS == d.OS() && r.Compiler == d.Compiler() {
			return r, true
		}
	}
	return Rule{}, false
}

// Pair is an (os, compiler) pair.
type Pair struct {
	OS       platform.OS
	Compiler string
}

func (p Pair) String() string { return string(p.OS) + "/" + p.Compiler }

// Pairs lists the declared pairs in table order.
func (t Table) Pairs() []Pair {
	pairs := make([]Pair, len(t))
	for i, r := range t {
		pairs[i] = Pair{r.OS, r.Compiler}
	}
	return pairs
}

// Supports reports whether recipe has a rule for d and d's architecture is
// known, so callers can fail before any download happens.
func Supports(recipe string, t Table, d platform.Descriptor) error {
	if _, ok := t.Lookup(d); !ok {
		return &UnsupportedPlatformError{Recipe: recipe, OS: string(d.OS()), Compiler: d.Compiler()}
	}
	if _, ok := archRow(d); !ok {
		return &UnsupportedPlatformError{
			Recipe: recipe, OS: string(d.OS()), Compiler: d.Compiler(),
			Reason: "no architecture " + d.Arch(),
		}
	}
	if _, ok := outputsFor(d); !ok {
		return &UnsupportedPlatformError{
			Recipe: recipe, OS: string(d.OS()), Compiler: d.Compiler(),
			Reason: "no output file table",
		}
	}
	return nil
}
