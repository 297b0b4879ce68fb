// Package collect relocates build outputs into the published package layout
// (include/, lib/, bin/, licenses/) and records how to link against them.
package collect

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/goplus/cook/internal/plan"
	"github.com/qiniu/x/log"
)

// Rules is the packaging declaration of a recipe.
type Rules struct {
	Patterns   []Pattern
	Names      Names
	Link       []LinkRow
	HeaderOnly bool
}

// Request is the input of Collect.
type Request struct {
	Plan *plan.Plan
	// Dest is the package directory. It is recreated from scratch.
	Dest        string
	Description string
	Source      string
	Revision    string
	Rules       Rules
}

// Artifact is a published package. Paths are relative to Dir.
type Artifact struct {
	Dir          string
	HeaderRoot   string
	Headers      []string
	LibraryFiles []string
	BinaryFiles  []string
	LicenseFiles []string
	Link         LinkMetadata
	Info         *Info
}

// Collect copies the files selected by req.Rules for the plan's descriptor
// into req.Dest and writes the metadata record. A recipe that is not
// header-only must yield at least one library file.
func Collect(req Request) (*Artifact, error) {
	p := req.Plan
	d := p.Descriptor
	if err := os.RemoveAll(req.Dest); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.Dest, 0o755); err != nil {
		return nil, err
	}

	files := make(map[Kind][]string)
	var libGlobs []string
	for _, pat := range req.Rules.Patterns {
		if !pat.Selector.Matches(d) {
			continue
		}
		copied, err := pat.copyMatches(p, req.Dest)
		if err != nil {
			return nil, err
		}
		if pat.Kind == Library {
			for _, g := range pat.globs(p) {
				libGlobs = append(libGlobs, filepath.ToSlash(filepath.Join(pat.Dir, g)))
			}
		}
		for _, f := range copied {
			if !slices.Contains(files[pat.Kind], f) {
				files[pat.Kind] = append(files[pat.Kind], f)
			}
		}
	}
	for k := range files {
		slices.Sort(files[k])
	}

	if !req.Rules.HeaderOnly && len(files[Library]) == 0 {
		if len(libGlobs) == 0 {
			libGlobs = p.Outputs.Libraries
		}
		if err := os.RemoveAll(req.Dest); err != nil {
			log.Warnf("%s: removing partial package %s: %v", p.Recipe, req.Dest, err)
		}
		return nil, &MissingArtifactError{Recipe: p.Recipe.String(), Kind: Library, Patterns: libGlobs}
	}

	own := req.Rules.Names.resolve(d, files[Library])
	link := Metadata(d, own, req.Rules.Link)

	a := &Artifact{
		Dir:          req.Dest,
		HeaderRoot:   Header.Subdir(),
		Headers:      files[Header],
		LibraryFiles: files[Library],
		BinaryFiles:  files[Binary],
		LicenseFiles: files[License],
		Link:         link,
	}
	if len(a.LicenseFiles) == 0 {
		log.Warnf("%s: no license file packaged", p.Recipe)
	}

	info := &Info{
		Name:         p.Recipe.Name,
		Version:      p.Recipe.Version,
		Description:  req.Description,
		Platform:     d.Key(),
		PlatformHash: d.Hash(),
		Reproducible: p.Reproducible,
		Source:       req.Source,
		Revision:     req.Revision,
		Link:         link,
	}
	pc := filepath.Join(req.Dest, "lib", "pkgconfig", p.Recipe.Name+".pc")
	if err := os.MkdirAll(filepath.Dir(pc), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(pc, []byte(pkgConfig(info)), 0o644); err != nil {
		return nil, err
	}
	for _, k := range []Kind{Header, Library, Binary, License} {
		info.Files = append(info.Files, files[k]...)
	}
	info.Files = append(info.Files, "lib/pkgconfig/"+p.Recipe.Name+".pc")

	sum, err := ContentHash(req.Dest, p.Recipe.String())
	if err != nil {
		return nil, err
	}
	info.ContentHash = sum
	if err := writeInfo(req.Dest, info); err != nil {
		return nil, err
	}
	a.Info = info
	log.Infof("%s: packaged %d libraries, %d headers into %s", p.Recipe, len(a.LibraryFiles), len(a.Headers), req.Dest)
	return a, nil
}
