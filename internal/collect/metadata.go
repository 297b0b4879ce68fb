package collect

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"
)

// InfoFile is the metadata record at the root of every package.
const InfoFile = "cookinfo.json"

// Info is the published metadata record. Its shape is a stable contract.
type Info struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Description  string       `json:"description,omitempty"`
	Platform     string       `json:"platform"`
	PlatformHash string       `json:"platformHash"`
	Reproducible bool         `json:"reproducible"`
	Source       string       `json:"source,omitempty"`
	Revision     string       `json:"revision,omitempty"`
	Link         LinkMetadata `json:"link"`
	Files        []string     `json:"files"`
	// ContentHash covers every file of the package except this record.
	ContentHash string `json:"contentHash"`
}

// ReadInfo reads the metadata record of the package in dir.
func ReadInfo(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", InfoFile, err)
	}
	return &info, nil
}

func writeInfo(dir string, info *Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, InfoFile), append(data, '\n'), 0o644)
}

// ContentHash returns the dirhash of the package in dir, excluding the
// metadata record.
func ContentHash(dir, prefix string) (string, error) {
	files, err := dirhash.DirFiles(dir, prefix)
	if err != nil {
		return "", err
	}
	files = slices.DeleteFunc(files, func(f string) bool {
		return f == prefix+"/"+InfoFile
	})
	return dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		rel := strings.TrimPrefix(name, prefix+"/")
		return os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	})
}

// Verify reports whether the package in dir still matches its record.
func Verify(dir string) (*Info, error) {
	info, err := ReadInfo(dir)
	if err != nil {
		return nil, err
	}
	sum, err := ContentHash(dir, info.Name+"@"+info.Version)
	if err != nil {
		return nil, err
	}
	if sum != info.ContentHash {
		return nil, fmt.Errorf("package %s@%s modified: content hash %s, recorded %s", info.Name, info.Version, sum, info.ContentHash)
	}
	return info, nil
}

// pkgConfig renders lib/pkgconfig/<name>.pc. Paths are relative to the
// file so the package stays relocatable.
func pkgConfig(info *Info) string {
	var b strings.Builder
	b.WriteString("prefix=${pcfiledir}/../..\n")
	b.WriteString("libdir=${prefix}/lib\n")
	b.WriteString("includedir=${prefix}/include\n\n")
	fmt.Fprintf(&b, "Name: %s\n", info.Name)
	desc := info.Description
	if desc == "" {
		desc = info.Name
	}
	fmt.Fprintf(&b, "Description: %s\n", desc)
	fmt.Fprintf(&b, "Version: %s\n", info.Version)

	libs := []string{"-L${libdir}"}
	for _, l := range info.Link.LibraryNames {
		libs = append(libs, "-l"+l)
	}
	libs = append(libs, info.Link.LinkerFlags...)
	fmt.Fprintf(&b, "Libs: %s\n", strings.Join(libs, " "))

	cflags := []string{"-I${includedir}"}
	for _, d := range info.Link.Defines {
		cflags = append(cflags, "-D"+d)
	}
	fmt.Fprintf(&b, "Cflags: %s\n", strings.Join(cflags, " "))
	return b.String()
}

// Load returns the verified package in dir as an Artifact.
func Load(dir string) (*Artifact, error) {
	info, err := Verify(dir)
	if err != nil {
		return nil, err
	}
	a := &Artifact{Dir: dir, HeaderRoot: Header.Subdir(), Link: info.Link, Info: info}
	for _, f := range info.Files {
		top, _, _ := strings.Cut(f, "/")
		switch top {
		case Header.Subdir():
			a.Headers = append(a.Headers, f)
		case Library.Subdir():
			if !strings.HasPrefix(f, "lib/pkgconfig/") {
				a.LibraryFiles = append(a.LibraryFiles, f)
			}
		case Binary.Subdir():
			a.BinaryFiles = append(a.BinaryFiles, f)
		case License.Subdir():
			a.LicenseFiles = append(a.LicenseFiles, f)
		}
	}
	return a, nil
}
