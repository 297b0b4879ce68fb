package source

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// markerFile is written last into a source tree. Its presence means the
// tree is complete.
const markerFile = ".cook-source.json"

type marker struct {
	Locator      string        `json:"locator"`
	Integrity    digest.Digest `json:"integrity,omitempty"`
	Digest       digest.Digest `json:"digest,omitempty"`
	Revision     string        `json:"revision,omitempty"`
	Reproducible bool          `json:"reproducible"`
}

func readMarker(dir string) (*marker, error) {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return nil, err
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeMarker(dir string, m *marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, markerFile), data, 0o644)
}

func (m *marker) matchesPinned(spec Pinned) bool {
	if !m.Reproducible || m.Locator != spec.URL {
		return false
	}
	if spec.Integrity == "" {
		return true
	}
	return m.Digest == spec.Integrity
}

func (m *marker) workingSource(dir string, reused bool) *WorkingSource {
	return &WorkingSource{
		Dir:          dir,
		Locator:      m.Locator,
		Reproducible: m.Reproducible,
		Digest:       m.Digest,
		Revision:     m.Revision,
		Reused:       reused,
	}
}
