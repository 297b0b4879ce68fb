package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/cook/internal/build/lockedfile"
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
)

// Package directory layout:
//
//	packageDir/
//	  <name>/
//	    .cache.json                  # package cache: "version-platformhash" → cacheEntry
//	    .cache.lock
//	    <version>/<platformhash>/    # published package
//	      cookinfo.json
//	      include/ lib/ bin/ licenses/
//
// Workspace directory layout:
//
//	workspaceDir/
//	  <name>@<version>-<platformhash>/
//	    .lock
//	    <name>-<version>_sources/
//	    build/
//	    install/
const (
	cacheFile = ".cache.json"
	cacheLock = ".cache.lock"
)

// cacheEntry records one published package.
type cacheEntry struct {
	Platform    string    `json:"platform"`
	Dir         string    `json:"dir"`
	ContentHash string    `json:"content_hash"`
	BuildTime   time.Time `json:"build_time"`
}

// buildCache maps "version-platformhash" keys to their entries.
type buildCache struct {
	Cache map[string]*cacheEntry `json:"cache"`
}

func cacheKey(version string, d platform.Descriptor) string {
	return version + "-" + d.Hash()
}

func (c *buildCache) get(version string, d platform.Descriptor) (*cacheEntry, bool) {
	entry, ok := c.Cache[cacheKey(version, d)]
	return entry, ok
}

func (c *buildCache) set(version string, d platform.Descriptor, entry *cacheEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*cacheEntry)
	}
	c.Cache[cacheKey(version, d)] = entry
}

// cacheDir returns the recipe-level directory: packageDir/<name>.
func (b *Builder) cacheDir(name string) (string, error) {
	escaped, err := module.EscapePath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.opts.PackageDir, escaped), nil
}

// packageDir returns packageDir/<name>/<version>/<platformhash>.
func (b *Builder) packageDir(id module.Version, d platform.Descriptor) (string, error) {
	dir, err := b.cacheDir(id.Name)
	if err != nil {
		return "", err
	}
	version, err := module.EscapePath(id.Version)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, version, d.Hash()), nil
}

// workDir returns workspaceDir/<name>@<version>-<platformhash>.
func (b *Builder) workDir(id module.Version, d platform.Descriptor) (string, error) {
	name, err := module.EscapePath(id.Name)
	if err != nil {
		return "", err
	}
	version, err := module.EscapePath(id.Version)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.opts.WorkspaceDir, fmt.Sprintf("%s@%s-%s", name, version, d.Hash())), nil
}

// lockCache locks the cache file of a recipe. Builds of different versions
// and platforms of one recipe share it.
func (b *Builder) lockCache(name string) (unlock func(), err error) {
	dir, err := b.cacheDir(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return lockedfile.MutexAt(filepath.Join(dir, cacheLock)).Lock()
}

// loadCache reads the cache file of a recipe. A missing file is an empty
// cache.
func (b *Builder) loadCache(name string) (*buildCache, error) {
	dir, err := b.cacheDir(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if os.IsNotExist(err) {
		return &buildCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("%s: %w", cacheFile, err)
	}
	return &cache, nil
}

// saveCache writes the cache file of a recipe.
func (b *Builder) saveCache(name string, cache *buildCache) error {
	dir, err := b.cacheDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}

// cached returns the published package of id for d if the cache records
// one and its content still matches.
func (b *Builder) cached(id module.Version, d platform.Descriptor) (*collect.Artifact, bool) {
	unlock, err := b.lockCache(id.Name)
	if err != nil {
		return nil, false
	}
	defer unlock()

	cache, err := b.loadCache(id.Name)
	if err != nil {
		return nil, false
	}
	entry, ok := cache.get(id.Version, d)
	if !ok {
		return nil, false
	}
	a, err := collect.Load(entry.Dir)
	if err != nil || a.Info.ContentHash != entry.ContentHash {
		return nil, false
	}
	return a, true
}

// record adds a published package to the cache.
func (b *Builder) record(id module.Version, d platform.Descriptor, a *collect.Artifact) error {
	unlock, err := b.lockCache(id.Name)
	if err != nil {
		return err
	}
	defer unlock()

	cache, err := b.loadCache(id.Name)
	if err != nil {
		// A corrupt cache file is replaced.
		cache = &buildCache{}
	}
	cache.set(id.Version, d, &cacheEntry{
		Platform:    d.Key(),
		Dir:         a.Dir,
		ContentHash: a.Info.ContentHash,
		BuildTime:   time.Now(),
	})
	return b.saveCache(id.Name, cache)
}
