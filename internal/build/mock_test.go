package build

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goplus/cook/internal/executor"
	"github.com/goplus/cook/internal/recipes"
	"github.com/goplus/cook/internal/source"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
)

var (
	glewID   = module.Version{Name: "glew", Version: "2.1.0"}
	openmpID = module.Version{Name: "openmp", Version: "latest"}
)

// glewArchive returns a gzipped tarball laid out like the glew release.
func glewArchive(t *testing.T) []byte {
	t.Helper()
	files := []struct{ name, body string }{
		{"glew-2.1.0/build/cmake/CMakeLists.txt", "project(glew)\n"},
		{"glew-2.1.0/include/GL/glew.h", "#define GLEW\n"},
		{"glew-2.1.0/LICENSE.txt", "license\n"},
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// serveGlew serves the glew archive and returns a lookup that points the
// glew recipe at it, pinned to its digest. Other recipes are unchanged.
func serveGlew(t *testing.T) (func(module.Version) (*recipes.Recipe, error), *atomic.Int32) {
	t.Helper()
	data := glewArchive(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	orig, err := recipes.Lookup(glewID)
	if err != nil {
		t.Fatal(err)
	}
	glew := *orig
	glew.Source.URL = srv.URL + "/glew-{{.Version}}.tgz"
	glew.Source.Integrity = digest.FromBytes(data)
	return func(id module.Version) (*recipes.Recipe, error) {
		if id == glewID {
			return &glew, nil
		}
		return recipes.Lookup(id)
	}, &hits
}

// toolchain is a fake executor.Runner. Install steps write files below
// their --prefix.
type toolchain struct {
	mu   sync.Mutex
	cmds []executor.Command

	install []string
	fail    func(executor.Command) bool
	// block makes matching commands wait for cancellation. started
	// receives one value per blocked command.
	block   func(executor.Command) bool
	started chan struct{}

	running, peak atomic.Int32
}

func (tc *toolchain) Run(ctx context.Context, c executor.Command) (int, error) {
	tc.mu.Lock()
	tc.cmds = append(tc.cmds, c)
	tc.mu.Unlock()

	n := tc.running.Add(1)
	defer tc.running.Add(-1)
	for {
		p := tc.peak.Load()
		if n <= p || tc.peak.CompareAndSwap(p, n) {
			break
		}
	}

	fmt.Fprintf(c.Output, "running %s\n", c.Exe)
	if tc.fail != nil && tc.fail(c) {
		fmt.Fprintln(c.Output, "error: GL/gl.h: No such file or directory")
		return 2, errors.New("exit status 2")
	}
	if tc.block != nil && tc.block(c) {
		tc.started <- struct{}{}
		<-ctx.Done()
		return -1, ctx.Err()
	}
	if i := slices.Index(c.Args, "--prefix"); i >= 0 {
		for _, f := range tc.install {
			p := filepath.Join(c.Args[i+1], filepath.FromSlash(f))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return -1, err
			}
			if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
				return -1, err
			}
		}
	}
	return 0, nil
}

func (tc *toolchain) commands() []executor.Command {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return slices.Clone(tc.cmds)
}

// configures returns the cmake configure commands run so far.
func (tc *toolchain) configures() []executor.Command {
	var out []executor.Command
	for _, c := range tc.commands() {
		if c.Exe == "cmake" && slices.Contains(c.Args, "-S") {
			out = append(out, c)
		}
	}
	return out
}

func isCompile(c executor.Command) bool {
	return c.Exe == "cmake" && slices.Contains(c.Args, "--build")
}

func hasArg(c executor.Command, arg string) bool {
	return slices.Contains(c.Args, arg)
}

func argAfter(c executor.Command, flag string) string {
	if i := slices.Index(c.Args, flag); i >= 0 && i+1 < len(c.Args) {
		return c.Args[i+1]
	}
	return ""
}

var linuxGlewFiles = []string{"include/GL/glew.h", "include/GL/glxew.h", "lib/libGLEW.a", "lib/pkgconfig/glew.pc"}

func linuxGCC() platform.Descriptor {
	return platform.New(platform.Linux, "gcc", "x86_64", platform.Release, nil)
}

func windowsMSVC() platform.Descriptor {
	return platform.New(platform.Windows, "msvc", "x86_64", platform.Release, nil)
}

// newBuilder returns a Builder over temporary directories.
func newBuilder(t *testing.T, base platform.Descriptor, tc *toolchain, lookup func(module.Version) (*recipes.Recipe, error)) *Builder {
	t.Helper()
	root := t.TempDir()
	b, err := NewBuilder(Options{
		WorkspaceDir: filepath.Join(root, "work"),
		PackageDir:   filepath.Join(root, "packages"),
		Platform:     base,
		Jobs:         2,
		CompileJobs:  4,
		Runner:       tc,
		Acquirer:     &source.Acquirer{Client: http.DefaultClient, VCS: &fakeVCS{rev: "5f1e0c2d"}},
		Lookup:       lookup,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// fakeVCS checks out a minimal cmake project.
type fakeVCS struct {
	rev string
}

func (f *fakeVCS) Sync(ctx context.Context, remote, ref, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range []string{"CMakeLists.txt", "LICENSE.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVCS) Head(ctx context.Context, dir string) (string, error) { return f.rev, nil }

func (f *fakeVCS) Latest(ctx context.Context, remote string) (string, error) { return f.rev, nil }

func pathHasSuffix(p string, elem ...string) bool {
	return strings.HasSuffix(filepath.ToSlash(p), "/"+strings.Join(elem, "/"))
}
